package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

type reviewRepository struct {
	s *Store
}

func sameOrder(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.data.reviews {
		if existing.UserID == review.UserID && existing.ProductID == review.ProductID && sameOrder(existing.OrderID, review.OrderID) {
			return &errors.ErrConflict{Message: "you have already reviewed this product"}
		}
	}
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}
	review.UpdatedAt = review.CreatedAt
	cp := *review
	r.s.data.reviews[review.ID] = &cp
	return nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	review, ok := r.s.data.reviews[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "review", ID: id.String()}
	}
	return r.withUserName(review), nil
}

func (r *reviewRepository) Update(ctx context.Context, review *domain.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.data.reviews[review.ID]
	if !ok {
		return &errors.ErrNotFound{Resource: "review", ID: review.ID.String()}
	}
	review.UpdatedAt = time.Now()
	existing.Rating = review.Rating
	existing.Title = review.Title
	existing.Comment = review.Comment
	existing.UpdatedAt = review.UpdatedAt
	return nil
}

func (r *reviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.reviews[id]; !ok {
		return &errors.ErrNotFound{Resource: "review", ID: id.String()}
	}
	delete(r.s.data.reviews, id)
	return nil
}

func (r *reviewRepository) ListByProductID(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	reviews := r.collect(func(rv *domain.Review) bool { return rv.ProductID == productID })
	return page(reviews, limit, offset), len(reviews), nil
}

func (r *reviewRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Review, error) {
	return r.collect(func(rv *domain.Review) bool { return rv.UserID == userID }), nil
}

func (r *reviewRepository) RatingSummary(ctx context.Context, productID uuid.UUID) (float64, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sum, count := 0, 0
	for _, rv := range r.s.data.reviews {
		if rv.ProductID == productID {
			sum += rv.Rating
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

func (r *reviewRepository) collect(match func(rv *domain.Review) bool) []*domain.Review {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reviews := []*domain.Review{}
	for _, rv := range r.s.data.reviews {
		if match(rv) {
			reviews = append(reviews, r.withUserName(rv))
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.After(reviews[j].CreatedAt) })
	return reviews
}

func (r *reviewRepository) withUserName(rv *domain.Review) *domain.Review {
	cp := *rv
	if u, ok := r.s.data.users[rv.UserID]; ok {
		cp.UserName = u.Name
	}
	return &cp
}

type messageRepository struct {
	s *Store
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	message.UpdatedAt = message.CreatedAt
	if message.Status == "" {
		message.Status = domain.MessageStatusNew
	}
	cp := *message
	r.s.data.messages[message.ID] = &cp
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.data.messages[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "message", ID: id.String()}
	}
	cp := *m
	return &cp, nil
}

func (r *messageRepository) Update(ctx context.Context, message *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.data.messages[message.ID]
	if !ok {
		return &errors.ErrNotFound{Resource: "message", ID: message.ID.String()}
	}
	message.UpdatedAt = time.Now()
	existing.Status = message.Status
	existing.Reply = message.Reply
	existing.RepliedAt = message.RepliedAt
	existing.UpdatedAt = message.UpdatedAt
	return nil
}

func (r *messageRepository) List(ctx context.Context, status domain.MessageStatus, limit, offset int) ([]*domain.Message, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	messages := []*domain.Message{}
	for _, m := range r.s.data.messages {
		if status != "" && m.Status != status {
			continue
		}
		cp := *m
		messages = append(messages, &cp)
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].CreatedAt.After(messages[j].CreatedAt) })
	return page(messages, limit, offset), len(messages), nil
}

type notificationRepository struct {
	s *Store
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	r.s.data.notifications[n.ID] = &cp
	return nil
}

func (r *notificationRepository) ListByUserID(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*domain.Notification, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	list := []*domain.Notification{}
	for _, n := range r.s.data.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		cp := *n
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return page(list, limit, offset), len(list), nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, n := range r.s.data.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.data.notifications[id]
	if !ok || n.UserID != userID {
		return &errors.ErrNotFound{Resource: "notification", ID: id.String()}
	}
	n.IsRead = true
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, n := range r.s.data.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.data.notifications[id]
	if !ok || n.UserID != userID {
		return &errors.ErrNotFound{Resource: "notification", ID: id.String()}
	}
	delete(r.s.data.notifications, id)
	return nil
}

type analyticsRepository struct {
	s *Store
}

func (r *analyticsRepository) Create(ctx context.Context, event *domain.AnalyticsEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	cp := *event
	r.s.data.analytics = append(r.s.data.analytics, &cp)
	return nil
}

func (r *analyticsRepository) Dashboard(ctx context.Context, since time.Time, topN int) (*domain.DashboardStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stats := &domain.DashboardStats{
		TotalRevenue:   decimal.Zero,
		TotalUsers:     len(r.s.data.users),
		OrdersByStatus: map[domain.OrderStatus]int{},
		EventCounts:    map[domain.AnalyticsEventType]int{},
		TopProducts:    []domain.ProductSales{},
		DailyRevenue:   []domain.DailyRevenue{},
	}
	for _, p := range r.s.data.products {
		if p.IsActive {
			stats.TotalProducts++
		}
	}

	sales := map[uuid.UUID]*domain.ProductSales{}
	daily := map[string]*domain.DailyRevenue{}
	for _, o := range r.s.data.orders {
		if o.CreatedAt.Before(since) {
			continue
		}
		stats.OrdersByStatus[o.Status]++
		if o.PaymentStatus != domain.PaymentStatusCompleted {
			continue
		}
		stats.TotalOrders++
		stats.TotalRevenue = stats.TotalRevenue.Add(o.FinalAmount)

		day := o.CreatedAt.UTC().Format("2006-01-02")
		if daily[day] == nil {
			daily[day] = &domain.DailyRevenue{Day: day, Revenue: decimal.Zero}
		}
		daily[day].Orders++
		daily[day].Revenue = daily[day].Revenue.Add(o.FinalAmount)

		for _, item := range o.Items {
			ps := sales[item.ProductID]
			if ps == nil {
				ps = &domain.ProductSales{ProductID: item.ProductID, Name: item.Name, Revenue: decimal.Zero}
				sales[item.ProductID] = ps
			}
			ps.UnitsSold += item.Quantity
			ps.Revenue = ps.Revenue.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}

	for _, e := range r.s.data.analytics {
		if !e.CreatedAt.Before(since) {
			stats.EventCounts[e.Type]++
		}
	}

	for _, ps := range sales {
		stats.TopProducts = append(stats.TopProducts, *ps)
	}
	sort.Slice(stats.TopProducts, func(i, j int) bool {
		return stats.TopProducts[i].UnitsSold > stats.TopProducts[j].UnitsSold
	})
	if len(stats.TopProducts) > topN {
		stats.TopProducts = stats.TopProducts[:topN]
	}

	for _, d := range daily {
		stats.DailyRevenue = append(stats.DailyRevenue, *d)
	}
	sort.Slice(stats.DailyRevenue, func(i, j int) bool { return stats.DailyRevenue[i].Day < stats.DailyRevenue[j].Day })

	return stats, nil
}
