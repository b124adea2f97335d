// Package memory is an in-process implementation of the repository interfaces.
// It backs DB_DRIVER=memory and the service and handler tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
)

// Store holds every collection behind one mutex. Values are cloned on the way in and out.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	logger *zap.Logger
	data   *dataset
}

type dataset struct {
	users         map[uuid.UUID]*domain.User
	products      map[uuid.UUID]*domain.Product
	categories    map[uuid.UUID]*domain.Category
	orders        map[uuid.UUID]*domain.Order
	orderEvents   []*domain.OrderEvent
	reviews       map[uuid.UUID]*domain.Review
	messages      map[uuid.UUID]*domain.Message
	notifications map[uuid.UUID]*domain.Notification
	analytics     []*domain.AnalyticsEvent
	idempotency   map[string]*domain.IdempotencyKey
	webhookEvents map[string]domain.ProcessedWebhookEvent
}

func newDataset() *dataset {
	return &dataset{
		users:         map[uuid.UUID]*domain.User{},
		products:      map[uuid.UUID]*domain.Product{},
		categories:    map[uuid.UUID]*domain.Category{},
		orders:        map[uuid.UUID]*domain.Order{},
		reviews:       map[uuid.UUID]*domain.Review{},
		messages:      map[uuid.UUID]*domain.Message{},
		notifications: map[uuid.UUID]*domain.Notification{},
		idempotency:   map[string]*domain.IdempotencyKey{},
		webhookEvents: map[string]domain.ProcessedWebhookEvent{},
	}
}

// NewStore creates an empty store
func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger, data: newDataset()}
}

// NewRepositories creates a repository set backed by an empty store
func NewRepositories(logger *zap.Logger) *repository.Repositories {
	return NewStore(logger).Repositories()
}

// Repositories exposes the store through the repository interfaces
func (s *Store) Repositories() *repository.Repositories {
	repos := s.repositories()
	repos.Tx = &transactor{store: s}
	return repos
}

func (s *Store) repositories() *repository.Repositories {
	return &repository.Repositories{
		User:           &userRepository{s: s},
		Product:        &productRepository{s: s},
		Category:       &categoryRepository{s: s},
		Order:          &orderRepository{s: s},
		OrderEvent:     &orderEventRepository{s: s},
		Review:         &reviewRepository{s: s},
		Message:        &messageRepository{s: s},
		Notification:   &notificationRepository{s: s},
		Analytics:      &analyticsRepository{s: s},
		IdempotencyKey: &idempotencyKeyRepository{s: s},
		WebhookEvent:   &webhookEventRepository{s: s},
	}
}

// transactor serialises transactions and restores a snapshot when fn fails
type transactor struct {
	store *Store
}

func (t *transactor) WithinTx(ctx context.Context, fn func(tx *repository.Repositories) error) (err error) {
	s := t.store
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	repos := s.repositories()
	repos.Tx = nestedTx{repos: repos}
	return fn(repos)
}

func (s *Store) restore(snapshot *dataset) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
	s.logger.Debug("Rolled back in-memory transaction")
}

type nestedTx struct {
	repos *repository.Repositories
}

func (n nestedTx) WithinTx(ctx context.Context, fn func(tx *repository.Repositories) error) error {
	return fn(n.repos)
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.users {
		c.users[k] = cloneUser(v)
	}
	for k, v := range d.products {
		c.products[k] = cloneProduct(v)
	}
	for k, v := range d.categories {
		cp := *v
		c.categories[k] = &cp
	}
	for k, v := range d.orders {
		c.orders[k] = cloneOrder(v)
	}
	for _, v := range d.orderEvents {
		cp := *v
		c.orderEvents = append(c.orderEvents, &cp)
	}
	for k, v := range d.reviews {
		cp := *v
		c.reviews[k] = &cp
	}
	for k, v := range d.messages {
		cp := *v
		c.messages[k] = &cp
	}
	for k, v := range d.notifications {
		cp := *v
		c.notifications[k] = &cp
	}
	for _, v := range d.analytics {
		cp := *v
		c.analytics = append(c.analytics, &cp)
	}
	for k, v := range d.idempotency {
		cp := *v
		c.idempotency[k] = &cp
	}
	for k, v := range d.webhookEvents {
		c.webhookEvents[k] = v
	}
	return c
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	cp.Cart = append([]domain.CartLine{}, u.Cart...)
	cp.Wishlist = append([]domain.WishlistLine{}, u.Wishlist...)
	if u.Address != nil {
		addr := *u.Address
		cp.Address = &addr
	}
	return &cp
}

func cloneProduct(p *domain.Product) *domain.Product {
	cp := *p
	cp.Images = append([]string{}, p.Images...)
	cp.Tags = append([]string{}, p.Tags...)
	return &cp
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem{}, o.Items...)
	return &cp
}

func page[T any](items []T, limit, offset int) []T {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
