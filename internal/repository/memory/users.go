package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

type userRepository struct {
	s *Store
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.s.data.users {
		if u.Email == user.Email {
			return &errors.ErrConflict{Message: "a user with this email already exists"}
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = domain.RoleCustomer
	}
	if user.Cart == nil {
		user.Cart = []domain.CartLine{}
	}
	if user.Wishlist == nil {
		user.Wishlist = []domain.WishlistLine{}
	}
	r.s.data.users[user.ID] = cloneUser(user)
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "user", ID: id.String()}
	}
	return cloneUser(u), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.data.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "user", ID: email}
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	return r.mutate(user.ID, func(u *domain.User) {
		u.Name = user.Name
		u.Phone = user.Phone
		u.Address = nil
		if user.Address != nil {
			addr := *user.Address
			u.Address = &addr
		}
		u.Avatar = user.Avatar
		u.Role = user.Role
		u.IsActive = user.IsActive
		user.UpdatedAt = u.UpdatedAt
	})
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.mutate(id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.mutate(id, func(u *domain.User) { u.LastLogin = &at })
}

func (r *userRepository) UpdateCart(ctx context.Context, id uuid.UUID, cart []domain.CartLine) error {
	return r.mutate(id, func(u *domain.User) { u.Cart = append([]domain.CartLine{}, cart...) })
}

func (r *userRepository) UpdateWishlist(ctx context.Context, id uuid.UUID, wishlist []domain.WishlistLine) error {
	return r.mutate(id, func(u *domain.User) { u.Wishlist = append([]domain.WishlistLine{}, wishlist...) })
}

func (r *userRepository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return r.mutate(id, func(u *domain.User) { u.StripeCustomerID = &customerID })
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]*domain.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []*domain.User
	for _, u := range r.s.data.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(u.Email, search) {
			continue
		}
		matched = append(matched, cloneUser(u))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	admins := []*domain.User{}
	for _, u := range r.s.data.users {
		if u.Role == domain.RoleAdmin && u.IsActive {
			admins = append(admins, cloneUser(u))
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].CreatedAt.Before(admins[j].CreatedAt) })
	return admins, nil
}

func (r *userRepository) mutate(id uuid.UUID, fn func(u *domain.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.data.users[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "user", ID: id.String()}
	}
	u.UpdatedAt = time.Now()
	fn(u)
	return nil
}
