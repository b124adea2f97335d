package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

const userColumns = `id, name, email, password_hash, role, phone, address, avatar, is_active,
	cart, wishlist, stripe_customer_id, last_login, created_at, updated_at`

type userRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db dbtx, logger *zap.Logger) *userRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	now := time.Now()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = domain.RoleCustomer
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	addressJSON, cartJSON, wishlistJSON, err := marshalUserDocs(user)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Phone,
		addressJSON,
		user.Avatar,
		user.IsActive,
		cartJSON,
		wishlistJSON,
		user.StripeCustomerID,
		user.LastLogin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &errors.ErrConflict{Message: "a user with this email already exists"}
	}
	if err != nil {
		r.logger.Error("Failed to create user", zap.Error(err))
		return err
	}

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "user", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.Error(err))
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "user", ID: email}
	}
	if err != nil {
		r.logger.Error("Failed to get user by email", zap.Error(err))
		return nil, err
	}

	return user, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $2, phone = $3, address = $4, avatar = $5, role = $6, is_active = $7, updated_at = $8
		WHERE id = $1
	`

	user.UpdatedAt = time.Now()
	var addressJSON []byte
	if user.Address != nil {
		var err error
		if addressJSON, err = json.Marshal(user.Address); err != nil {
			return err
		}
	}

	return r.execOne(ctx, "update user", user.ID, query,
		user.ID, user.Name, user.Phone, addressJSON, user.Avatar, user.Role, user.IsActive, user.UpdatedAt)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "update password", id, query, id, passwordHash)
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_login = $2 WHERE id = $1`
	return r.execOne(ctx, "update last login", id, query, id, at)
}

func (r *userRepository) UpdateCart(ctx context.Context, id uuid.UUID, cart []domain.CartLine) error {
	if cart == nil {
		cart = []domain.CartLine{}
	}
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	query := `UPDATE users SET cart = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "update cart", id, query, id, cartJSON)
}

func (r *userRepository) UpdateWishlist(ctx context.Context, id uuid.UUID, wishlist []domain.WishlistLine) error {
	if wishlist == nil {
		wishlist = []domain.WishlistLine{}
	}
	wishlistJSON, err := json.Marshal(wishlist)
	if err != nil {
		return err
	}
	query := `UPDATE users SET wishlist = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "update wishlist", id, query, id, wishlistJSON)
}

func (r *userRepository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	query := `UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "set stripe customer", id, query, id, customerID)
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]*domain.User, int, error) {
	var where []string
	var args []interface{}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count users", zap.Error(err))
		return nil, 0, err
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, clause, len(args)-1, len(args))

	users, err := r.queryUsers(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND is_active = TRUE ORDER BY created_at`
	return r.queryUsers(ctx, query, domain.RoleAdmin)
}

func (r *userRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepository) execOne(ctx context.Context, op string, id uuid.UUID, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err), zap.String("user_id", id.String()))
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return &errors.ErrNotFound{Resource: "user", ID: id.String()}
	}
	return nil
}

func marshalUserDocs(user *domain.User) (address, cart, wishlist []byte, err error) {
	if user.Address != nil {
		if address, err = json.Marshal(user.Address); err != nil {
			return
		}
	}
	if user.Cart == nil {
		user.Cart = []domain.CartLine{}
	}
	if user.Wishlist == nil {
		user.Wishlist = []domain.WishlistLine{}
	}
	if cart, err = json.Marshal(user.Cart); err != nil {
		return
	}
	wishlist, err = json.Marshal(user.Wishlist)
	return
}

func scanUser(row scanner) (*domain.User, error) {
	var user domain.User
	var phone, avatar, stripeCustomerID sql.NullString
	var addressJSON, cartJSON, wishlistJSON []byte

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&phone,
		&addressJSON,
		&avatar,
		&user.IsActive,
		&cartJSON,
		&wishlistJSON,
		&stripeCustomerID,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Phone = phone.String
	user.Avatar = avatar.String
	if stripeCustomerID.Valid && stripeCustomerID.String != "" {
		user.StripeCustomerID = &stripeCustomerID.String
	}
	if len(addressJSON) > 0 && string(addressJSON) != "null" {
		user.Address = &domain.Address{}
		if err := json.Unmarshal(addressJSON, user.Address); err != nil {
			return nil, err
		}
	}
	user.Cart = []domain.CartLine{}
	if len(cartJSON) > 0 {
		if err := json.Unmarshal(cartJSON, &user.Cart); err != nil {
			return nil, err
		}
	}
	user.Wishlist = []domain.WishlistLine{}
	if len(wishlistJSON) > 0 {
		if err := json.Unmarshal(wishlistJSON, &user.Wishlist); err != nil {
			return nil, err
		}
	}

	return &user, nil
}
