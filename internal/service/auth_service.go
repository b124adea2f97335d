package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/mail"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

const errInvalidCredentials = "invalid email or password"

// AuthService handles accounts, credentials and profiles
type AuthService struct {
	repos     *repository.Repositories
	tokens    *TokenIssuer
	mailer    mail.Mailer
	composer  mail.Composer
	analytics *AnalyticsService
	effects   *Effects
	logger    *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	repos *repository.Repositories,
	tokens *TokenIssuer,
	mailer mail.Mailer,
	composer mail.Composer,
	analytics *AnalyticsService,
	effects *Effects,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		repos:     repos,
		tokens:    tokens,
		mailer:    mailer,
		composer:  composer,
		analytics: analytics,
		effects:   effects,
		logger:    logger,
	}
}

// AuthResult is returned by register and login
type AuthResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// HashPassword hashes with bcrypt's default cost
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repos.User.GetByEmail(ctx, email); err == nil {
		return nil, &errors.ErrConflict{Message: "a user with this email already exists"}
	} else if !isNotFound(err) {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		Phone:        req.Phone,
		IsActive:     true,
	}
	if err := s.repos.User.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	s.effects.Run(
		Effect{Name: "mail:welcome", Run: func(ctx context.Context) error {
			msg, err := s.composer.Welcome(user)
			if err != nil {
				return err
			}
			return s.mailer.Send(ctx, msg)
		}},
		s.analytics.TrackEffect(domain.AnalyticsSignup, &user.ID, nil, nil),
	)

	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := s.repos.User.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if isNotFound(err) {
		return nil, &errors.ErrUnauthorized{Message: errInvalidCredentials}
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &errors.ErrUnauthorized{Message: errInvalidCredentials}
	}
	if !user.IsActive {
		return nil, &errors.ErrForbidden{Message: "account is deactivated"}
	}

	now := time.Now()
	if err := s.repos.User.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("Failed to update last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	user.LastLogin = &now

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to an active user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	userID, _ := claims.UserID()

	user, err := s.repos.User.GetByID(ctx, userID)
	if isNotFound(err) {
		return nil, &errors.ErrUnauthorized{Message: "user no longer exists"}
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, &errors.ErrForbidden{Message: "account is deactivated"}
	}
	return user, nil
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.repos.User.GetByID(ctx, userID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*domain.User, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Address != nil {
		user.Address = req.Address
	}
	if req.Avatar != nil {
		user.Avatar = *req.Avatar
	}

	if err := s.repos.User.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return &errors.ErrValidation{
			Message: "current password is incorrect",
			Fields:  map[string]string{"currentPassword": "incorrect"},
		}
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.repos.User.UpdatePassword(ctx, userID, hash)
}

// ListUsers is the admin user listing
func (s *AuthService) ListUsers(ctx context.Context, filter repository.UserFilter) ([]*domain.User, int, error) {
	return s.repos.User.List(ctx, filter)
}

// UpdateUser lets an admin change role or deactivate an account; admins cannot demote or deactivate themselves
func (s *AuthService) UpdateUser(ctx context.Context, actorID, userID uuid.UUID, req AdminUpdateUserRequest) (*domain.User, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Role != nil {
		if actorID == userID && *req.Role != domain.RoleAdmin {
			return nil, &errors.ErrForbidden{Message: "you cannot remove your own admin role"}
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		if actorID == userID && !*req.IsActive {
			return nil, &errors.ErrForbidden{Message: "you cannot deactivate your own account"}
		}
		user.IsActive = *req.IsActive
	}

	if err := s.repos.User.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User updated by admin",
		zap.String("actor_id", actorID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", string(user.Role)),
		zap.Bool("is_active", user.IsActive),
	)
	return user, nil
}

func isNotFound(err error) bool {
	var notFound *errors.ErrNotFound
	return stderrors.As(err, &notFound)
}
