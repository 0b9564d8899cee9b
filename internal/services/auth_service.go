package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safarmate/transit-backend/internal/apperrors"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles account signup, login and the refresh token lifecycle.
// Refresh tokens rotate on every use; presenting a rotated token again revokes
// every session of its owner.
type AuthService struct {
	users      UserStore
	tokens     RefreshTokenStore
	limiter    *RateLimitService // nil disables login throttling
	jwtService *jwt.Service
	bcryptCost int
	now        func() time.Time
	logger     *logrus.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, tokens RefreshTokenStore, limiter *RateLimitService, jwtService *jwt.Service, bcryptCost int, logger *logrus.Logger) *AuthService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		limiter:    limiter,
		jwtService: jwtService,
		bcryptCost: bcryptCost,
		now:        time.Now,
		logger:     logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a rider or crew account and returns its first tokens
func (s *AuthService) Signup(ctx context.Context, req *models.SignupRequest, client models.ClientInfo) (*models.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	role, _ := models.ParseUserRole(req.Role)
	if role == models.RoleAdmin {
		return nil, apperrors.Validation("admin accounts cannot be created through signup")
	}

	user, err := s.createUser(ctx, req.FirstName, req.LastName, req.Email, req.Phone, req.Password, role)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User signed up")
	return s.issueTokens(ctx, user, client)
}

func (s *AuthService) createUser(ctx context.Context, firstName, lastName, email, phone, password string, role models.UserRole) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        normalizeEmail(email),
		Phone:        models.NewNullString(strings.TrimSpace(phone)),
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if apperrors.IsConflict(err) {
			return nil, apperrors.Conflict("User already exists").WithDetails(err.Error())
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login checks the password and returns fresh tokens.
// Throttled callers get a *RateLimitError.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, client models.ClientInfo) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if s.limiter != nil {
		if err := s.limiter.CheckLogin(ctx, email, client.IP); err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.recordFailure(ctx, email, client.IP)
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	if s.limiter != nil {
		if err := s.limiter.RecordSuccess(ctx, email); err != nil {
			s.logger.WithError(err).Warn("Failed to reset login attempts")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"device_type": client.DeviceType,
	}).Info("User logged in")
	return s.issueTokens(ctx, user, client)
}

func (s *AuthService) recordFailure(ctx context.Context, email, ip string) {
	s.logger.WithFields(logrus.Fields{
		"email": email,
		"ip":    ip,
	}).Warn("Failed login attempt")

	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, email, ip); err != nil {
		s.logger.WithError(err).Warn("Failed to record login attempt")
	}
}

// Refresh exchanges a valid refresh token for a new token pair and revokes the old one
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client models.ClientInfo) (*models.AuthResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	hash := models.HashToken(refreshToken)
	stored, err := s.tokens.GetByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if stored == nil || stored.UserID != claims.UserID {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	now := s.now()
	if stored.Revoked {
		n, err := s.tokens.RevokeAllForUser(ctx, stored.UserID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"user_id": stored.UserID,
			"revoked": n,
		}).Warn("Revoked refresh token presented again, all sessions ended")
		return nil, apperrors.Unauthorized("refresh token has been revoked")
	}
	if !stored.Usable(now) {
		return nil, apperrors.Unauthorized("refresh token has expired")
	}

	// losing this race means another request already rotated the token
	ok, err := s.tokens.Revoke(ctx, hash, now)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if !ok {
		return nil, apperrors.Unauthorized("refresh token has been revoked")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}
	return s.issueTokens(ctx, user, client)
}

// Logout revokes one refresh token of userID, or all of them
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, req *models.LogoutRequest) (*models.LogoutResponse, error) {
	now := s.now()

	if req.AllDevices {
		n, err := s.tokens.RevokeAllForUser(ctx, userID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"revoked": n,
		}).Info("User logged out of all devices")
		return &models.LogoutResponse{Revoked: n}, nil
	}

	if req.RefreshToken == "" {
		return nil, apperrors.Validation("refresh_token is required unless all_devices is set")
	}
	hash := models.HashToken(req.RefreshToken)
	stored, err := s.tokens.GetByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if stored == nil || stored.UserID != userID {
		return nil, apperrors.NotFound("Refresh token")
	}

	ok, err := s.tokens.Revoke(ctx, hash, now)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	resp := &models.LogoutResponse{}
	if ok {
		resp.Revoked = 1
	}
	s.logger.WithField("user_id", userID).Info("User logged out")
	return resp, nil
}

// PurgeExpiredTokens deletes refresh tokens past their expiry
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}

// Me returns the account behind an access token
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is already taken
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	existing, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to look up admin: %w", err)
	}
	if existing != nil {
		return nil
	}
	user, err := s.createUser(ctx, "Admin", "User", email, "", password, models.RoleAdmin)
	if err != nil {
		return err
	}
	s.logger.WithField("user_id", user.ID).Info("Bootstrap admin created")
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User, client models.ClientInfo) (*models.AuthResponse, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now()
	record := &models.RefreshToken{
		ID:         uuid.New(),
		UserID:     user.ID,
		TokenHash:  models.HashToken(refreshToken),
		DeviceType: models.NewNullString(client.DeviceType),
		IPAddress:  models.NewNullString(client.IP),
		UserAgent:  models.NewNullString(client.UserAgent),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.jwtService.RefreshTokenExpiry()),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.jwtService.AccessTokenExpiry()),
		User:         user,
	}, nil
}
