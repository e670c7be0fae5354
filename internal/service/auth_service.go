package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bernarddwumfour/estore-backend/internal/models"
	"github.com/bernarddwumfour/estore-backend/internal/store"
	"github.com/bernarddwumfour/estore-backend/internal/util"
)

// Token types carried in the JWT "type" claim.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenTypeVerify  = "verify"
)

const verifyTokenTTL = 48 * time.Hour

// VerificationMailer sends the address-verification email after signup.
type VerificationMailer interface {
	SendVerificationEmail(ctx context.Context, to, name, token string) error
}

// AuthConfig carries token signing material and lifetimes.
type AuthConfig struct {
	JWTSecret                string
	AccessTokenTTL           time.Duration
	RefreshTokenTTL          time.Duration
	DisableEmailVerification bool
}

// AuthService handles registration, login and token verification
type AuthService struct {
	store  *store.Store
	cfg    AuthConfig
	mailer VerificationMailer
	logger *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(st *store.Store, cfg AuthConfig, mailer VerificationMailer) *AuthService {
	return &AuthService{
		store:  st,
		cfg:    cfg,
		mailer: mailer,
		logger: util.GetLogger(),
	}
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role,omitempty"`
}

func (r *RegisterRequest) validate() error {
	fields := map[string]string{}
	if r.Email == "" {
		fields["email"] = "This field is required"
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		fields["email"] = "Invalid email address"
	}
	if len(r.Password) < 8 {
		fields["password"] = "Password must be at least 8 characters"
	}
	if r.FirstName == "" {
		fields["first_name"] = "This field is required"
	}
	if r.LastName == "" {
		fields["last_name"] = "This field is required"
	}
	if len(fields) > 0 {
		return NewFieldErrors(fields)
	}
	return nil
}

// TokenPair is issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type authClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
}

// Register creates a customer account. Self-registration always gets the
// customer role; any role in the payload is ignored.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	req.Role = models.RoleCustomer
	return s.createUser(ctx, req)
}

// RegisterUser creates an account with an explicit role (admin operation).
func (s *AuthService) RegisterUser(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	if req.Role == "" {
		req.Role = models.RoleCustomer
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleStaff && req.Role != models.RoleCustomer {
		return nil, NewValidationError("Invalid role: %s", req.Role)
	}
	return s.createUser(ctx, req)
}

func (s *AuthService) createUser(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	exists, err := s.store.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, NewConflict("An account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:            uuid.New().String(),
		Email:         req.Email,
		PasswordHash:  string(hash),
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Phone:         req.Phone,
		Role:          req.Role,
		EmailVerified: s.cfg.DisableEmailVerification,
		IsActive:      true,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, NewConflict("An account with this email already exists")
		}
		return nil, err
	}

	s.logger.Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role))

	if !s.cfg.DisableEmailVerification && s.mailer != nil {
		s.sendVerification(user)
	}
	return user, nil
}

// sendVerification emails the verification link in the background; a mail
// failure never fails the signup.
func (s *AuthService) sendVerification(user *models.User) {
	token, err := s.issueToken(user, tokenTypeVerify, verifyTokenTTL)
	if err != nil {
		s.logger.Error("Failed to issue verification token", zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.FullName(), token); err != nil {
			s.logger.Error("Failed to send verification email",
				zap.String("user_id", user.ID), zap.Error(err))
		}
	}()
}

// Login checks credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, NewValidationError("Invalid email or password")
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, NewValidationError("Invalid email or password")
	}
	if !user.IsActive {
		return nil, nil, NewPermissionDenied("This account has been deactivated")
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Warn("Failed to record last login", zap.Error(err))
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID))
	return user, pair, nil
}

// RefreshToken exchanges a valid refresh token for a new pair.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, NewPermissionDenied("Invalid token")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, NewPermissionDenied("This account has been deactivated")
	}

	return s.issueTokenPair(user)
}

// UserFromToken resolves the user for an access token; the auth middleware
// calls this on every protected request.
func (s *AuthService) UserFromToken(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.parseToken(accessToken, tokenTypeAccess)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, NewPermissionDenied("Invalid token")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, NewPermissionDenied("This account has been deactivated")
	}
	return user, nil
}

// VerifyEmail marks the account verified using the emailed token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.parseToken(token, tokenTypeVerify)
	if err != nil {
		return err
	}
	if err := s.store.MarkEmailVerified(ctx, claims.UserID); err != nil {
		return err
	}
	s.logger.Info("Email verified", zap.String("user_id", claims.UserID))
	return nil
}

// UpdateProfile updates the user's own contact fields.
func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, firstName, lastName, phone string) (*models.User, error) {
	if firstName != "" {
		user.FirstName = firstName
	}
	if lastName != "" {
		user.LastName = lastName
	}
	if phone != "" {
		user.Phone = phone
	}
	if err := s.store.UpdateUserProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *AuthService) ChangePassword(ctx context.Context, user *models.User, current, next string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return NewValidationError("Current password is incorrect")
	}
	if len(next) < 8 {
		return NewValidationError("Password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, user.ID, string(hash))
}

// ListUsers retrieves a user page (admin operation).
func (s *AuthService) ListUsers(ctx context.Context, page, perPage int) ([]models.User, int, error) {
	if perPage <= 0 {
		perPage = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * perPage
	}
	return s.store.ListUsers(ctx, perPage, offset)
}

// SetUserActive enables or disables an account (admin operation).
func (s *AuthService) SetUserActive(ctx context.Context, userID string, active bool) error {
	err := s.store.SetUserActive(ctx, userID, active)
	if errors.Is(err, store.ErrUserNotFound) {
		return NewNotFoundError("User")
	}
	return err
}

func (s *AuthService) issueTokenPair(user *models.User) (*TokenPair, error) {
	access, err := s.issueToken(user, tokenTypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issueToken(user, tokenTypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *AuthService) issueToken(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := authClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		UserID:    user.ID,
		Role:      user.Role,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) parseToken(raw, wantType string) (*authClaims, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, NewPermissionDenied("Invalid or expired token")
	}
	if claims.TokenType != wantType {
		return nil, NewPermissionDenied("Invalid token type")
	}
	return claims, nil
}
