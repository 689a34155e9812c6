package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abduss/filehub/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt limit
)

// userStore abstracts the persistence layer.
type userStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	MarkVerified(ctx context.Context, email string) error
}

// mailer delivers the verification link.
type mailer interface {
	SendVerificationEmail(ctx context.Context, email, actionURL string) error
}

// Service encapsulates authentication use cases.
type Service struct {
	store    userStore
	mail     mailer
	cfg      config.AuthConfig
	log      *zap.Logger
	nowFunc  func() time.Time
	idIssuer string
	parser   *jwt.Parser
}

// NewService creates a Service with dependencies.
func NewService(store userStore, mail mailer, cfg config.AuthConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:    store,
		mail:     mail,
		cfg:      cfg,
		log:      log,
		nowFunc:  time.Now,
		idIssuer: "filehub",
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(func() time.Time { return s.nowFunc() }),
	)
	return s
}

// UserClaims describes the validated identity extracted from an access token.
type UserClaims struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// Register stores an unverified account and sends the verification link. A
// failed mail publish is logged; the account still exists.
func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	if err := validateCredentials(email, password); err != nil {
		return User{}, err
	}
	email = normalizeEmail(email)

	hashed, err := hashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, email, hashed)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			return User{}, ErrEmailAlreadyExists
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	if s.mail != nil {
		if err := s.mail.SendVerificationEmail(ctx, email, s.VerificationURL(email)); err != nil {
			s.log.Warn("send verification email failed", zap.String("email", email), zap.Error(err))
		}
	}

	return user.SafeUser(), nil
}

// Verify confirms the account when token matches the one mailed for email.
func (s *Service) Verify(ctx context.Context, email, token string) error {
	email = normalizeEmail(email)
	expected := s.verificationToken(email)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrInvalidVerificationToken
	}

	if err := s.store.MarkVerified(ctx, email); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidVerificationToken
		}
		return fmt.Errorf("verify user: %w", err)
	}
	return nil
}

// Login authenticates a verified account and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (AccessToken, error) {
	if err := validateCredentials(email, password); err != nil {
		return AccessToken{}, ErrInvalidCredentials
	}

	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AccessToken{}, ErrInvalidCredentials
		}
		return AccessToken{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AccessToken{}, ErrInvalidCredentials
	}
	if !user.Verified {
		return AccessToken{}, ErrAccountNotVerified
	}

	token, err := s.generateAccessToken(user, s.nowFunc())
	if err != nil {
		return AccessToken{}, fmt.Errorf("generate access token: %w", err)
	}
	return token, nil
}

// ValidateAccessToken verifies the token signature and extracts user claims.
func (s *Service) ValidateAccessToken(tokenString string) (UserClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return UserClaims{}, ErrUnauthorized
	}

	parsed, err := s.parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.AccessTokenSecret), nil
	})
	if err != nil || !parsed.Valid {
		return UserClaims{}, ErrUnauthorized
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return UserClaims{}, ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return UserClaims{}, ErrUnauthorized
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return UserClaims{}, ErrUnauthorized
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return UserClaims{}, ErrUnauthorized
	}

	email, _ := claims["email"].(string)
	return UserClaims{UserID: userID, Email: email, ExpiresAt: exp.Time}, nil
}

// VerificationURL is the link mailed to a newly registered address.
func (s *Service) VerificationURL(email string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", s.verificationToken(email))
	return s.cfg.PublicBaseURL + "/v1/auth/verify?" + q.Encode()
}

func (s *Service) generateAccessToken(user User, now time.Time) (AccessToken, error) {
	expiresAt := now.Add(s.cfg.AccessTokenTTL)
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"iss":   s.idIssuer,
		"aud":   "filehub-api",
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
		"email": user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.AccessTokenSecret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ExpiresAt: expiresAt}, nil
}

func (s *Service) verificationToken(email string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.VerificationSecret))
	mac.Write([]byte(email))
	return hex.EncodeToString(mac.Sum(nil))
}

func hashPassword(password string, cost int) (string, error) {
	if len(password) > maxPasswordLength {
		return "", fmt.Errorf("password exceeds maximum length of %d characters", maxPasswordLength)
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if len(strings.TrimSpace(email)) == 0 || len(strings.TrimSpace(password)) == 0 {
		return ErrInvalidCredentials
	}

	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return ErrInvalidCredentials
	}
	return nil
}
