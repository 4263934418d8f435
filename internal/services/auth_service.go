package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/mailer"
	"github.com/shopfront/accounts/internal/media"
	"github.com/shopfront/accounts/internal/models"
	"github.com/shopfront/accounts/internal/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	resetEmailSubject = "Ecommerce Password Recovery"
	resetPath         = "/password/reset/"
)

// authService handles registration, login, logout and password recovery
type authService struct {
	userRepo   UserRepository
	avatars    AvatarHost
	janitor    avatarJanitor
	issuer     SessionIssuer
	denylist   session.Denylist
	mailer     Mailer
	resetTTL   time.Duration
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo UserRepository,
	avatars AvatarHost,
	queue CleanupQueue,
	issuer SessionIssuer,
	denylist session.Denylist,
	mailer Mailer,
	resetTTL time.Duration,
	logger *zap.Logger,
) *authService {
	return &authService{
		userRepo:   userRepo,
		avatars:    avatars,
		janitor:    avatarJanitor{avatars: avatars, queue: queue, logger: logger},
		issuer:     issuer,
		denylist:   denylist,
		mailer:     mailer,
		resetTTL:   resetTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *authService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", apperr.Internal("Failed to hash password", err)
	}
	return string(hash), nil
}

// Register creates a new account and signs it in
//
// Input is validated and the email checked for uniqueness before the avatar is uploaded.
// When the insert fails after the upload, the uploaded object is destroyed.
func (s *authService) Register(ctx context.Context, req *models.RegisterRequest, avatar *media.Payload) (*Session, error) {
	name, email, err := validateIdentity(req.Name, req.Email)
	if err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, apperr.Validation("Please Enter Your Password")
	}
	if avatar == nil {
		return nil, apperr.BadRequest("Please upload an avatar")
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err)
	}
	if exists {
		return nil, apperr.Validation("Duplicate email entered")
	}

	passwordHash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.avatars.Upload(ctx, avatar)
	if err != nil {
		s.logger.Error("avatar upload failed during registration", zap.Error(err))
		return nil, uploadError(err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		Avatar:       uploaded,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		s.janitor.destroy(ctx, uploaded.PublicID)
		return nil, storeError(err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return issue(s.issuer, user)
}

// Login authenticates a user by email and password
//
// An unknown email and a wrong password produce the same error.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*Session, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.BadRequest("Please Enter Email and Password")
	}

	invalid := apperr.Authentication("Invalid Email or Password")

	user, err := s.userRepo.GetByEmailWithPassword(ctx, email)
	if notFound(err) {
		return nil, invalid
	}
	if err != nil {
		return nil, storeError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalid
	}

	return issue(s.issuer, user)
}

// Logout revokes the presented token when it is still valid. It never fails.
func (s *authService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Error("failed to revoke session", zap.String("user_id", claims.Subject), zap.Error(err))
	}
}

// ForgotPassword stores a reset token for the account and emails the reset link
//
// "baseURL" is the scheme and host the link is built on.
// When the email cannot be sent the stored token is cleared again.
func (s *authService) ForgotPassword(ctx context.Context, req *models.ForgotPasswordRequest, baseURL string) (string, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return "", apperr.NotFound("User not found")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if notFound(err) {
		return "", apperr.NotFound("User not found")
	}
	if err != nil {
		return "", storeError(err)
	}

	raw, digest, err := session.NewResetToken()
	if err != nil {
		return "", apperr.Internal("Failed to generate reset token", err)
	}
	if err := s.userRepo.SetResetToken(ctx, user.ID, digest, s.now().Add(s.resetTTL)); err != nil {
		return "", storeError(err)
	}

	resetURL := strings.TrimRight(baseURL, "/") + resetPath + raw
	msg := mailer.Message{
		To:      user.Email,
		Subject: resetEmailSubject,
		Body:    fmt.Sprintf("Your Password reset token is -> \n\n %s \n\nIf you are not requested this email, please ignore it", resetURL),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		if clearErr := s.userRepo.ClearResetToken(context.WithoutCancel(ctx), user.ID); clearErr != nil {
			s.logger.Error("failed to clear reset token", zap.String("user_id", user.ID), zap.Error(clearErr))
		}
		return "", apperr.Internal(err.Error(), err)
	}

	return fmt.Sprintf("Email sent to %s successfully", user.Email), nil
}

// ResetPassword sets a new password for the account holding a valid reset token and signs it in
//
// The token is checked before the password confirmation.
func (s *authService) ResetPassword(ctx context.Context, rawToken string, req *models.ResetPasswordRequest) (*Session, error) {
	invalid := apperr.NotFound("Reset Password Token is invalid or has been expired")
	tokenHash := session.HashResetToken(rawToken)

	user, err := s.userRepo.GetByResetToken(ctx, tokenHash, s.now())
	if notFound(err) {
		return nil, invalid
	}
	if err != nil {
		return nil, storeError(err)
	}

	if req.Password != req.ConfirmPassword {
		return nil, apperr.Validation("Password does not match")
	}
	if req.Password == "" {
		return nil, apperr.Validation("Please Enter Your Password")
	}

	passwordHash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	// the token may have been consumed by a concurrent reset since the lookup
	if err := s.userRepo.ResetPassword(ctx, user.ID, tokenHash, passwordHash); err != nil {
		if notFound(err) {
			return nil, invalid
		}
		return nil, storeError(err)
	}

	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return issue(s.issuer, user)
}
