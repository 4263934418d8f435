package services

import (
	"context"

	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/media"
	"github.com/shopfront/accounts/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// profileService handles operations of an authenticated user on their own account
type profileService struct {
	userRepo   UserRepository
	avatars    AvatarHost
	janitor    avatarJanitor
	issuer     SessionIssuer
	bcryptCost int
	logger     *zap.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(userRepo UserRepository, avatars AvatarHost, queue CleanupQueue, issuer SessionIssuer, logger *zap.Logger) *profileService {
	return &profileService{
		userRepo:   userRepo,
		avatars:    avatars,
		janitor:    avatarJanitor{avatars: avatars, queue: queue, logger: logger},
		issuer:     issuer,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger,
	}
}

// GetMe returns the caller's record
func (s *profileService) GetMe(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if notFound(err) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

// UpdatePassword changes the caller's password and issues a fresh session
//
// The record is not touched when the old password is wrong or the confirmation differs.
func (s *profileService) UpdatePassword(ctx context.Context, userID string, req *models.UpdatePasswordRequest) (*Session, error) {
	user, err := s.userRepo.GetByIDWithPassword(ctx, userID)
	if notFound(err) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, storeError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return nil, apperr.BadRequest("Old password is incorrect")
	}
	if req.NewPassword != req.ConfirmPassword {
		return nil, apperr.Validation("Password does not match")
	}
	if req.NewPassword == "" {
		return nil, apperr.Validation("Please Enter Your Password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return nil, apperr.Internal("Failed to hash password", err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		return nil, storeError(err)
	}

	return issue(s.issuer, user)
}

// UpdateProfile changes the caller's name and email and optionally replaces the avatar
//
// A new avatar is uploaded first and the record persisted, then the previous object is destroyed.
// If persisting fails the new object is destroyed instead.
func (s *profileService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest, avatar *media.Payload) error {
	name, email, err := validateIdentity(req.Name, req.Email)
	if err != nil {
		return err
	}

	current, err := s.userRepo.GetByID(ctx, userID)
	if notFound(err) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		return storeError(err)
	}

	if email != current.Email {
		exists, err := s.userRepo.ExistsByEmail(ctx, email)
		if err != nil {
			return storeError(err)
		}
		if exists {
			return apperr.Validation("Duplicate email entered")
		}
	}

	var uploaded *models.Avatar
	if avatar != nil {
		a, err := s.avatars.Upload(ctx, avatar)
		if err != nil {
			s.logger.Error("avatar upload failed during profile update", zap.String("user_id", userID), zap.Error(err))
			return uploadError(err)
		}
		uploaded = &a
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, name, email, uploaded); err != nil {
		if uploaded != nil {
			s.janitor.destroy(ctx, uploaded.PublicID)
		}
		return storeError(err)
	}

	if uploaded != nil && current.Avatar.PublicID != uploaded.PublicID {
		s.janitor.destroy(ctx, current.Avatar.PublicID)
	}

	return nil
}
