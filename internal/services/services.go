// Package services implements the account operations on top of the credential store, the media host and the mail transport.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/mailer"
	"github.com/shopfront/accounts/internal/media"
	"github.com/shopfront/accounts/internal/models"
	"github.com/shopfront/accounts/internal/repositories"
	"github.com/shopfront/accounts/internal/session"
	"go.uber.org/zap"
)

// UserRepository is the interface that wraps methods for users table data access
type UserRepository interface {
	// Method Create inserts a new user into the database.
	//
	// "user" parameter is used to create a new user. ID, Role and CreatedAt are filled in.
	//
	// A duplicate email is reported as a validation error.
	Create(ctx context.Context, user *models.User) error
	// Method GetByID retrieves a user by ID without the password hash.
	//
	// If user with such ID does not exist, repositories.ErrUserNotFound will be returned together with "nil" value.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// Method GetByIDWithPassword retrieves a user by ID including the password hash.
	//
	// If user with such ID does not exist, repositories.ErrUserNotFound will be returned together with "nil" value.
	GetByIDWithPassword(ctx context.Context, id string) (*models.User, error)
	// Method GetByEmail retrieves a user by email without the password hash.
	//
	// If user with such email does not exist, repositories.ErrUserNotFound will be returned together with "nil" value.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Method GetByEmailWithPassword retrieves a user by email including the password hash.
	//
	// If user with such email does not exist, repositories.ErrUserNotFound will be returned together with "nil" value.
	GetByEmailWithPassword(ctx context.Context, email string) (*models.User, error)
	// Method ExistsByEmail checks if a user with such email exists.
	//
	// If some error occurs during check, the error will be returned together with "false" value.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Method GetByResetToken retrieves the user whose reset token digest matches and whose expiry is after "now".
	//
	// If there is no such user, repositories.ErrUserNotFound will be returned together with "nil" value.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	// Method SetResetToken stores the reset token digest and its expiry.
	SetResetToken(ctx context.Context, id, tokenHash string, expire time.Time) error
	// Method ClearResetToken removes the reset token digest and its expiry.
	ClearResetToken(ctx context.Context, id string) error
	// Method ResetPassword stores a new password hash and clears the reset token in one statement.
	//
	// If "tokenHash" is no longer stored for the user, repositories.ErrUserNotFound will be returned.
	ResetPassword(ctx context.Context, id, tokenHash, passwordHash string) error
	// Method UpdatePasswordHash stores a new password hash.
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	// Method UpdateProfile updates name and email, and the avatar when "avatar" is not nil.
	UpdateProfile(ctx context.Context, id, name, email string, avatar *models.Avatar) error
	// Method UpdateRole updates name, email and role.
	UpdateRole(ctx context.Context, id, name, email string, role models.Role) error
	// Method GetAll retrieves a page of users.
	GetAll(ctx context.Context, q models.UserListQuery) ([]models.User, error)
	// Method Count returns the number of users matching the list filters.
	Count(ctx context.Context, role *models.Role, search string) (int, error)
	// Method Delete deletes a user by ID.
	//
	// If user with such ID does not exist, repositories.ErrUserNotFound will be returned.
	Delete(ctx context.Context, id string) error
}

// AvatarHost stores avatar images on the external media host
type AvatarHost interface {
	// Method Upload scales and stores the payload.
	//
	// media.ErrInvalidPayload is returned for data that is not a supported image.
	Upload(ctx context.Context, p *media.Payload) (models.Avatar, error)
	// Method Destroy removes the object. Empty ids are ignored.
	Destroy(ctx context.Context, publicID string) error
}

// CleanupQueue schedules avatar objects for background destruction
type CleanupQueue interface {
	EnqueueAvatarDestroy(ctx context.Context, publicID string) error
}

// SessionIssuer mints and validates session tokens
type SessionIssuer interface {
	Issue(user *models.User) (string, error)
	Validate(token string) (*session.Claims, error)
}

// Mailer delivers outgoing email
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Session is the result of every operation that signs a user in
type Session struct {
	User  *models.User
	Token string
}

const maxNameLength = 30

// emailRegex validates email format
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// validateIdentity trims and validates a name/email pair
func validateIdentity(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	switch {
	case name == "":
		return "", "", apperr.Validation("Please Enter Your Name")
	case utf8.RuneCountInString(name) > maxNameLength:
		return "", "", apperr.Validation("Name cannot exceed 30 characters")
	case email == "":
		return "", "", apperr.Validation("Please Enter Your Email")
	case !emailRegex.MatchString(email):
		return "", "", apperr.Validation("Please Enter a valid Email")
	}

	return name, email, nil
}

// storeError converts an unexpected repository error into an internal error.
// Errors that already carry a kind pass through.
func storeError(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal("Internal Server Error", err)
}

// uploadError converts a media host error
func uploadError(err error) error {
	if errors.Is(err, media.ErrInvalidPayload) {
		return apperr.BadRequest("Avatar must be a valid image")
	}
	return apperr.Internal("Failed to upload avatar", err)
}

// avatarJanitor destroys avatar objects inline and falls back to the cleanup queue
type avatarJanitor struct {
	avatars AvatarHost
	queue   CleanupQueue
	logger  *zap.Logger
}

// destroy never fails the calling operation
func (j avatarJanitor) destroy(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	err := j.avatars.Destroy(ctx, publicID)
	if err == nil {
		return
	}

	j.logger.Warn("failed to destroy avatar, scheduling cleanup", zap.String("public_id", publicID), zap.Error(err))
	if j.queue == nil {
		return
	}
	if err := j.queue.EnqueueAvatarDestroy(context.WithoutCancel(ctx), publicID); err != nil {
		j.logger.Error("failed to schedule avatar cleanup, object left for reconciliation",
			zap.String("public_id", publicID), zap.Error(err))
	}
}

// issue signs a session for user
func issue(issuer SessionIssuer, user *models.User) (*Session, error) {
	token, err := issuer.Issue(user)
	if err != nil {
		return nil, apperr.Internal("Failed to issue session", err)
	}
	user.PasswordHash = ""
	return &Session{User: user, Token: token}, nil
}

// notFound reports whether err is the store's missing-user error
func notFound(err error) bool {
	return errors.Is(err, repositories.ErrUserNotFound)
}
