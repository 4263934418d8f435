package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/models"
	"go.uber.org/zap"
)

// Admin list paging bounds
const (
	DefaultListCount = 20
	MaxListCount     = 100
)

// adminService handles administrative user management
type adminService struct {
	userRepo UserRepository
	janitor  avatarJanitor
	logger   *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(userRepo UserRepository, avatars AvatarHost, queue CleanupQueue, logger *zap.Logger) *adminService {
	return &adminService{
		userRepo: userRepo,
		janitor:  avatarJanitor{avatars: avatars, queue: queue, logger: logger},
		logger:   logger,
	}
}

func validateUserID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.BadRequest(fmt.Sprintf("Invalid user id: %s", id))
	}
	return nil
}

// ListUsers returns a page of users and the total number of matches
//
// Page defaults to 1 and count to DefaultListCount. Count above MaxListCount is rejected.
func (s *adminService) ListUsers(ctx context.Context, q models.UserListQuery) (*models.UserListResponse, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Count == 0 {
		q.Count = DefaultListCount
	}
	if q.Page < 1 {
		return nil, apperr.BadRequest("page must be a positive number")
	}
	if q.Count < 1 || q.Count > MaxListCount {
		return nil, apperr.BadRequest(fmt.Sprintf("count must be between 1 and %d", MaxListCount))
	}
	if q.Role != nil && !q.Role.Valid() {
		return nil, apperr.BadRequest(fmt.Sprintf("Unknown role: %s", *q.Role))
	}
	q.Search = strings.TrimSpace(q.Search)

	users, err := s.userRepo.GetAll(ctx, q)
	if err != nil {
		return nil, storeError(err)
	}
	total, err := s.userRepo.Count(ctx, q.Role, q.Search)
	if err != nil {
		return nil, storeError(err)
	}

	return &models.UserListResponse{
		Success:    true,
		Users:      users,
		UsersCount: total,
		Page:       q.Page,
		Count:      q.Count,
	}, nil
}

// GetUser returns a single user by id
func (s *adminService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := validateUserID(id); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if notFound(err) {
		return nil, apperr.NotFound(fmt.Sprintf("User with Id: %s doesn't exist", id))
	}
	if err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

// UpdateRole sets name, email and role of a user
func (s *adminService) UpdateRole(ctx context.Context, id string, req *models.UpdateRoleRequest) error {
	if err := validateUserID(id); err != nil {
		return err
	}
	name, email, err := validateIdentity(req.Name, req.Email)
	if err != nil {
		return err
	}
	if !req.Role.Valid() {
		return apperr.Validation("Role must be either user or admin")
	}

	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		if notFound(err) {
			return apperr.NotFound(fmt.Sprintf("User with Id: %s doesn't exist", id))
		}
		return storeError(err)
	}

	if err := s.userRepo.UpdateRole(ctx, id, name, email, req.Role); err != nil {
		return storeError(err)
	}

	s.logger.Info("user role updated", zap.String("user_id", id), zap.String("role", string(req.Role)))
	return nil
}

// DeleteUser removes a user and its avatar
//
// The record is looked up before any side effect. A failed avatar destroy is handed to the cleanup queue.
func (s *adminService) DeleteUser(ctx context.Context, id string) error {
	if err := validateUserID(id); err != nil {
		return err
	}
	missing := apperr.NotFound(fmt.Sprintf("User with Id %s doesn't exist.", id))

	user, err := s.userRepo.GetByID(ctx, id)
	if notFound(err) {
		return missing
	}
	if err != nil {
		return storeError(err)
	}

	s.janitor.destroy(ctx, user.Avatar.PublicID)

	if err := s.userRepo.Delete(ctx, id); err != nil {
		if notFound(err) {
			return missing
		}
		return storeError(err)
	}

	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}
