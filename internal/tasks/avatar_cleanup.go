// Package tasks holds background work for avatar objects whose cleanup could not run inline.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TypeAvatarDestroy destroys a single avatar object
	TypeAvatarDestroy = "avatar:destroy"
	// QueueCleanup is the asynq queue for cleanup tasks
	QueueCleanup = "cleanup"

	avatarDestroyMaxRetry = 10
)

// AvatarDestroyPayload is the payload of TypeAvatarDestroy tasks
type AvatarDestroyPayload struct {
	PublicID string `json:"public_id"`
}

// NewAvatarDestroyTask creates a task that destroys the avatar object publicID
func NewAvatarDestroyTask(publicID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AvatarDestroyPayload{PublicID: publicID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAvatarDestroy, payload,
		asynq.Queue(QueueCleanup),
		asynq.MaxRetry(avatarDestroyMaxRetry),
	), nil
}

// Enqueuer is satisfied by *asynq.Client
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CleanupQueue schedules avatar cleanup tasks
type CleanupQueue struct {
	client Enqueuer
	logger *zap.Logger
}

// NewCleanupQueue creates a new cleanup queue
func NewCleanupQueue(client Enqueuer, logger *zap.Logger) *CleanupQueue {
	return &CleanupQueue{
		client: client,
		logger: logger,
	}
}

// EnqueueAvatarDestroy schedules destruction of an avatar object
func (q *CleanupQueue) EnqueueAvatarDestroy(ctx context.Context, publicID string) error {
	task, err := NewAvatarDestroyTask(publicID)
	if err != nil {
		return fmt.Errorf("failed to create avatar destroy task: %w", err)
	}

	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		q.logger.Error("failed to enqueue avatar destroy", zap.String("public_id", publicID), zap.Error(err))
		return fmt.Errorf("failed to enqueue avatar destroy: %w", err)
	}

	q.logger.Info("avatar destroy enqueued", zap.String("public_id", publicID), zap.String("task_id", info.ID))
	return nil
}

// AvatarDestroyer removes avatar objects from the media host
type AvatarDestroyer interface {
	Destroy(ctx context.Context, publicID string) error
}

// AvatarDestroyHandler processes TypeAvatarDestroy tasks
type AvatarDestroyHandler struct {
	avatars AvatarDestroyer
	logger  *zap.Logger
}

// NewAvatarDestroyHandler creates a new handler
func NewAvatarDestroyHandler(avatars AvatarDestroyer, logger *zap.Logger) *AvatarDestroyHandler {
	return &AvatarDestroyHandler{
		avatars: avatars,
		logger:  logger,
	}
}

// ProcessTask implements asynq.Handler
func (h *AvatarDestroyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AvatarDestroyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("invalid avatar destroy payload", zap.Error(err))
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PublicID == "" {
		return fmt.Errorf("empty public id: %w", asynq.SkipRetry)
	}

	if err := h.avatars.Destroy(ctx, payload.PublicID); err != nil {
		h.logger.Warn("avatar destroy failed, will retry", zap.String("public_id", payload.PublicID), zap.Error(err))
		return err
	}

	h.logger.Info("avatar destroyed", zap.String("public_id", payload.PublicID))
	return nil
}
