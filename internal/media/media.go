// Package media hosts avatar images on an external object store.
package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopfront/accounts/internal/config"
	"github.com/shopfront/accounts/internal/models"
)

// Object describes a stored object
type Object struct {
	Key          string
	LastModified time.Time
}

// Store is an object store addressed by key
type Store interface {
	// Put stores data under key and returns its public URL
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every object whose key starts with prefix
	List(ctx context.Context, prefix string) ([]Object, error)
}

// NewStore creates the store selected by the media driver
func NewStore(ctx context.Context, cfg config.MediaConfig) (Store, error) {
	switch cfg.Driver {
	case config.MediaDriverS3:
		store, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.MediaDriverLocal:
		return NewLocalStore(cfg.BasePath, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown media driver %q", cfg.Driver)
	}
}

// Avatars uploads scaled avatar images under a fixed folder
type Avatars struct {
	store  Store
	folder string
	width  int
}

// NewAvatars creates an avatar host on top of store
func NewAvatars(store Store, folder string, width int) *Avatars {
	return &Avatars{
		store:  store,
		folder: strings.Trim(folder, "/"),
		width:  width,
	}
}

// Upload scales the payload and stores it, returning the object reference
func (a *Avatars) Upload(ctx context.Context, p *Payload) (models.Avatar, error) {
	scaled, ext, err := Scale(p, a.width)
	if err != nil {
		return models.Avatar{}, err
	}

	publicID := path.Join(a.folder, uuid.New().String()+ext)
	url, err := a.store.Put(ctx, publicID, scaled.ContentType, scaled.Data)
	if err != nil {
		return models.Avatar{}, fmt.Errorf("failed to upload avatar: %w", err)
	}

	return models.Avatar{PublicID: publicID, URL: url}, nil
}

// Destroy removes an avatar object. Empty ids are ignored.
func (a *Avatars) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	if err := a.store.Delete(ctx, publicID); err != nil {
		return fmt.Errorf("failed to destroy avatar %s: %w", publicID, err)
	}
	return nil
}

// List returns every object under the avatar folder
func (a *Avatars) List(ctx context.Context) ([]Object, error) {
	objects, err := a.store.List(ctx, a.folder+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list avatars: %w", err)
	}
	return objects, nil
}
