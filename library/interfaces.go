package library

import (
	"context"

	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/domain"
)

// PinStore represents a persistent storage of pins and their photos
type PinStore interface {
	Add(ctx context.Context, pin *Pin) error
	Get(ctx context.Context, id PinID) (*Pin, error)
	FindAll(ctx context.Context, order consts.SortOrder) ([]*Pin, error)
	FindAllPaged(ctx context.Context, start, maxCount int, order consts.SortOrder) ([]*Pin, bool, error)
	ReplacePhotos(ctx context.Context, id PinID, photos []domain.Photo) error
	RemovePhoto(ctx context.Context, id PinID, key string) error
	Delete(ctx context.Context, id PinID) (*Pin, error)
}

// ClosableStore is a PinStore that can be closed
type ClosableStore interface {
	PinStore

	Close()
}
