// Package boltstore is an implementation of a pin store using BoltDB for
// storing data persistently
package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/domain"
	"bitbucket.org/kleinnic74/pinphotos/library"
	"bitbucket.org/kleinnic74/pinphotos/logging"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	pinsBucket  = []byte("pins")
	idMapBucket = []byte("pinidx")
)

// BoltStore uses BoltDB as the storage implementation to store pins
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates the buckets of a pin store in the given database
func NewBoltStore(db *bolt.DB) (library.ClosableStore, error) {
	if err := createBucket(db, pinsBucket); err != nil {
		return nil, err
	}
	if err := createBucket(db, idMapBucket); err != nil {
		return nil, err
	}
	return &BoltStore{
		db: db,
	}, nil
}

func createBucket(db *bolt.DB, name []byte) error {
	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
}

// Close closes this store, the underlying database stays open
func (store *BoltStore) Close() {
}

// Add adds the given pin to this store
func (store *BoltStore) Add(ctx context.Context, p *library.Pin) error {
	key := sortableID(p.Created, p.ID)
	encoded, err := json.Marshal(p)
	if err != nil {
		logging.From(ctx).Error("Failed to encode pin", zap.Error(err))
		return err
	}
	return store.db.Update(func(tx *bolt.Tx) error {
		idmap := tx.Bucket(idMapBucket)
		if existing := idmap.Get([]byte(p.ID)); existing != nil {
			return library.PinAlreadyExists(p.ID)
		}
		if err := tx.Bucket(pinsBucket).Put(key, encoded); err != nil {
			return err
		}
		return idmap.Put([]byte(p.ID), key)
	})
}

// Get returns the pin with the given id
func (store *BoltStore) Get(ctx context.Context, id library.PinID) (*library.Pin, error) {
	var found *library.Pin
	err := store.db.View(func(tx *bolt.Tx) error {
		_, pin, err := lookup(tx, id)
		found = pin
		return err
	})
	return found, err
}

// FindAll returns all pins ordered by creation time
func (store *BoltStore) FindAll(ctx context.Context, order consts.SortOrder) ([]*library.Pin, error) {
	return store.findRange(ctx, order, 0, -1)
}

// FindAllPaged returns at most maxCount pins starting at index start. The
// returned flag is true if there are more pins after the returned ones.
func (store *BoltStore) FindAllPaged(ctx context.Context, start, maxCount int, order consts.SortOrder) ([]*library.Pin, bool, error) {
	if start < 0 {
		start = 0
	}
	limit := -1
	if maxCount > 0 {
		limit = maxCount + 1
	}
	found, err := store.findRange(ctx, order, start, limit)
	if err != nil {
		return nil, false, err
	}
	if maxCount > 0 && len(found) > maxCount {
		return found[:maxCount], true, nil
	}
	return found, false, nil
}

func (store *BoltStore) findRange(ctx context.Context, order consts.SortOrder, offset, limit int) ([]*library.Pin, error) {
	found := make([]*library.Pin, 0)
	err := store.db.View(func(tx *bolt.Tx) error {
		c := newPageCursor(tx.Bucket(pinsBucket).Cursor(), order, offset, limit)
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var pin library.Pin
			if err := json.Unmarshal(v, &pin); err != nil {
				logging.From(ctx).Error("Could not unmarshal pin", zap.ByteString("key", k), zap.Error(err))
				return err
			}
			found = append(found, &pin)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not read pins: %w", err)
	}
	return found, nil
}

// ReplacePhotos sets the photos of a pin, the order of the photos is kept
func (store *BoltStore) ReplacePhotos(ctx context.Context, id library.PinID, photos []domain.Photo) error {
	return store.update(id, func(pin *library.Pin) error {
		pin.Photos = append(make([]domain.Photo, 0, len(photos)), photos...)
		return nil
	})
}

// RemovePhoto removes the photo with the given key from a pin
func (store *BoltStore) RemovePhoto(ctx context.Context, id library.PinID, key string) error {
	return store.update(id, func(pin *library.Pin) error {
		for i, photo := range pin.Photos {
			if photo.Key() == key {
				pin.Photos = append(pin.Photos[:i], pin.Photos[i+1:]...)
				return nil
			}
		}
		return library.PhotoNotFound(key)
	})
}

// Delete removes the pin and returns it as it was stored
func (store *BoltStore) Delete(ctx context.Context, id library.PinID) (*library.Pin, error) {
	var deleted *library.Pin
	err := store.db.Update(func(tx *bolt.Tx) error {
		key, pin, err := lookup(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket(pinsBucket).Delete(key); err != nil {
			return err
		}
		deleted = pin
		return tx.Bucket(idMapBucket).Delete([]byte(id))
	})
	return deleted, err
}

func (store *BoltStore) update(id library.PinID, f func(*library.Pin) error) error {
	return store.db.Update(func(tx *bolt.Tx) error {
		key, pin, err := lookup(tx, id)
		if err != nil {
			return err
		}
		if err := f(pin); err != nil {
			return err
		}
		encoded, err := json.Marshal(pin)
		if err != nil {
			return err
		}
		return tx.Bucket(pinsBucket).Put(key, encoded)
	})
}

func lookup(tx *bolt.Tx, id library.PinID) ([]byte, *library.Pin, error) {
	key := tx.Bucket(idMapBucket).Get([]byte(id))
	if key == nil {
		return nil, nil, library.NotFound(id)
	}
	data := tx.Bucket(pinsBucket).Get(key)
	if data == nil {
		return nil, nil, library.NotFound(id)
	}
	var pin library.Pin
	if err := json.Unmarshal(data, &pin); err != nil {
		return nil, nil, fmt.Errorf("could not unmarshal pin %s: %w", id, err)
	}
	return append([]byte(nil), key...), &pin, nil
}

func sortableID(ts time.Time, id library.PinID) []byte {
	var key bytes.Buffer
	key.Write([]byte(ts.UTC().Format("20060102T150405.000000000")))
	key.Write([]byte(id))
	return key.Bytes()
}
