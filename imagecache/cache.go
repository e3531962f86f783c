// Package imagecache keeps downloaded images in memory and in a directory
// on disk, keyed by an opaque identifier.
package imagecache

import (
	"context"
	"fmt"
	"sync"

	"bitbucket.org/kleinnic74/pinphotos/filesystem"
	"bitbucket.org/kleinnic74/pinphotos/logging"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const DefaultExtension = ".png"

type Option func(*Cache)

// WithExtension sets the file extension appended to each file name
func WithExtension(ext string) Option {
	return func(c *Cache) {
		c.ext = ext
	}
}

// WithRegisterer registers the cache metrics with reg, metrics are not
// registered anywhere by default
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Cache) {
		c.reg = reg
	}
}

// WithMemoryLimit bounds the number of images held in memory, the oldest
// images are dropped from memory first but stay on disk. 0 means unbounded.
func WithMemoryLimit(n int) Option {
	return func(c *Cache) {
		c.memoryLimit = n
	}
}

// WithLogger sets the logger used to report swallowed filesystem errors
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache is a two-tier image cache: a memory tier in front of a directory.
// It never fetches anything from the network. Filesystem errors are logged
// and otherwise ignored, the memory tier keeps working without a disk.
type Cache struct {
	fs          filesystem.Facade
	ext         string
	reg         prometheus.Registerer
	memoryLimit int
	logger      *zap.Logger
	stats       *internalStats

	lock   sync.RWMutex
	memory map[string][]byte
	order  []string
	known  map[string]struct{}
	// generation changes on every write or eviction, a disk read is only
	// promoted if no write happened while the file was read
	generation uint64
}

// Open returns a cache storing its files in dir. The directory is created
// on the first write.
func Open(dir string, opts ...Option) (*Cache, error) {
	fs, err := filesystem.NewDefaultFilesystem(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid cache directory %s: %w", dir, err)
	}
	c := &Cache{
		fs:     fs,
		ext:    DefaultExtension,
		memory: make(map[string][]byte),
		known:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.From(context.Background()).Named("imagecache")
	}
	c.stats = newStats(c.reg)
	return c, nil
}

// Close releases the memory tier, files on disk are kept
func (c *Cache) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.memory = make(map[string][]byte)
	c.order = nil
	return nil
}

// Dir returns the absolute path of the cache directory
func (c *Cache) Dir() string {
	return c.fs.Path("")
}

// Path returns the path of the file backing the image with the given id
func (c *Cache) Path(id string) string {
	return c.fs.Path(c.filename(id))
}

func (c *Cache) filename(id string) string {
	return filename(id) + c.ext
}

// Get returns a copy of the image stored for id. Images found on disk but
// not in memory are promoted to memory.
func (c *Cache) Get(id string) ([]byte, bool) {
	if id == "" {
		c.stats.miss()
		return nil, false
	}
	c.lock.RLock()
	data, found := c.memory[id]
	generation := c.generation
	c.lock.RUnlock()
	if found {
		c.stats.memoryHit()
		return clone(data), true
	}

	data, err := c.fs.ReadFile(c.filename(id))
	if err != nil || len(data) == 0 {
		c.stats.miss()
		return nil, false
	}
	c.lock.Lock()
	if c.generation == generation {
		c.remember(id, clone(data))
	}
	c.lock.Unlock()
	c.stats.diskHit()
	return data, true
}

// Put stores data for id in memory and on disk. Storing empty data removes
// the image instead.
func (c *Cache) Put(id string, data []byte) {
	if id == "" {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(data) == 0 {
		c.evict(id)
		return
	}
	c.generation++
	c.remember(id, clone(data))
	c.known[id] = struct{}{}
	if err := c.fs.WriteFile(c.filename(id), data); err != nil {
		c.logger.Warn("Failed to write image, keeping it in memory only", zap.String("id", id), zap.Error(err))
		c.stats.writeError()
		return
	}
	c.stats.write()
}

// Remove evicts the image with the given id from memory and disk
func (c *Cache) Remove(id string) {
	c.Put(id, nil)
}

// PurgeAll removes all images written by this cache instance
func (c *Cache) PurgeAll() {
	c.lock.Lock()
	defer c.lock.Unlock()
	for id := range c.known {
		c.deleteFile(id)
	}
	c.logger.Info("Purged image cache", zap.Int("count", len(c.known)))
	c.generation++
	c.memory = make(map[string][]byte)
	c.order = nil
	c.known = make(map[string]struct{})
}

// Known returns the number of identifiers written by this cache instance
func (c *Cache) Known() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.known)
}

func (c *Cache) Stats() Stats {
	return c.stats.snapshot()
}

// remember must be called with the write lock held
func (c *Cache) remember(id string, data []byte) {
	if _, exists := c.memory[id]; !exists {
		c.order = append(c.order, id)
	}
	c.memory[id] = data
	if c.memoryLimit <= 0 {
		return
	}
	for len(c.order) > c.memoryLimit {
		delete(c.memory, c.order[0])
		c.order = c.order[1:]
	}
}

// evict must be called with the write lock held
func (c *Cache) evict(id string) {
	c.generation++
	if _, exists := c.memory[id]; exists {
		delete(c.memory, id)
		for i, o := range c.order {
			if o == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	delete(c.known, id)
	c.deleteFile(id)
	c.stats.eviction()
}

func (c *Cache) deleteFile(id string) {
	if err := c.fs.Remove(c.filename(id)); err != nil {
		c.logger.Warn("Failed to delete image file", zap.String("id", id), zap.Error(err))
		c.stats.writeError()
	}
}

func clone(data []byte) []byte {
	return append([]byte(nil), data...)
}
