package imagecache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Stats struct {
	MemoryHits  int `json:"memoryHits"`
	DiskHits    int `json:"diskHits"`
	Misses      int `json:"misses"`
	Writes      int `json:"writes"`
	WriteErrors int `json:"writeErrors"`
	Evictions   int `json:"evictions"`
}

type internalStats struct {
	Stats
	lock sync.Mutex

	memoryHits  prometheus.Counter
	diskHits    prometheus.Counter
	misses      prometheus.Counter
	writes      prometheus.Counter
	writeErrors prometheus.Counter
	evictions   prometheus.Counter
}

func newStats(reg prometheus.Registerer) *internalStats {
	factory := promauto.With(reg)
	return &internalStats{
		memoryHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagecache_memory_hits",
			Help: "Number of images served from memory",
		}),
		diskHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagecache_disk_hits",
			Help: "Number of images served from disk and promoted to memory",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagecache_misses",
			Help: "Number of images requested but neither in memory nor on disk",
		}),
		writes: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagecache_writes",
			Help: "Number of images written to disk",
		}),
		writeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagecache_write_errors",
			Help: "Number of failed disk writes or deletions, the image is kept in memory only",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "imagecache_evictions",
			Help: "Number of images removed from the cache",
		}),
	}
}

func (s *internalStats) memoryHit() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.memoryHits.Inc()
	s.Stats.MemoryHits++
}

func (s *internalStats) diskHit() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.diskHits.Inc()
	s.Stats.DiskHits++
}

func (s *internalStats) miss() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.misses.Inc()
	s.Stats.Misses++
}

func (s *internalStats) write() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.writes.Inc()
	s.Stats.Writes++
}

func (s *internalStats) writeError() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.writeErrors.Inc()
	s.Stats.WriteErrors++
}

func (s *internalStats) eviction() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.evictions.Inc()
	s.Stats.Evictions++
}

func (s *internalStats) snapshot() Stats {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.Stats
}
