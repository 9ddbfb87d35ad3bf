package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lyricsync-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store persists counters so they accumulate across restarts
type Store struct {
	db       *bolt.DB
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// PersistedProvider is the on-disk form of ProviderCounters
type PersistedProvider struct {
	Matched     int64 `json:"matched"`
	NoMatch     int64 `json:"no_match"`
	Failed      int64 `json:"failed"`
	Disabled    int64 `json:"disabled"`
	CircuitOpen int64 `json:"circuit_open"`
}

// PersistedStats represents the stats data that gets persisted to disk
type PersistedStats struct {
	TotalRequests     int64 `json:"total_requests"`
	IdentifyRequests  int64 `json:"identify_requests"`
	LyricsRequests    int64 `json:"lyrics_requests"`
	ParseRequests     int64 `json:"parse_requests"`
	CacheRequests     int64 `json:"cache_requests"`
	StatsRequests     int64 `json:"stats_requests"`
	HealthRequests    int64 `json:"health_requests"`
	OtherRequests     int64 `json:"other_requests"`
	IdentifyMatched   int64 `json:"identify_matched"`
	IdentifyNotFound  int64 `json:"identify_not_found"`
	LyricsMatched     int64 `json:"lyrics_matched"`
	LyricsNotFound    int64 `json:"lyrics_not_found"`
	CacheHits         int64 `json:"cache_hits"`
	CacheMisses       int64 `json:"cache_misses"`
	NegativeCacheHits int64 `json:"negative_cache_hits"`
	CachePurged       int64 `json:"cache_purged"`
	RateLimitExceeded int64 `json:"rate_limit_exceeded"`
	Status2xx         int64 `json:"status_2xx"`
	Status4xx         int64 `json:"status_4xx"`
	Status5xx         int64 `json:"status_5xx"`

	TotalResponseTime int64 `json:"total_response_time"`
	ResponseCount     int64 `json:"response_count"`
	MinResponseTime   int64 `json:"min_response_time"`
	MaxResponseTime   int64 `json:"max_response_time"`

	// keyed by operation + "/" + provider
	Providers map[string]PersistedProvider `json:"providers"`

	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore opens a dedicated BoltDB file for s
func NewStore(dbPath string, s *Stats) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return &Store{
		db:       db,
		stats:    s,
		stopChan: make(chan struct{}),
	}, nil
}

// Load reads persisted counters from disk and applies them
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	var persisted PersistedStats
	found := false
	err := st.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &persisted)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if !found {
		return nil
	}

	s := st.stats
	s.TotalRequests.Store(persisted.TotalRequests)
	s.IdentifyRequests.Store(persisted.IdentifyRequests)
	s.LyricsRequests.Store(persisted.LyricsRequests)
	s.ParseRequests.Store(persisted.ParseRequests)
	s.CacheRequests.Store(persisted.CacheRequests)
	s.StatsRequests.Store(persisted.StatsRequests)
	s.HealthRequests.Store(persisted.HealthRequests)
	s.OtherRequests.Store(persisted.OtherRequests)
	s.IdentifyMatched.Store(persisted.IdentifyMatched)
	s.IdentifyNotFound.Store(persisted.IdentifyNotFound)
	s.LyricsMatched.Store(persisted.LyricsMatched)
	s.LyricsNotFound.Store(persisted.LyricsNotFound)
	s.CacheHits.Store(persisted.CacheHits)
	s.CacheMisses.Store(persisted.CacheMisses)
	s.NegativeCacheHits.Store(persisted.NegativeCacheHits)
	s.CachePurged.Store(persisted.CachePurged)
	s.RateLimitExceeded.Store(persisted.RateLimitExceeded)
	s.Status2xx.Store(persisted.Status2xx)
	s.Status4xx.Store(persisted.Status4xx)
	s.Status5xx.Store(persisted.Status5xx)
	s.totalResponseTime.Store(persisted.TotalResponseTime)
	s.responseCount.Store(persisted.ResponseCount)

	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < maxInt64 {
		s.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		s.maxResponseTime.Store(persisted.MaxResponseTime)
	}

	for key, p := range persisted.Providers {
		c := &ProviderCounters{}
		c.Matched.Store(p.Matched)
		c.NoMatch.Store(p.NoMatch)
		c.Failed.Store(p.Failed)
		c.Disabled.Store(p.Disabled)
		c.CircuitOpen.Store(p.CircuitOpen)
		s.providers.Store(key, c)
	}

	if !persisted.FirstStarted.IsZero() {
		s.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, persisted.TotalRequests, persisted.FirstStarted.Format(time.RFC3339))
	return nil
}

// Save persists current counters to disk
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.stats
	persisted := PersistedStats{
		TotalRequests:     s.TotalRequests.Load(),
		IdentifyRequests:  s.IdentifyRequests.Load(),
		LyricsRequests:    s.LyricsRequests.Load(),
		ParseRequests:     s.ParseRequests.Load(),
		CacheRequests:     s.CacheRequests.Load(),
		StatsRequests:     s.StatsRequests.Load(),
		HealthRequests:    s.HealthRequests.Load(),
		OtherRequests:     s.OtherRequests.Load(),
		IdentifyMatched:   s.IdentifyMatched.Load(),
		IdentifyNotFound:  s.IdentifyNotFound.Load(),
		LyricsMatched:     s.LyricsMatched.Load(),
		LyricsNotFound:    s.LyricsNotFound.Load(),
		CacheHits:         s.CacheHits.Load(),
		CacheMisses:       s.CacheMisses.Load(),
		NegativeCacheHits: s.NegativeCacheHits.Load(),
		CachePurged:       s.CachePurged.Load(),
		RateLimitExceeded: s.RateLimitExceeded.Load(),
		Status2xx:         s.Status2xx.Load(),
		Status4xx:         s.Status4xx.Load(),
		Status5xx:         s.Status5xx.Load(),
		TotalResponseTime: s.totalResponseTime.Load(),
		ResponseCount:     s.responseCount.Load(),
		MinResponseTime:   s.minResponseTime.Load(),
		MaxResponseTime:   s.maxResponseTime.Load(),
		Providers:         make(map[string]PersistedProvider),
		LastSaved:         time.Now(),
		FirstStarted:      s.StartTime,
	}
	s.providers.Range(func(k, v any) bool {
		c := v.(*ProviderCounters)
		persisted.Providers[k.(string)] = PersistedProvider{
			Matched:     c.Matched.Load(),
			NoMatch:     c.NoMatch.Load(),
			Failed:      c.Failed.Load(),
			Disabled:    c.Disabled.Load(),
			CircuitOpen: c.CircuitOpen.Load(),
		}
		return true
	})

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = st.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// StartAutoSave begins periodic saving of stats.
// A non-positive interval disables it; Close still saves.
func (st *Store) StartAutoSave(interval time.Duration) {
	if interval <= 0 {
		log.Warnf("%s Auto-save disabled (interval %v)", logcolors.LogStats, interval)
		return
	}
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := st.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-st.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close saves stats and closes the database
func (st *Store) Close() error {
	st.stopOnce.Do(func() { close(st.stopChan) })
	st.wg.Wait()

	if err := st.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}
	return st.db.Close()
}
