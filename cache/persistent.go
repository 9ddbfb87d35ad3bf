package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lyricsync-go/logcolors"
	"lyricsync-go/utils"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "cache"

var errBucketNotFound = errors.New("bucket not found")

// PersistentCache wraps BoltDB with an in-memory cache for fast access
type PersistentCache struct {
	db                 *bolt.DB
	memCache           sync.Map
	dbPath             string
	compressionEnabled bool
	now                func() time.Time
}

// CacheEntry is what gets stored; Value may be compressed.
// ExpiresAt is a unix timestamp, zero for entries that never expire.
type CacheEntry struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// Expired reports whether the entry is past its deadline at now
func (e CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.Unix() >= e.ExpiresAt
}

// NewPersistentCache opens (or creates) the cache database at dbPath
func NewPersistentCache(dbPath string, compressionEnabled bool) (*PersistentCache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogCacheInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogCacheInit, dbPath)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	pc := &PersistentCache{
		db:                 db,
		dbPath:             dbPath,
		compressionEnabled: compressionEnabled,
		now:                time.Now,
	}

	if err := pc.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload cache to memory: %v", logcolors.LogCache, err)
	}

	log.Infof("%s Persistent cache initialized at %s (compression: %v)", logcolors.LogCacheInit, dbPath, compressionEnabled)
	return pc, nil
}

// loadToMemory loads all live entries from disk to memory
func (pc *PersistentCache) loadToMemory() error {
	count, skipped := 0, 0
	now := pc.now()

	err := pc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var entry CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Failed to unmarshal cache entry for key %s: %v", logcolors.LogCache, string(k), err)
				return nil
			}
			if entry.Expired(now) {
				skipped++
				return nil
			}
			pc.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Infof("%s Loaded %d entries from disk to memory (%d expired skipped)", logcolors.LogCache, count, skipped)
	return nil
}

// Get returns the decompressed value for key.
// Expired entries are treated as missing and removed.
func (pc *PersistentCache) Get(key string) (string, bool) {
	entry, ok := pc.lookup(key)
	if !ok {
		return "", false
	}

	if entry.Expired(pc.now()) {
		if err := pc.Delete(key); err != nil {
			log.Warnf("%s Failed to drop expired key %s: %v", logcolors.LogCache, key, err)
		}
		return "", false
	}

	if !pc.compressionEnabled {
		return entry.Value, true
	}
	decompressed, err := utils.DecompressString(entry.Value)
	if err != nil {
		log.Errorf("%s Error decompressing cache value for key %s: %v", logcolors.LogCache, key, err)
		return "", false
	}
	return decompressed, true
}

// lookup checks memory first, then disk
func (pc *PersistentCache) lookup(key string) (CacheEntry, bool) {
	if v, ok := pc.memCache.Load(key); ok {
		return v.(CacheEntry), true
	}

	var entry CacheEntry
	err := pc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketNotFound
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("key not found")
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return CacheEntry{}, false
	}

	pc.memCache.Store(key, entry)
	return entry, true
}

// Set stores value under key for ttl; ttl <= 0 never expires
func (pc *PersistentCache) Set(key, value string, ttl time.Duration) error {
	finalValue := value
	if pc.compressionEnabled {
		compressed, err := utils.CompressString(value)
		if err != nil {
			return fmt.Errorf("failed to compress value for key %s: %w", key, err)
		}
		finalValue = compressed
	}

	entry := CacheEntry{Value: finalValue}
	if ttl > 0 {
		entry.ExpiresAt = pc.now().Add(ttl).Unix()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	err = pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketNotFound
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return err
	}

	pc.memCache.Store(key, entry)
	return nil
}

// Delete removes a key from cache
func (pc *PersistentCache) Delete(key string) error {
	pc.memCache.Delete(key)

	return pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketNotFound
		}
		return b.Delete([]byte(key))
	})
}

// Clear removes all entries from cache
func (pc *PersistentCache) Clear() error {
	pc.memCache.Range(func(key, value any) bool {
		pc.memCache.Delete(key)
		return true
	})

	return pc.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// PurgeExpired deletes every expired entry and returns how many went
func (pc *PersistentCache) PurgeExpired() (int, error) {
	now := pc.now()
	var expired [][]byte

	err := pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketNotFound
		}

		err := b.ForEach(func(k, v []byte) error {
			var entry CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil || entry.Expired(now) {
				// keys are only valid for the life of the transaction
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, k := range expired {
		pc.memCache.Delete(string(k))
	}
	return len(expired), nil
}

// Range iterates over all in-memory entries
func (pc *PersistentCache) Range(fn func(key string, entry CacheEntry) bool) {
	pc.memCache.Range(func(k, v any) bool {
		return fn(k.(string), v.(CacheEntry))
	})
}

// Stats returns cache statistics
func (pc *PersistentCache) Stats() (numKeys int, sizeInKB int) {
	pc.memCache.Range(func(k, v any) bool {
		entry := v.(CacheEntry)
		numKeys++
		sizeInKB += len(k.(string)) + len(entry.Value)
		return true
	})
	sizeInKB = sizeInKB / 1024
	return
}

// Close closes the database connection
func (pc *PersistentCache) Close() error {
	if pc.db != nil {
		return pc.db.Close()
	}
	return nil
}
