package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hammamikhairi/bearwithme/internal/logger"
)

// CacheOption configures the AudioCache.
type CacheOption func(*AudioCache)

// WithCacheDir enables the filesystem layer rooted at dir. Empty keeps the
// cache purely in memory.
func WithCacheDir(dir string) CacheOption {
	return func(c *AudioCache) { c.dir = dir }
}

// WithDiskWrite controls whether new entries are persisted. Existing files
// are read either way.
func WithDiskWrite(enabled bool) CacheOption {
	return func(c *AudioCache) { c.diskWrite = enabled }
}

// AudioCache stores synthesized prompts in memory and, optionally, on
// disk so fixed lines ("Nice! Much better!") are synthesized once per
// voice. Keys are sha256(voice + ":" + text).
type AudioCache struct {
	voice     string
	dir       string
	diskWrite bool
	log       *logger.Logger

	mu      sync.RWMutex
	entries map[string][]byte

	hits   atomic.Int64
	misses atomic.Int64
}

// NewAudioCache creates a cache for clips spoken with voice.
func NewAudioCache(voice string, log *logger.Logger, opts ...CacheOption) *AudioCache {
	c := &AudioCache{
		voice:   voice,
		log:     log,
		entries: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dir != "" && c.diskWrite {
		if err := os.MkdirAll(c.dir, 0o755); err != nil {
			log.Warn("cache: disabling disk writes, cannot create %s: %v", c.dir, err)
			c.diskWrite = false
		}
	}
	return c
}

// Get returns the cached clip for text. Disk hits are promoted to memory.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.key(text)

	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		c.log.Debug("cache hit (mem): %s", truncate(text, 40))
		return data, true
	}

	if c.dir != "" {
		if data, err := os.ReadFile(c.path(key)); err == nil {
			c.mu.Lock()
			c.entries[key] = data
			c.mu.Unlock()
			c.hits.Add(1)
			c.log.Debug("cache hit (disk): %s", truncate(text, 40))
			return data, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Put stores a clip in memory and, when enabled, on disk.
func (c *AudioCache) Put(text string, audio []byte) {
	key := c.key(text)

	c.mu.Lock()
	c.entries[key] = audio
	c.mu.Unlock()

	if c.dir == "" || !c.diskWrite {
		return
	}
	// Write-then-rename so a crash never leaves a truncated clip behind.
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		c.log.Warn("cache: disk write failed: %v", err)
		return
	}
	_, werr := tmp.Write(audio)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmp.Name())
		c.log.Warn("cache: disk write failed for %s: %v", key[:12], firstErr(werr, cerr))
		return
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		c.log.Warn("cache: disk write failed for %s: %v", key[:12], err)
	}
}

// Has reports whether text is cached in memory or on disk.
func (c *AudioCache) Has(text string) bool {
	key := c.key(text)
	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return true
	}
	if c.dir == "" {
		return false
	}
	_, err := os.Stat(c.path(key))
	return err == nil
}

// Len returns the number of in-memory entries.
func (c *AudioCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *AudioCache) key(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
