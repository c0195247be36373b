package genome

import (
	"errors"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Cache owns the genomes opened during one conversion run. Each path is
// loaded at most once, even with concurrent callers.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	logger  *zap.Logger
}

type cacheEntry struct {
	once   sync.Once
	genome *Genome
	err    error
}

// NewCache creates an empty genome cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger used to report genome loads.
func (c *Cache) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Open returns the genome for path, loading it on first use. Failed loads
// are cached too, so a broken path fails fast on every call.
func (c *Cache) Open(path string) (*Genome, error) {
	key := filepath.Clean(path)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		c.logger.Info("loading reference genome", zap.String("path", path))
		e.genome, e.err = Load(path)
		if e.err == nil {
			c.logger.Info("loaded reference genome",
				zap.String("path", path),
				zap.Int("contigs", e.genome.Contigs()),
				zap.Bool("indexed", e.genome.index != nil))
		}
	})
	return e.genome, e.err
}

// Close releases every opened genome. The cache must not be used afterwards.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, e := range c.entries {
		if e.genome != nil {
			if err := e.genome.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	c.entries = make(map[string]*cacheEntry)
	return errors.Join(errs...)
}
