// Package instrument caches per-symbol quantization rules and leverage limits.
package instrument

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/rezamoosavidweb/bot-trade/pkg/bybit"
)

// Fetcher loads instrument metadata from the exchange.
type Fetcher interface {
	GetInstrumentInfo(ctx context.Context, symbol string) (bybit.InstrumentInfo, error)
	GetAllInstruments(ctx context.Context) ([]bybit.InstrumentInfo, error)
}

type entry struct {
	info      bybit.InstrumentInfo
	updatedAt time.Time
}

// Cache is a read-through TTL cache over the instrument metadata query.
// A miss or an expired entry falls back to a synchronous fetch.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]entry
	fetcher Fetcher
	ttl     time.Duration
}

// NewCache creates a cache with the given entry TTL.
func NewCache(fetcher Fetcher, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		items:   make(map[string]entry),
		fetcher: fetcher,
		ttl:     ttl,
	}
}

// Get returns metadata for a symbol, fetching synchronously on miss.
func (c *Cache) Get(ctx context.Context, symbol string) (bybit.InstrumentInfo, error) {
	c.mu.RLock()
	e, ok := c.items[symbol]
	c.mu.RUnlock()
	if ok && time.Since(e.updatedAt) < c.ttl {
		return e.info, nil
	}

	info, err := c.fetcher.GetInstrumentInfo(ctx, symbol)
	if err != nil {
		// Tolerate a stale entry over a hard failure.
		if ok {
			return e.info, nil
		}
		return bybit.InstrumentInfo{}, err
	}
	c.put(info)
	return info, nil
}

// Refresh warms the cache with every linear instrument.
func (c *Cache) Refresh(ctx context.Context) error {
	infos, err := c.fetcher.GetAllInstruments(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	now := time.Now()
	for _, info := range infos {
		c.items[info.Symbol] = entry{info: info, updatedAt: now}
	}
	c.mu.Unlock()
	log.Printf("instrument cache: %d symbols cached", len(infos))
	return nil
}

// RunRefresh warms the cache and keeps refreshing on an interval until ctx is done.
func (c *Cache) RunRefresh(ctx context.Context, interval time.Duration) {
	if err := c.Refresh(ctx); err != nil {
		log.Printf("instrument cache: warmup failed: %v", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				log.Printf("instrument cache: refresh failed: %v", err)
			}
		}
	}
}

// Len returns the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) put(info bybit.InstrumentInfo) {
	c.mu.Lock()
	c.items[info.Symbol] = entry{info: info, updatedAt: time.Now()}
	c.mu.Unlock()
}
