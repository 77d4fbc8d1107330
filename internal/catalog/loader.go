package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Fetcher lists catalog numbers from the remote service.
type Fetcher interface {
	SatIDs(ctx context.Context, limit int) ([]int, error)
}

// Loader resolves the identifier pool: remote service first, then the newest
// disk cache, then FallbackIDs. It never fails.
type Loader struct {
	fetcher Fetcher
	cache   *Cache // nil disables the disk cache
	limit   int
	logger  *slog.Logger
	now     func() time.Time
}

// NewLoader creates a Loader. cache may be nil.
func NewLoader(f Fetcher, cache *Cache, limit int, logger *slog.Logger) *Loader {
	return &Loader{
		fetcher: f,
		cache:   cache,
		limit:   limit,
		logger:  logger,
		now:     time.Now,
	}
}

// Load returns the best pool available.
func (l *Loader) Load(ctx context.Context) *Pool {
	ids, err := l.fetcher.SatIDs(ctx, l.limit)
	if err == nil && len(ids) > 0 {
		now := l.now()
		if l.cache != nil {
			if cerr := l.cache.Write(ids, now); cerr != nil {
				l.logger.Warn("failed to write pool cache", "error", cerr)
			}
		}
		return &Pool{IDs: ids, Source: SourceRemote, FetchedAt: now}
	}
	if err == nil {
		err = errors.New("empty identifier list")
	}
	l.logger.Warn("identifier list unavailable", "error", err)

	if l.cache != nil {
		cached, ts, cerr := l.cache.LoadLatest()
		switch {
		case cerr == nil && len(cached) > 0:
			l.logger.Info("using cached identifier pool", "count", len(cached), "cached_at", ts.UTC().Format(time.RFC3339))
			return &Pool{IDs: cached, Source: SourceCache, FetchedAt: ts}
		case cerr != nil && !errors.Is(cerr, ErrNoCache):
			l.logger.Warn("failed to load pool cache", "error", cerr)
		}
	}

	l.logger.Warn("falling back to default identifiers", "ids", FallbackIDs)
	return &Pool{IDs: append([]int(nil), FallbackIDs...), Source: SourceFallback, FetchedAt: l.now()}
}
