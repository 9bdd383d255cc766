package transport

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ricesearch/rice-facets/internal/config"
	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
)

// Backend is a configured searcher plus the resources it holds.
type Backend struct {
	Searcher Searcher

	closers []func() error
}

// Close releases the backend's resources.
func (b *Backend) Close() error {
	var errs []string
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing backend: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NewBackend builds the searcher selected by the configuration, wrapped in
// the configured cache.
func NewBackend(cfg *config.Config, log *logger.Logger) (*Backend, error) {
	if log == nil {
		log = logger.Discard()
	}
	b := &Backend{}
	endpoint := cfg.Backend.Endpoint()

	switch strings.ToLower(cfg.Backend.Type) {
	case "http", "":
		b.Searcher = NewHTTPSearcher(HTTPConfig{
			Endpoint:       endpoint,
			HighlightField: cfg.Query.HighlightField,
			Timeout:        cfg.Backend.Timeout(),
			RateLimit:      cfg.Backend.RateLimit,
			Burst:          cfg.Backend.Burst,
		}, log)

	case "bleve":
		idx, err := OpenBleveIndex(cfg.Bleve.IndexPath)
		if err != nil {
			return nil, errors.ServiceUnavailableError("bleve index").WithDetail("error", err.Error())
		}
		b.closers = append(b.closers, idx.Close)

		if cfg.Bleve.DocsPath != "" {
			f, err := os.Open(cfg.Bleve.DocsPath)
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("opening documents: %w", err)
			}
			n, err := LoadDocuments(idx, f)
			f.Close()
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("loading documents: %w", err)
			}
			log.Info("indexed documents", "count", n, "path", cfg.Bleve.DocsPath)
		}
		endpoint = "bleve:" + cfg.Bleve.IndexPath
		b.Searcher = NewBleveSearcher(idx, log)

	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown backend type: %s", cfg.Backend.Type))
	}

	ttl := time.Duration(cfg.Cache.TTL) * time.Second
	switch strings.ToLower(cfg.Cache.Type) {
	case "none", "":
	case "memory":
		b.Searcher = NewCachingSearcher(b.Searcher, NewMemoryCache(cfg.Cache.Size, ttl), endpoint, cfg.Query.HighlightField, log)
	case "redis":
		rc, err := NewRedisCache(cfg.Cache.RedisURL, ttl)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, rc.Close)
		b.Searcher = NewCachingSearcher(b.Searcher, rc, endpoint, cfg.Query.HighlightField, log)
	default:
		b.Close()
		return nil, errors.ValidationError(fmt.Sprintf("unknown cache type: %s", cfg.Cache.Type))
	}

	return b, nil
}
