// Package watch polls the navigable address for changes the coordinator did
// not make itself (back, forward, a typed address) and replays them.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/ricesearch/rice-facets/internal/fragment"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
	"github.com/ricesearch/rice-facets/internal/pkg/security"
)

// DefaultInterval is how often the live fragment is compared.
const DefaultInterval = 250 * time.Millisecond

// TickOutcome says what one comparison did.
type TickOutcome int

const (
	Unchanged TickOutcome = iota
	Reloaded
	SteppedBack
)

func (o TickOutcome) String() string {
	switch o {
	case Reloaded:
		return "reloaded"
	case SteppedBack:
		return "stepped_back"
	default:
		return "unchanged"
	}
}

// Target is the coordinator the watcher drives.
type Target interface {
	LastKnownFragment() string
	Reload(ctx context.Context) (fragment.DecodeState, error)
}

// Recorder counts ticks that acted.
type Recorder interface {
	Navigated(outcome string)
}

type WatcherConfig struct {
	Navigator fragment.Navigator
	Target    Target
	Interval  time.Duration // Default: 250ms
	Recorder  Recorder
	Logger    *logger.Logger
}

type Watcher struct {
	nav      fragment.Navigator
	target   Target
	interval time.Duration
	recorder Recorder

	// Lifecycle
	stopOnce sync.Once
	done     chan struct{}
	log      *logger.Logger
}

func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	return &Watcher{
		nav:      cfg.Navigator,
		target:   cfg.Target,
		interval: cfg.Interval,
		recorder: cfg.Recorder,
		done:     make(chan struct{}),
		log:      cfg.Logger.WithComponent("watcher"),
	}
}

// Interval returns the polling interval.
func (w *Watcher) Interval() time.Duration { return w.interval }

// Tick compares the live fragment with the last one the target knows about.
// An empty live fragment means the user went back past the first search,
// so the watcher steps back once more instead of running an empty query.
func (w *Watcher) Tick(ctx context.Context) (TickOutcome, error) {
	live := w.nav.ReadFragment()
	if live == w.target.LastKnownFragment() {
		return Unchanged, nil
	}

	if live == "" {
		w.nav.GoBack()
		// At the start of history there is nothing to step back to.
		if w.nav.ReadFragment() == live {
			return Unchanged, nil
		}
		w.log.Debug("empty fragment, stepped back")
		w.record(SteppedBack)
		return SteppedBack, nil
	}

	state, err := w.target.Reload(ctx)
	if err != nil {
		return Reloaded, err
	}
	w.log.Info("fragment changed, reloaded", "fragment", security.SanitizeForLog(live),
		"applied", len(state.Applied), "ignored", len(state.Ignored))
	w.record(Reloaded)
	return Reloaded, nil
}

func (w *Watcher) record(o TickOutcome) {
	if w.recorder != nil {
		w.recorder.Navigated(o.String())
	}
}

// Start ticks until ctx is done or Stop is called. Navigators that
// implement fragment.Notifier trigger an immediate tick on change.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Info("Starting watcher", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var changes <-chan struct{}
	if n, ok := w.nav.(fragment.Notifier); ok {
		changes = n.Changes()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
		case <-changes:
		}

		if _, err := w.Tick(ctx); err != nil {
			w.log.WithError(err).Warn("reload failed")
		}
	}
}

// Stop ends Start. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}
