package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-facets/internal/bus"
	"github.com/ricesearch/rice-facets/internal/config"
	"github.com/ricesearch/rice-facets/internal/fragment"
	"github.com/ricesearch/rice-facets/internal/manager"
	"github.com/ricesearch/rice-facets/internal/metrics"
	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
	"github.com/ricesearch/rice-facets/internal/query"
	"github.com/ricesearch/rice-facets/internal/transport"
	"github.com/ricesearch/rice-facets/internal/widget"
)

// loadConfig reads the --config file and environment, and builds the
// logger. Logs go to stderr so stdout stays parseable.
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return cfg, logger.NewWithWriter(os.Stderr, level, cfg.Log.Format), nil
}

func newNavigator(cfg *config.Config, log *logger.Logger) fragment.Navigator {
	if strings.ToLower(cfg.Navigation.Type) == "memory" {
		return fragment.NewMemoryNavigator("")
	}
	return fragment.NewFileNavigator(cfg.Navigation.StateFile, log)
}

// buildWidgets creates the configured widgets in order, with their default
// selections applied.
func buildWidgets(cfgs []config.WidgetConfig) ([]widget.Widget, error) {
	widgets := make([]widget.Widget, 0, len(cfgs))
	for _, wc := range cfgs {
		var w widget.Widget
		switch wc.Type {
		case config.WidgetText:
			w = widget.NewTextWidget()
		case config.WidgetFacet:
			w = widget.NewFacetWidget(wc.ID, wc.Field)
		case config.WidgetDate:
			w = widget.NewDateFacetWidget(wc.ID, query.DateFacet{
				Field: wc.Field,
				Start: wc.Start,
				End:   wc.End,
				Gap:   wc.Gap,
			})
		case config.WidgetSort:
			w = widget.NewSortWidget(wc.ID)
		case config.WidgetResults:
			w = widget.NewResultWidget(wc.ID, wc.Rows)
		default:
			return nil, errors.ValidationError(fmt.Sprintf("widget %s: unknown type %q", wc.ID, wc.Type))
		}
		if len(wc.Default) > 0 {
			w.Select(wc.Default...)
		}
		widgets = append(widgets, w)
	}
	return widgets, nil
}

// failureTracker remembers the last error a searcher returned, so a
// one-shot command can exit non-zero after an asynchronous failure.
type failureTracker struct {
	inner transport.Searcher

	mu   sync.Mutex
	last error
}

func (f *failureTracker) Search(ctx context.Context, q *query.Query) (*query.Result, error) {
	res, err := f.inner.Search(ctx, q)
	if err != nil {
		f.mu.Lock()
		f.last = err
		f.mu.Unlock()
	}
	return res, err
}

func (f *failureTracker) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type sessionOptions struct {
	// offline sessions build queries but never reach a backend.
	offline bool
	metrics bool
}

// session is everything one command needs to run searches.
type session struct {
	cfg     *config.Config
	log     *logger.Logger
	nav     fragment.Navigator
	widgets []widget.Widget
	manager *manager.Manager

	backend  *transport.Backend
	async    *transport.Async
	failures *failureTracker
	bus      bus.Bus
	metrics  *metrics.Metrics
}

func openSession(cfg *config.Config, log *logger.Logger, opts sessionOptions) (*session, error) {
	s := &session{cfg: cfg, log: log, nav: newNavigator(cfg, log)}

	base, err := cfg.Query.Base()
	if err != nil {
		return nil, err
	}

	var searcher transport.Searcher = transport.SearcherFunc(func(context.Context, *query.Query) (*query.Result, error) {
		return nil, errors.New(errors.CodeValidation, "offline session cannot search")
	})
	if !opts.offline {
		s.backend, err = transport.NewBackend(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend: %w", err)
		}
		searcher = s.backend.Searcher
	}
	s.failures = &failureTracker{inner: searcher}
	s.async = transport.NewAsync(s.failures)

	mopts := manager.Options{
		Transport:      s.async,
		Navigator:      s.nav,
		Base:           base,
		HighlightField: cfg.Query.HighlightField,
		Logger:         log,
	}

	if opts.metrics {
		s.metrics = metrics.New()
		mopts.Recorder = s.metrics
	}

	if !opts.offline {
		s.bus, err = bus.NewBus(cfg.Bus, log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		if s.metrics != nil {
			s.bus = bus.Tapped(s.bus, bus.MetricsTap(s.metrics))
		}
		mopts.Publisher = s.bus
	}

	s.manager, err = manager.New(mopts)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.widgets, err = buildWidgets(cfg.Widgets)
	if err != nil {
		s.Close()
		return nil, err
	}
	for _, w := range s.widgets {
		if err := s.manager.Register(w); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close waits for in-flight searches and releases the backend and bus.
func (s *session) Close() {
	if s.async != nil {
		s.async.Wait()
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.log.Warn("closing event bus", "error", err)
		}
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.log.Warn("closing backend", "error", err)
		}
	}
}

// selection is the set of changes requested on the command line.
type selection struct {
	clear    bool
	terms    []string
	selects  []string // widget=value
	deselect []string // widget=value
}

func parseAssignment(s string) (id, value string, err error) {
	id, value, ok := strings.Cut(s, "=")
	if !ok || id == "" {
		return "", "", errors.ValidationError(fmt.Sprintf("expected widget=value, got %q", s))
	}
	return id, value, nil
}

// apply stages sel on the manager's widgets without issuing a request.
func (sel selection) apply(m *manager.Manager) (bool, error) {
	changed := false

	if sel.clear {
		for _, id := range m.WidgetIDs() {
			if _, err := m.Apply(id, func(w widget.Widget) bool { w.Clear(); return true }); err != nil {
				return false, err
			}
		}
		changed = true
	}

	if len(sel.terms) > 0 {
		ch, err := m.Apply(widget.TextID, func(w widget.Widget) bool { return w.Select(sel.terms...) })
		if err != nil {
			return false, err
		}
		changed = changed || ch
	}

	for _, raw := range sel.selects {
		id, value, err := parseAssignment(raw)
		if err != nil {
			return false, err
		}
		ch, err := m.Apply(id, func(w widget.Widget) bool { return w.Select(value) })
		if err != nil {
			return false, err
		}
		changed = changed || ch
	}

	for _, raw := range sel.deselect {
		id, value, err := parseAssignment(raw)
		if err != nil {
			return false, err
		}
		ch, err := m.Apply(id, func(w widget.Widget) bool { return w.Deselect(value) })
		if err != nil {
			return false, err
		}
		changed = changed || ch
	}

	return changed, nil
}

func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("select", "s", nil, "select a value on a widget (widget=value, repeatable)")
	cmd.Flags().StringArrayP("deselect", "d", nil, "deselect a value on a widget (widget=value, repeatable)")
	cmd.Flags().Bool("clear", false, "clear every widget before applying selections")
	cmd.Flags().Int("start", 0, "result offset (default: restored offset, or 0 after a change)")
}

func selectionFromFlags(cmd *cobra.Command, args []string) selection {
	selects, _ := cmd.Flags().GetStringArray("select")
	deselects, _ := cmd.Flags().GetStringArray("deselect")
	clearAll, _ := cmd.Flags().GetBool("clear")
	return selection{clear: clearAll, terms: args, selects: selects, deselect: deselects}
}

// resolveStart picks the offset: an explicit --start wins, any selection
// change goes back to the first page, otherwise the restored offset stays.
func resolveStart(cmd *cobra.Command, restored int, changed bool) int {
	if cmd.Flags().Changed("start") {
		start, _ := cmd.Flags().GetInt("start")
		return start
	}
	if changed {
		return 0
	}
	return restored
}
