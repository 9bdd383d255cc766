package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ricesearch/rice-facets/internal/fragment"
	"github.com/ricesearch/rice-facets/internal/metrics"
	"github.com/ricesearch/rice-facets/internal/pkg/middleware"
	"github.com/ricesearch/rice-facets/internal/query"
	"github.com/ricesearch/rice-facets/internal/watch"
	"github.com/ricesearch/rice-facets/internal/widget"
)

// printerWidget prints one line per applied result.
type printerWidget struct {
	widget.Base
	out      io.Writer
	fragment string
}

func newPrinterWidget(out io.Writer) *printerWidget {
	return &printerWidget{Base: widget.NewBase("printer"), out: out}
}

func (p *printerWidget) DisplayQuery(q *query.Query) {
	p.fragment = fragment.Format(q)
}

func (p *printerWidget) HandleResult(res *query.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(p.out, "%s #%s  %d results (%dms)\n",
		time.Now().Format(time.TimeOnly), p.fragment, res.NumFound, res.QTime)
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow navigation changes and re-run the search",
		Long: `Run the saved search, then poll the navigation state and re-run the
search whenever it changes outside this process ('nav back', 'nav goto',
another 'search'). Stepping back past the first saved search steps back
once more, so an empty search is never run.

With a file navigator, changes are also picked up immediately through
file system notifications.`,
		RunE: runWatch,
	}

	cmd.Flags().Duration("interval", 0, "poll interval (default from config, 250ms)")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	interval := cfg.Watch.PollInterval()
	if cmd.Flags().Changed("interval") {
		interval, _ = cmd.Flags().GetDuration("interval")
	}
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr == "" && cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Addr
	}

	s, err := openSession(cfg, log, sessionOptions{metrics: metricsAddr != ""})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.manager.Register(newPrinterWidget(cmd.OutOrStdout())); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := s.manager.Init(ctx); err != nil {
		return err
	}

	cfgWatcher := watch.WatcherConfig{
		Navigator: s.nav,
		Target:    s.manager,
		Interval:  interval,
		Logger:    log,
	}
	if s.metrics != nil {
		cfgWatcher.Recorder = s.metrics
	}
	watcher := watch.NewWatcher(cfgWatcher)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Start(ctx) })

	if fnav, ok := s.nav.(*fragment.FileNavigator); ok {
		log.Info("Watching navigation state", "path", fnav.Path())
		g.Go(func() error { return fnav.Watch(ctx) })
	}
	if s.metrics != nil {
		var wrap []func(http.Handler) http.Handler
		if cfg.Metrics.RateLimit > 0 {
			rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
				RequestsPerSecond: cfg.Metrics.RateLimit,
				Burst:             max(1, int(cfg.Metrics.RateLimit)),
			})
			defer rl.Stop()
			wrap = append(wrap, rl.Middleware)
		}
		g.Go(func() error { return metrics.Serve(ctx, metricsAddr, s.metrics, log, wrap...) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
