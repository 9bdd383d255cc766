// Package manager coordinates widgets, the query they build together, the
// transport that runs it and the fragment that remembers it.
//
// A request goes through four steps: build the query from every widget,
// tell every widget it is loading, hand the query to the transport, and
// persist it in the fragment. Each request gets a sequence number; only the
// response to the latest request is applied, older ones are discarded.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ricesearch/rice-facets/internal/bus"
	"github.com/ricesearch/rice-facets/internal/fragment"
	ricectx "github.com/ricesearch/rice-facets/internal/pkg/context"
	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
	"github.com/ricesearch/rice-facets/internal/pkg/security"
	"github.com/ricesearch/rice-facets/internal/query"
	"github.com/ricesearch/rice-facets/internal/transport"
	"github.com/ricesearch/rice-facets/internal/widget"
)

// Recorder receives lifecycle measurements. This avoids import cycles with
// the metrics package.
type Recorder interface {
	RequestIssued()
	ResultApplied(latency time.Duration)
	StaleDiscarded()
	TransportFailed()
	WidgetsRegistered(n int)
}

type nopRecorder struct{}

func (nopRecorder) RequestIssued()              {}
func (nopRecorder) ResultApplied(time.Duration) {}
func (nopRecorder) StaleDiscarded()             {}
func (nopRecorder) TransportFailed()            {}
func (nopRecorder) WidgetsRegistered(int)       {}

// Options configures a Manager. Transport is required.
type Options struct {
	Transport transport.Transport

	// Navigator holds the fragment. Defaults to an empty MemoryNavigator.
	Navigator fragment.Navigator

	// Base is copied into every query before widgets alter it.
	Base query.Base

	// HighlightField is sent as hl.fl. Defaults to "text".
	HighlightField string

	// Admit decides which widgets may register. Defaults to admitting all.
	Admit widget.AdmitFunc

	Logger    *logger.Logger
	Recorder  Recorder
	Publisher bus.Publisher
}

// Manager is the request orchestrator. It is safe for concurrent use; all
// state changes happen under one mutex, and widget hooks run with it held.
type Manager struct {
	mu         sync.Mutex
	registry   *widget.Registry
	base       query.Base
	serializer query.Serializer
	codec      *fragment.Codec
	transport  transport.Transport

	seq    uint64
	cancel context.CancelFunc
	issued time.Time

	session   string
	recorder  Recorder
	publisher bus.Publisher
	log       *logger.Logger
}

var _ widget.Coordinator = (*Manager)(nil)

// New creates a manager. It fails with TRANSPORT_MISSING when no transport
// is configured.
func New(opts Options) (*Manager, error) {
	if opts.Transport == nil {
		return nil, errors.TransportMissingError()
	}
	if opts.Navigator == nil {
		opts.Navigator = fragment.NewMemoryNavigator("")
	}
	if opts.HighlightField == "" {
		opts.HighlightField = "text"
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Publisher == nil {
		opts.Publisher = bus.Discard{}
	}

	return &Manager{
		registry:   widget.NewRegistry(opts.Admit),
		base:       opts.Base,
		serializer: query.Serializer{HighlightField: opts.HighlightField},
		codec:      fragment.NewCodec(opts.Navigator),
		transport:  opts.Transport,
		session:    uuid.NewString(),
		recorder:   opts.Recorder,
		publisher:  opts.Publisher,
		log:        opts.Logger.WithComponent("manager"),
	}, nil
}

// Register adds w to the registry. AfterRegistration runs before Register
// returns, with the manager lock held.
func (m *Manager) Register(w widget.Widget) error {
	m.mu.Lock()
	err := m.registry.Register(w, m)
	n := m.registry.Len()
	m.mu.Unlock()

	if err != nil {
		m.log.WithWidget(w.ID()).Warn("widget not registered", "error", err)
		return err
	}
	m.recorder.WidgetsRegistered(n)
	m.log.WithWidget(w.ID()).Debug("widget registered")
	return nil
}

// Replace swaps the widget with w's id for w, keeping its position.
func (m *Manager) Replace(w widget.Widget) error {
	m.mu.Lock()
	err := m.registry.Replace(w, m)
	n := m.registry.Len()
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.recorder.WidgetsRegistered(n)
	return nil
}

// Widget returns the widget registered under id.
func (m *Manager) Widget(id string) (widget.Widget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Get(id)
}

// WidgetIDs returns the registered ids in registration order.
func (m *Manager) WidgetIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.IDs()
}

// Seq returns the sequence number of the latest issued request.
func (m *Manager) Seq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// Build returns a fresh query from the base filters and every widget.
// It does not issue a request.
func (m *Manager) Build(start int) *query.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return query.Build(m.base, start, m.registry.Alterers())
}

// QueryString serializes q for the backend. With skipEncoding the values
// are left readable.
func (m *Manager) QueryString(q *query.Query, skipEncoding bool) string {
	return m.serializer.Serialize(q, skipEncoding)
}

// LastKnownFragment returns the fragment last written or read.
func (m *Manager) LastKnownFragment() string {
	return m.codec.LastKnown()
}

// Navigator returns the navigator the manager persists into.
func (m *Manager) Navigator() fragment.Navigator {
	return m.codec.Navigator()
}

// RunRequest builds a query at start, cancels the previous in-flight
// request, broadcasts StartAnimation and DisplayQuery, hands the query to
// the transport and persists it if it is still the latest request.
func (m *Manager) RunRequest(ctx context.Context, start int) (uint64, error) {
	m.mu.Lock()
	q := query.Build(m.base, start, m.registry.Alterers())
	m.seq++
	seq := m.seq
	q.Seq = seq

	if m.cancel != nil {
		m.cancel()
	}
	rctx, cancel := context.WithCancel(ricectx.WithCorrelationID(ctx, m.correlationID(seq)))
	m.cancel = cancel
	m.issued = time.Now()

	m.registry.Each(func(w widget.Widget) { w.StartAnimation() })
	m.registry.Each(func(w widget.Widget) { w.DisplayQuery(q) })
	m.mu.Unlock()

	log := m.log.WithRequest(seq)
	log.Debug("request issued", "start", q.Start, "query", m.serializer.Serialize(q, true))
	m.recorder.RequestIssued()
	m.publish(ctx, bus.TopicRequest, seq, bus.RequestPayload{
		Seq:   seq,
		Start: q.Start,
		Query: m.serializer.Serialize(q, false),
	})

	err := m.transport.Execute(rctx, q, func(res *query.Result, err error) {
		m.deliver(seq, res, err)
	})
	if err != nil {
		log.Warn("transport did not start the request", "error", err)
		m.HandleError(seq, err)
		return seq, errors.TransportError("starting request", err)
	}

	m.mu.Lock()
	if seq == m.seq {
		m.codec.Encode(q)
	}
	m.mu.Unlock()

	return seq, nil
}

func (m *Manager) deliver(seq uint64, res *query.Result, err error) {
	if err != nil {
		m.HandleError(seq, err)
		return
	}
	if err := m.HandleResult(seq, res); err != nil && !errors.IsStale(err) {
		m.log.WithRequest(seq).Warn("result not applied", "error", err)
	}
}

// HandleResult applies res to every widget, then ends every widget's
// loading state. A response to anything but the latest request is
// discarded with a STALE_RESPONSE error.
func (m *Manager) HandleResult(seq uint64, res *query.Result) error {
	m.mu.Lock()
	if seq != m.seq {
		latest := m.seq
		m.mu.Unlock()
		m.discard(seq, latest)
		return errors.StaleResponseError(seq, latest)
	}

	m.registry.Each(func(w widget.Widget) { w.HandleResult(res) })
	m.registry.Each(func(w widget.Widget) { w.EndAnimation() })
	latency := time.Since(m.issued)
	m.release()
	m.mu.Unlock()

	payload := bus.ResultPayload{Seq: seq, LatencyMs: latency.Milliseconds()}
	if res != nil {
		payload.NumFound = res.NumFound
		payload.QTime = res.QTime
	}
	m.log.WithRequest(seq).Debug("result applied", "num_found", payload.NumFound, "latency", latency)
	m.recorder.ResultApplied(latency)
	m.publish(context.Background(), bus.TopicResult, seq, payload)
	return nil
}

// HandleError reports a transport failure. Failures of superseded requests
// (including the cancellation the manager caused) are discarded with a
// STALE_RESPONSE error; otherwise the failure is logged and published and
// every widget's loading state ends.
func (m *Manager) HandleError(seq uint64, err error) error {
	m.mu.Lock()
	if seq != m.seq {
		latest := m.seq
		m.mu.Unlock()
		m.discard(seq, latest)
		return errors.StaleResponseError(seq, latest)
	}

	m.registry.Each(func(w widget.Widget) { w.EndAnimation() })
	m.release()
	m.mu.Unlock()

	m.log.WithRequest(seq).WithError(err).Error("request failed")
	m.recorder.TransportFailed()

	m.publish(context.Background(), bus.TopicError, seq, bus.ErrorPayload{
		Seq:     seq,
		Code:    errors.CodeOf(err),
		Message: err.Error(),
	})
	return nil
}

// release frees the latest request's context. Callers hold m.mu.
func (m *Manager) release() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Manager) discard(seq, latest uint64) {
	m.log.WithRequest(seq).Debug("discarding stale response", "latest", latest)
	m.recorder.StaleDiscarded()
	m.publish(context.Background(), bus.TopicStale, seq, bus.StalePayload{Seq: seq, Latest: latest})
}

// correlationID ties together the events and backend calls of one request.
func (m *Manager) correlationID(seq uint64) string {
	return fmt.Sprintf("%s/%d", m.session, seq)
}

func (m *Manager) publish(ctx context.Context, topic string, seq uint64, payload any) {
	event := bus.NewEvent(topic, m.session, m.correlationID(seq), payload)
	if err := m.publisher.Publish(ctx, topic, event); err != nil {
		m.log.Debug("event not published", "topic", topic, "error", err)
	}
}

// Init restores widget selections from the fragment and issues the first
// request at the restored start offset.
func (m *Manager) Init(ctx context.Context) (fragment.DecodeState, error) {
	state := m.Restore(ctx)
	_, err := m.RunRequest(ctx, state.Start)
	return state, err
}

// Reload re-reads the fragment after navigation the manager did not cause
// and issues a request for it.
func (m *Manager) Reload(ctx context.Context) (fragment.DecodeState, error) {
	return m.Init(ctx)
}

// Restore decodes the fragment into the widgets without issuing a request.
func (m *Manager) Restore(ctx context.Context) fragment.DecodeState {
	m.mu.Lock()
	state := m.codec.Decode(m.registry)
	m.mu.Unlock()

	ignored := make([]string, 0, len(state.Ignored))
	for _, o := range state.Ignored {
		m.log.Warn("ignoring fragment segment",
			"segment", security.SanitizeForLog(o.Segment), "widget", o.Widget, "error", o.Err)
		ignored = append(ignored, o.Segment)
	}

	m.publish(ctx, bus.TopicNavigation, 0, bus.NavigationPayload{
		Fragment: state.Fragment,
		Start:    state.Start,
		Applied:  len(state.Applied),
		Ignored:  ignored,
	})
	return state
}

// mutate runs fn on the widget registered under id while holding the lock.
func (m *Manager) mutate(id string, fn func(w widget.Widget) bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.registry.Get(id)
	if !ok {
		return false, errors.NotFoundError("widget " + id)
	}
	return fn(w), nil
}

// Apply runs fn on the widget registered under id without issuing a
// request, so several changes can be followed by a single RunRequest.
// It reports whether fn changed anything.
func (m *Manager) Apply(id string, fn func(w widget.Widget) bool) (bool, error) {
	return m.mutate(id, fn)
}

// Select adds items to the widget's selection and requests page 0 if the
// selection changed.
func (m *Manager) Select(ctx context.Context, id string, items ...string) (bool, error) {
	changed, err := m.mutate(id, func(w widget.Widget) bool { return w.Select(items...) })
	if err != nil || !changed {
		return false, err
	}
	_, err = m.RunRequest(ctx, 0)
	return true, err
}

// Deselect removes items from the widget's selection and requests page 0
// if the selection changed.
func (m *Manager) Deselect(ctx context.Context, id string, items ...string) (bool, error) {
	changed, err := m.mutate(id, func(w widget.Widget) bool { return w.Deselect(items...) })
	if err != nil || !changed {
		return false, err
	}
	_, err = m.RunRequest(ctx, 0)
	return true, err
}

// ClearWidget clears one widget and requests page 0.
func (m *Manager) ClearWidget(ctx context.Context, id string) error {
	if _, err := m.mutate(id, func(w widget.Widget) bool { w.Clear(); return true }); err != nil {
		return err
	}
	_, err := m.RunRequest(ctx, 0)
	return err
}

// SelectOnly clears every widget, leaves exactly items selected on id and
// requests page 0.
func (m *Manager) SelectOnly(ctx context.Context, id string, items ...string) error {
	m.mu.Lock()
	target, ok := m.registry.Get(id)
	if !ok {
		m.mu.Unlock()
		return errors.NotFoundError("widget " + id)
	}
	m.registry.Each(func(w widget.Widget) { w.Clear() })
	target.Select(items...)
	m.mu.Unlock()

	_, err := m.RunRequest(ctx, 0)
	return err
}

// KeepOnly clears every widget except id and requests page 0.
func (m *Manager) KeepOnly(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.registry.Get(id); !ok {
		m.mu.Unlock()
		return errors.NotFoundError("widget " + id)
	}
	m.registry.Each(func(w widget.Widget) {
		if w.ID() != id {
			w.Clear()
		}
	})
	m.mu.Unlock()

	_, err := m.RunRequest(ctx, 0)
	return err
}

// ClearAll clears every widget and requests page 0.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	m.registry.Each(func(w widget.Widget) { w.Clear() })
	m.mu.Unlock()

	_, err := m.RunRequest(ctx, 0)
	return err
}
