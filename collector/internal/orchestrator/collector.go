// Package orchestrator owns the collector state: the endpoint registry, the
// calculation connection, the reading log and the last computed summaries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/splax/hydrobench/pkg/domain"
	"github.com/splax/hydrobench/pkg/hydrorpc"
)

const (
	DefaultProbeTimeout   = 3 * time.Second
	DefaultPollTimeout    = 5 * time.Second
	DefaultComputeTimeout = 10 * time.Second
	defaultInterval       = 30 * time.Second
)

var (
	// ErrCalculationNotConfigured is returned by ComputeMetrics before any
	// calculation address was configured.
	ErrCalculationNotConfigured = errors.New("calculation service not configured")
	// ErrNoReadings is returned by ComputeMetrics while the reading log is empty.
	ErrNoReadings = errors.New("no readings collected")
)

// State is the connection state of an endpoint.
type State string

const (
	StateUnknown      State = "unknown"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// Endpoint is a snapshot of a registered bench.
type Endpoint struct {
	ID            int           `json:"id"`
	Address       string        `json:"address"`
	State         State         `json:"state"`
	LastErrorKind hydrorpc.Kind `json:"last_error_kind,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
	LastSeen      *time.Time    `json:"last_seen,omitempty"`
}

// Connected reports whether the last call to the endpoint succeeded.
func (e Endpoint) Connected() bool {
	return e.State == StateConnected
}

// Outcome is the result of polling one endpoint.
type Outcome struct {
	EndpointID int             `json:"endpoint_id"`
	Address    string          `json:"address"`
	Kind       hydrorpc.Kind   `json:"kind"`
	Error      string          `json:"error,omitempty"`
	Reading    *domain.Reading `json:"reading,omitempty"`
}

// OK reports whether the poll produced a reading.
func (o Outcome) OK() bool {
	return o.Kind == hydrorpc.KindNone
}

// CollectResult summarises one CollectAll pass.
type CollectResult struct {
	RunID     string    `json:"run_id"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
}

// CallError wraps a failed remote call with its classification.
type CallError struct {
	Kind hydrorpc.Kind
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Sink receives data produced by the collector. Sinks are called after the
// operation lock is released, so a slow sink delays only the caller that
// produced the data.
type Sink interface {
	PublishReadings(ctx context.Context, readings []domain.Reading)
	PublishSummaries(ctx context.Context, summaries []domain.MetricSummary)
}

type endpoint struct {
	Endpoint
	conn   *grpc.ClientConn
	client *hydrorpc.BenchClient
}

type calculation struct {
	address   string
	conn      *grpc.ClientConn
	client    *hydrorpc.CalculationClient
	connected bool
}

// Collector polls benches and forwards their readings to the calculation
// service. All exported methods are safe for concurrent use; operations that
// issue remote calls run one at a time.
type Collector struct {
	logger *slog.Logger
	now    func() time.Time

	probeTimeout   time.Duration
	pollTimeout    time.Duration
	computeTimeout time.Duration
	concurrency    int
	dialOpts       []grpc.DialOption
	sinks          []Sink

	opMu sync.Mutex

	mu        sync.RWMutex
	nextID    int
	endpoints []*endpoint
	calc      *calculation
	readings  []domain.Reading
	summaries []domain.MetricSummary
}

// Option customises a Collector.
type Option func(*Collector)

// WithProbeTimeout bounds liveness probes.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithPollTimeout bounds every SendData call made by CollectAll.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.pollTimeout = d
		}
	}
}

// WithComputeTimeout bounds the ComputeMetrics call.
func WithComputeTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.computeTimeout = d
		}
	}
}

// WithConcurrency allows up to n polls in flight. 1 polls strictly in order.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithDialOptions appends options to every channel the collector opens.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Collector) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// WithSink registers a receiver for collected readings and computed summaries.
func WithSink(s Sink) Option {
	return func(c *Collector) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs an empty Collector.
func New(logger *slog.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		logger:         logger.With("component", "collector"),
		now:            time.Now,
		probeTimeout:   DefaultProbeTimeout,
		pollTimeout:    DefaultPollTimeout,
		computeTimeout: DefaultComputeTimeout,
		concurrency:    1,
		nextID:         1,
	}
	for _, opt := range opts {
		opt(c)
	}
	initMetrics()
	return c
}

// RegisterEndpoint opens a channel to address, probes it and stores the
// endpoint whatever the probe outcome. It never fails.
func (c *Collector) RegisterEndpoint(ctx context.Context, address string) Endpoint {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	address = strings.TrimSpace(address)
	c.mu.Lock()
	ep := &endpoint{Endpoint: Endpoint{ID: c.nextID, Address: address, State: StateUnknown}}
	c.nextID++
	c.endpoints = append(c.endpoints, ep)
	c.mu.Unlock()

	conn, err := hydrorpc.Dial(address, c.dialOpts...)
	if err != nil {
		c.logger.Warn("endpoint channel rejected", "endpoint_id", ep.ID, "address", address, "error", err)
		c.mu.Lock()
		c.markFailed(ep, fmt.Errorf("%w: %v", hydrorpc.ErrMalformed, err))
		snapshot := ep.Endpoint
		c.mu.Unlock()
		c.updateGauges()
		return snapshot
	}

	c.mu.Lock()
	ep.conn = conn
	ep.client = hydrorpc.NewBenchClient(conn)
	c.mu.Unlock()

	_, err = c.call(ctx, ep.client, c.probeTimeout)
	c.mu.Lock()
	if err != nil {
		c.markFailed(ep, err)
	} else {
		c.markSeen(ep)
	}
	snapshot := ep.Endpoint
	c.mu.Unlock()

	c.updateGauges()
	c.logger.Info("endpoint registered", "endpoint_id", snapshot.ID, "address", address, "state", snapshot.State, "kind", snapshot.LastErrorKind)
	return snapshot
}

type pollTarget struct {
	ep     *endpoint
	id     int
	addr   string
	client *hydrorpc.BenchClient
}

// CollectAll polls every registered endpoint once, in registration order.
// Partial failures are reported in the result, never as an error.
func (c *Collector) CollectAll(ctx context.Context) CollectResult {
	c.opMu.Lock()
	result, collected := c.collect(ctx)
	c.opMu.Unlock()

	if len(collected) > 0 {
		for _, sink := range c.sinks {
			sink.PublishReadings(ctx, collected)
		}
	}
	return result
}

// collect requires c.opMu.
func (c *Collector) collect(ctx context.Context) (CollectResult, []domain.Reading) {
	c.mu.RLock()
	targets := make([]pollTarget, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		targets = append(targets, pollTarget{ep: ep, id: ep.ID, addr: ep.Address, client: ep.client})
	}
	c.mu.RUnlock()

	result := CollectResult{RunID: uuid.NewString(), Outcomes: make([]Outcome, len(targets))}
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			outcome := Outcome{EndpointID: target.id, Address: target.addr}
			if target.client == nil {
				errs[i] = fmt.Errorf("%w: no channel for %s", hydrorpc.ErrMalformed, target.addr)
			} else {
				start := time.Now()
				reading, err := c.call(ctx, target.client, c.pollTimeout)
				observePoll(time.Since(start))
				if err != nil {
					errs[i] = err
				} else {
					outcome.Reading = &reading
				}
			}
			outcome.Kind = hydrorpc.Classify(errs[i])
			if errs[i] != nil {
				outcome.Error = errs[i].Error()
			}
			result.Outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()

	collected := make([]domain.Reading, 0, len(targets))
	c.mu.Lock()
	for i, target := range targets {
		outcome := result.Outcomes[i]
		recordPoll(outcome.Kind)
		if outcome.Reading == nil {
			c.markFailed(target.ep, errs[i])
			result.Failed++
			continue
		}
		c.markSeen(target.ep)
		c.readings = append(c.readings, *outcome.Reading)
		collected = append(collected, *outcome.Reading)
		result.Succeeded++
	}
	c.mu.Unlock()
	c.updateGauges()

	for _, outcome := range result.Outcomes {
		if !outcome.OK() {
			c.logger.Warn("endpoint poll failed", "run_id", result.RunID, "endpoint_id", outcome.EndpointID, "address", outcome.Address, "kind", outcome.Kind, "error", outcome.Error)
		}
	}
	c.logger.Info("collection finished", "run_id", result.RunID, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, collected
}

// ComputeMetrics re-probes the calculation service and sends it the whole
// reading log. The log is kept whatever the outcome.
func (c *Collector) ComputeMetrics(ctx context.Context) ([]domain.MetricSummary, error) {
	c.opMu.Lock()
	summaries, err := c.compute(ctx)
	c.opMu.Unlock()
	if err != nil {
		return nil, err
	}

	for _, sink := range c.sinks {
		sink.PublishSummaries(ctx, append([]domain.MetricSummary(nil), summaries...))
	}
	return summaries, nil
}

// compute requires c.opMu. An empty log is reported before a missing
// calculation service.
func (c *Collector) compute(ctx context.Context) ([]domain.MetricSummary, error) {
	c.mu.RLock()
	calc := c.calc
	readings := append([]domain.Reading(nil), c.readings...)
	c.mu.RUnlock()

	if len(readings) == 0 {
		return nil, ErrNoReadings
	}
	if calc == nil {
		return nil, ErrCalculationNotConfigured
	}

	if err := c.probeCalculation(ctx, calc); err != nil {
		recordCompute(hydrorpc.Classify(err))
		c.logger.Warn("calculation service unreachable", "address", calc.address, "error", err)
		return nil, &CallError{Kind: hydrorpc.Classify(err), Err: fmt.Errorf("probe %s: %w", calc.address, err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.computeTimeout)
	defer cancel()
	out, err := calc.client.ComputeMetrics(callCtx, hydrorpc.NewReadingBatch(readings))
	if err == nil {
		var summaries []domain.MetricSummary
		summaries, err = out.Domain()
		if err == nil {
			c.mu.Lock()
			c.summaries = summaries
			c.mu.Unlock()
			recordCompute(hydrorpc.KindNone)
			c.logger.Info("metrics computed", "readings", len(readings), "sources", len(summaries))
			return append([]domain.MetricSummary(nil), summaries...), nil
		}
	}

	kind := hydrorpc.Classify(err)
	recordCompute(kind)
	c.setCalculationConnected(calc, kind != hydrorpc.KindUnavailable && kind != hydrorpc.KindTimeout)
	c.logger.Warn("metrics computation failed", "address", calc.address, "kind", kind, "error", err)
	return nil, &CallError{Kind: kind, Err: fmt.Errorf("compute metrics: %w", err)}
}

// ConfigureCalculation replaces the calculation connection with one to
// address and reports whether it answered a probe. Earlier failed
// computations are not replayed.
func (c *Collector) ConfigureCalculation(ctx context.Context, address string) (bool, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	address = strings.TrimSpace(address)
	if address == "" {
		return false, fmt.Errorf("%w: calculation address is empty", hydrorpc.ErrMalformed)
	}
	conn, err := hydrorpc.Dial(address, c.dialOpts...)
	if err != nil {
		return false, fmt.Errorf("open calculation channel %s: %w", address, err)
	}
	next := &calculation{address: address, conn: conn, client: hydrorpc.NewCalculationClient(conn)}

	c.mu.Lock()
	prev := c.calc
	c.calc = next
	c.mu.Unlock()
	if prev != nil && prev.conn != nil {
		if err := prev.conn.Close(); err != nil {
			c.logger.Debug("closing previous calculation channel", "address", prev.address, "error", err)
		}
	}

	if err := c.probeCalculation(ctx, next); err != nil {
		c.logger.Warn("calculation service configured but unreachable", "address", address, "kind", hydrorpc.Classify(err), "error", err)
		return false, nil
	}
	c.logger.Info("calculation service configured", "address", address)
	return true, nil
}

// Run collects and computes on every tick until ctx is cancelled.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("collector loop started", "interval", interval)
	c.runIteration(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector loop stopped")
			return
		case <-ticker.C:
			c.runIteration(ctx)
		}
	}
}

func (c *Collector) runIteration(ctx context.Context) {
	c.CollectAll(ctx)
	if ctx.Err() != nil {
		return
	}
	if _, err := c.ComputeMetrics(ctx); err != nil {
		switch {
		case errors.Is(err, ErrCalculationNotConfigured), errors.Is(err, ErrNoReadings):
			c.logger.Debug("skipping computation", "reason", err)
		default:
			c.logger.Warn("computation failed", "error", err)
		}
	}
}

// Close releases every channel.
func (c *Collector) Close() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, ep := range c.endpoints {
		if ep.conn != nil {
			if err := ep.conn.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close endpoint %d: %w", ep.ID, err))
			}
			ep.conn = nil
			ep.client = nil
		}
	}
	if c.calc != nil && c.calc.conn != nil {
		if err := c.calc.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close calculation channel: %w", err))
		}
		c.calc = nil
	}
	return errors.Join(errs...)
}

// Endpoints returns a snapshot of the registry in registration order.
func (c *Collector) Endpoints() []Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Endpoint, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		snapshot := ep.Endpoint
		if ep.LastSeen != nil {
			seen := *ep.LastSeen
			snapshot.LastSeen = &seen
		}
		out = append(out, snapshot)
	}
	return out
}

// Readings returns a copy of the reading log.
func (c *Collector) Readings() []domain.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Reading(nil), c.readings...)
}

// Summaries returns the last computed summaries.
func (c *Collector) Summaries() []domain.MetricSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.MetricSummary(nil), c.summaries...)
}

// CalculationAddress returns the configured calculation address and whether
// its last probe succeeded.
func (c *Collector) CalculationAddress() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.calc == nil {
		return "", false
	}
	return c.calc.address, c.calc.connected
}

func (c *Collector) call(ctx context.Context, client *hydrorpc.BenchClient, timeout time.Duration) (domain.Reading, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := client.SendData(callCtx, &hydrorpc.Empty{})
	if err != nil {
		return domain.Reading{}, err
	}
	return out.Domain()
}

func (c *Collector) probeCalculation(ctx context.Context, calc *calculation) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	_, err := calc.client.ComputeMetrics(probeCtx, &hydrorpc.ReadingBatch{Readings: []*hydrorpc.Reading{}})
	c.setCalculationConnected(calc, err == nil)
	return err
}

func (c *Collector) setCalculationConnected(calc *calculation, connected bool) {
	c.mu.Lock()
	calc.connected = connected
	c.mu.Unlock()
}

// markFailed and markSeen require c.mu held for writing.
func (c *Collector) markFailed(ep *endpoint, err error) {
	ep.State = StateDisconnected
	ep.LastErrorKind = hydrorpc.Classify(err)
	if err != nil {
		ep.LastError = err.Error()
	}
}

func (c *Collector) markSeen(ep *endpoint) {
	seen := c.now().UTC()
	ep.State = StateConnected
	ep.LastErrorKind = ""
	ep.LastError = ""
	ep.LastSeen = &seen
}

func (c *Collector) updateGauges() {
	c.mu.RLock()
	connected := 0
	for _, ep := range c.endpoints {
		if ep.State == StateConnected {
			connected++
		}
	}
	total := len(c.endpoints)
	logSize := len(c.readings)
	c.mu.RUnlock()
	setGauges(total, connected, logSize)
}
