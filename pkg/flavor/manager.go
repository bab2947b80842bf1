package flavor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"guttervoice/pkg/ai"
)

// Pool sizing and request deadlines. The bark and graffiti targets match the
// client-side consumption rate of roughly one race; the low watermarks leave
// enough runway for a slow batch fetch to land before a pool drains.
const (
	DefaultBarkTarget     = 20
	DefaultBarkLow        = 5
	DefaultGraffitiTarget = 30
	DefaultGraffitiLow    = 10

	DefaultTickInterval      = 5 * time.Second
	DefaultDeathQuipTimeout  = 3 * time.Second
	DefaultCommentaryTimeout = 2 * time.Second

	probeTimeout = 10 * time.Second
	batchTimeout = 45 * time.Second
)

type requestKind string

const (
	kindDeathQuip  requestKind = "death_quip"
	kindCommentary requestKind = "commentary"
)

// pendingRequest tracks one outstanding on-demand generation. The uuid ties
// the timeout and the generator response to this exact request, so a
// completion arriving after the request was resolved or superseded is
// dropped instead of firing a stale callback.
type pendingRequest struct {
	id    uuid.UUID
	timer *time.Timer
	fn    func(string)
}

// Stats is a point-in-time snapshot of the manager.
type Stats struct {
	Available bool      `json:"available"`
	Barks     PoolStats `json:"barks"`
	Graffiti  PoolStats `json:"graffiti"`
}

// Manager owns bounded pools of pre-fetched flavor text and serves them
// without blocking, topping the pools up from a slow, unreliable generator
// in the background. Every operation degrades to canned content or an empty
// result; nothing the generator does is fatal.
type Manager struct {
	gen ai.TextGenerator

	barks    *Pool[BarkItem]
	graffiti *Pool[GraffitiItem]

	fallbackMu sync.Mutex
	fallback   *fallbackPicker

	mu      sync.Mutex
	pending map[requestKind]*pendingRequest

	available atomic.Bool
	running   atomic.Bool
	stopChan  chan struct{}

	tick              time.Duration
	deathQuipTimeout  time.Duration
	commentaryTimeout time.Duration
}

// Option tunes a Manager.
type Option func(*Manager)

// WithTickInterval overrides the refill scheduler period.
func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.tick = d
		}
	}
}

// WithRequestTimeouts overrides the death-quip and commentary deadlines.
func WithRequestTimeouts(deathQuip, commentary time.Duration) Option {
	return func(m *Manager) {
		if deathQuip > 0 {
			m.deathQuipTimeout = deathQuip
		}
		if commentary > 0 {
			m.commentaryTimeout = commentary
		}
	}
}

// WithBarkPool overrides the bark pool target size and low watermark.
func WithBarkPool(target, low int) Option {
	return func(m *Manager) {
		if target > 0 && low >= 0 && low <= target {
			m.barks = NewPool[BarkItem]("barks", target, low)
		}
	}
}

// WithGraffitiPool overrides the graffiti pool target size and low watermark.
func WithGraffitiPool(target, low int) Option {
	return func(m *Manager) {
		if target > 0 && low >= 0 && low <= target {
			m.graffiti = NewPool[GraffitiItem]("graffiti", target, low)
		}
	}
}

// NewManager builds a manager around the given generator. gen may be nil,
// in which case the manager serves fallbacks only.
func NewManager(gen ai.TextGenerator, opts ...Option) *Manager {
	m := &Manager{
		gen:               gen,
		barks:             NewPool[BarkItem]("barks", DefaultBarkTarget, DefaultBarkLow),
		graffiti:          NewPool[GraffitiItem]("graffiti", DefaultGraffitiTarget, DefaultGraffitiLow),
		fallback:          newFallbackPicker(),
		pending:           make(map[requestKind]*pendingRequest),
		tick:              DefaultTickInterval,
		deathQuipTimeout:  DefaultDeathQuipTimeout,
		commentaryTimeout: DefaultCommentaryTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start probes the generator once and, when it answers, warms both pools and
// starts the refill loop. Availability is decided here for the life of the
// process; there is no re-probing. Calling Start more than once is a no-op.
func (m *Manager) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}
	m.stopChan = make(chan struct{})

	if m.gen == nil {
		slog.Info("no text generator configured, serving fallbacks only")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := m.gen.GenerateText(probeCtx, probeSystemPrompt, probeUserPrompt); err != nil {
		slog.Warn("text generator probe failed, serving fallbacks only", "err", err)
		return
	}
	m.available.Store(true)
	slog.Info("text generator available",
		"bark_target", m.barks.target, "graffiti_target", m.graffiti.target)

	go func() {
		g := new(errgroup.Group)
		g.Go(func() error { return m.refillBarks(ctx) })
		g.Go(func() error { return m.refillGraffiti(ctx) })
		if err := g.Wait(); err != nil {
			slog.Warn("initial pool warm-up incomplete", "err", err)
		}
	}()
	go m.refillLoop(ctx)
}

// Stop halts the refill loop. Serving continues from whatever is pooled.
func (m *Manager) Stop() {
	if !m.running.Swap(false) {
		return
	}
	close(m.stopChan)
}

// Available reports whether the start-up probe reached the generator.
func (m *Manager) Available() bool {
	return m.available.Load()
}

// Stats returns a snapshot for the status endpoint.
func (m *Manager) Stats() Stats {
	return Stats{
		Available: m.available.Load(),
		Barks:     m.barks.Stats(),
		Graffiti:  m.graffiti.Stats(),
	}
}

// GetBark returns the next pooled bark line, or a canned line for the event
// category when the generator is unavailable or the pool is empty. It never
// blocks and never returns an empty string.
func (m *Manager) GetBark(category string) string {
	return m.GetBarkWithEmotion(category).Line
}

// GetBarkWithEmotion is GetBark plus the emotion tag. Fallback lines carry
// the "excited" emotion.
func (m *Manager) GetBarkWithEmotion(category string) BarkItem {
	if item, ok := m.PopBark(); ok {
		return item
	}
	return m.FallbackBark(category)
}

// PopBark returns the next pooled bark without falling back. ok is false
// when the generator is unavailable or the pool is empty.
func (m *Manager) PopBark() (BarkItem, bool) {
	if !m.available.Load() {
		return BarkItem{}, false
	}
	return m.barks.Pop()
}

// GetGraffiti returns the next pooled graffiti text or an empty string. The
// caller owns graffiti fallback content; repeated calls on an empty pool are
// harmless.
func (m *Manager) GetGraffiti() string {
	item, ok := m.GetGraffitiItem()
	if !ok {
		return ""
	}
	return item.Text
}

// GetGraffitiItem returns the next pooled graffiti item, ok=false when the
// pool is empty or the generator is unavailable.
func (m *Manager) GetGraffitiItem() (GraffitiItem, bool) {
	if !m.available.Load() {
		return GraffitiItem{}, false
	}
	return m.graffiti.Pop()
}

// RequestDeathQuip asks the generator for a one-off dying line. fn is
// invoked exactly once, from a manager goroutine, within the death-quip
// timeout: with the quip on success, with "" on failure, timeout, or when
// the generator is unavailable. A second request issued before the first
// resolves supersedes it; the superseded callback fires immediately with "".
func (m *Manager) RequestDeathQuip(ctx context.Context, deathContext string, fn func(string)) {
	m.request(ctx, kindDeathQuip, m.deathQuipTimeout, deathQuipSystemPrompt, deathQuipPrompt(deathContext), fn)
}

// RequestCommentary asks the generator for a one-off commentary line. Same
// contract as RequestDeathQuip with the commentary timeout.
func (m *Manager) RequestCommentary(ctx context.Context, raceState string, fn func(string)) {
	m.request(ctx, kindCommentary, m.commentaryTimeout, commentarySystemPrompt, commentaryPrompt(raceState), fn)
}

func (m *Manager) request(ctx context.Context, kind requestKind, timeout time.Duration, system, prompt string, fn func(string)) {
	if fn == nil {
		return
	}
	if !m.available.Load() {
		fn("")
		return
	}

	id := uuid.New()
	p := &pendingRequest{id: id, fn: fn}

	m.mu.Lock()
	prev := m.pending[kind]
	if prev != nil {
		prev.timer.Stop()
	}
	p.timer = time.AfterFunc(timeout, func() { m.finish(kind, id, "") })
	m.pending[kind] = p
	m.mu.Unlock()

	if prev != nil {
		prev.fn("")
	}

	go func() {
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		line := ""
		resp, err := m.gen.GenerateText(gctx, system, prompt)
		if err == nil {
			line = parseSingleLine(resp)
		} else {
			slog.Debug("on-demand generation failed", "kind", string(kind), "err", err)
		}
		m.finish(kind, id, line)
	}()
}

// finish resolves a pending request. The first caller for a given id wins;
// anything arriving for an id that is no longer pending is dropped.
func (m *Manager) finish(kind requestKind, id uuid.UUID, line string) {
	m.mu.Lock()
	p := m.pending[kind]
	if p == nil || p.id != id {
		m.mu.Unlock()
		return
	}
	delete(m.pending, kind)
	m.mu.Unlock()

	p.timer.Stop()
	p.fn(line)
}

func (m *Manager) refillLoop(ctx context.Context) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			go func() {
				if err := m.refillBarks(ctx); err != nil {
					slog.Warn("bark refill failed", "err", err)
				}
			}()
			go func() {
				if err := m.refillGraffiti(ctx); err != nil {
					slog.Warn("graffiti refill failed", "err", err)
				}
			}()
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// refillBarks fetches one batch when the bark pool is below its watermark
// and no fetch is in flight. The in-flight slot is always released, so a
// failed batch just leaves the pool low for the next tick.
func (m *Manager) refillBarks(ctx context.Context) error {
	need, ok := m.barks.TryBeginRefill()
	if !ok {
		return nil
	}
	defer m.barks.EndRefill()

	bctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()
	resp, err := m.gen.GenerateText(bctx, barkSystemPrompt, barkBatchPrompt(need))
	if err != nil {
		return fmt.Errorf("bark batch: %w", err)
	}
	items := parseBarkBatch(resp)
	if len(items) == 0 {
		return fmt.Errorf("bark batch: no usable items in response")
	}
	m.barks.Push(items...)
	slog.Debug("bark pool refilled", "requested", need, "added", len(items))
	return nil
}

func (m *Manager) refillGraffiti(ctx context.Context) error {
	need, ok := m.graffiti.TryBeginRefill()
	if !ok {
		return nil
	}
	defer m.graffiti.EndRefill()

	bctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()
	resp, err := m.gen.GenerateText(bctx, graffitiSystemPrompt, graffitiBatchPrompt(need))
	if err != nil {
		return fmt.Errorf("graffiti batch: %w", err)
	}
	items := parseGraffitiBatch(resp)
	if len(items) == 0 {
		return fmt.Errorf("graffiti batch: no usable items in response")
	}
	m.graffiti.Push(items...)
	slog.Debug("graffiti pool refilled", "requested", need, "added", len(items))
	return nil
}

const (
	probeSystemPrompt = "You are a health check."
	probeUserPrompt   = "Reply with the single word OK."
)
