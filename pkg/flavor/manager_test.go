package flavor

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeGenerator scripts the external model per call.
type fakeGenerator struct {
	fn func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

func (f *fakeGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.fn(ctx, systemPrompt, userPrompt)
}

// probeOnly answers the availability probe and fails everything else, so a
// manager can be started "available" with empty pools.
func probeOnly() *fakeGenerator {
	return &fakeGenerator{fn: func(_ context.Context, systemPrompt, _ string) (string, error) {
		if systemPrompt == probeSystemPrompt {
			return "OK", nil
		}
		return "", context.DeadlineExceeded
	}}
}

// silent never responds until the context dies.
func silent() *fakeGenerator {
	return &fakeGenerator{fn: func(ctx context.Context, systemPrompt, _ string) (string, error) {
		if systemPrompt == probeSystemPrompt {
			return "OK", nil
		}
		<-ctx.Done()
		return "", ctx.Err()
	}}
}

func TestGetBarkFallbackWhenUnavailable(t *testing.T) {
	m := NewManager(nil)
	m.Start(context.Background())
	defer m.Stop()

	if m.Available() {
		t.Fatalf("manager with no generator must be unavailable")
	}

	stomp := map[string]bool{
		"SQUASH!": true, "SPLAT!": true, "CRUSHED!": true,
		"STOMPED!": true, "FLATTENED!": true, "PANCAKED!": true,
	}
	for i := 0; i < 10; i++ {
		line := m.GetBark(CategoryStomp)
		if !stomp[line] {
			t.Fatalf("expected stomp fallback, got %q", line)
		}
	}

	for _, cat := range []string{CategoryNearMiss, CategoryHit, CategoryBoost, CategoryCombo, "no-such-event", ""} {
		if line := m.GetBark(cat); line == "" {
			t.Fatalf("empty bark for category %q", cat)
		}
	}
}

func TestGetBarkFallbackEmotionIsExcited(t *testing.T) {
	m := NewManager(nil)
	m.Start(context.Background())
	defer m.Stop()

	item := m.GetBarkWithEmotion(CategoryBoost)
	if item.Emotion != EmotionExcited {
		t.Fatalf("expected excited fallback emotion, got %q", item.Emotion)
	}
}

func TestGetBarkServesPooledItemFirst(t *testing.T) {
	m := NewManager(probeOnly())
	m.Start(context.Background())
	defer m.Stop()

	if !m.Available() {
		t.Fatalf("expected manager available after probe")
	}

	m.barks.Push(BarkItem{Line: "PU-NORMOUS!", Emotion: EmotionDisgusted})

	item := m.GetBarkWithEmotion(CategoryStomp)
	if item.Line != "PU-NORMOUS!" || item.Emotion != EmotionDisgusted {
		t.Fatalf("expected pooled item, got %+v", item)
	}
	if got := m.barks.Len(); got != 0 {
		t.Fatalf("expected pool drained, got len %d", got)
	}

	// Drained pool falls back, still never empty.
	if line := m.GetBark(CategoryStomp); line == "" {
		t.Fatalf("expected fallback after pool drained")
	}
}

func TestGetGraffitiEmptyPoolIdempotent(t *testing.T) {
	m := NewManager(probeOnly())
	m.Start(context.Background())
	defer m.Stop()

	for i := 0; i < 5; i++ {
		if got := m.GetGraffiti(); got != "" {
			t.Fatalf("call %d: expected empty graffiti, got %q", i, got)
		}
	}

	m.graffiti.Push(GraffitiItem{Text: "FLUSH OR\nBE FLUSHED", Style: StyleDripping})
	if got := m.GetGraffiti(); got != "FLUSH OR\nBE FLUSHED" {
		t.Fatalf("expected pooled graffiti, got %q", got)
	}
	if got := m.GetGraffiti(); got != "" {
		t.Fatalf("expected empty after drain, got %q", got)
	}
}

func TestRequestDeathQuipUnavailableImmediateEmpty(t *testing.T) {
	m := NewManager(nil)
	m.Start(context.Background())
	defer m.Stop()

	got := make(chan string, 1)
	m.RequestDeathQuip(context.Background(), "fell in grinder", func(q string) { got <- q })

	select {
	case q := <-got:
		if q != "" {
			t.Fatalf("expected empty quip, got %q", q)
		}
	case <-time.After(time.Second):
		t.Fatalf("callback not invoked")
	}
}

func TestRequestDeathQuipTimesOutExactlyOnce(t *testing.T) {
	m := NewManager(silent(), WithRequestTimeouts(60*time.Millisecond, 40*time.Millisecond))
	m.Start(context.Background())
	defer m.Stop()

	var calls atomic.Int32
	got := make(chan string, 2)
	start := time.Now()
	m.RequestDeathQuip(context.Background(), "squished", func(q string) {
		calls.Add(1)
		got <- q
	})

	select {
	case q := <-got:
		if q != "" {
			t.Fatalf("expected empty quip on timeout, got %q", q)
		}
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Fatalf("callback fired before timeout: %v", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatalf("callback not invoked")
	}

	// The generator's late failure must not fire the callback again.
	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected exactly one callback, got %d", n)
	}
}

func TestRequestDeathQuipSuccess(t *testing.T) {
	gen := &fakeGenerator{fn: func(_ context.Context, systemPrompt, _ string) (string, error) {
		if systemPrompt == probeSystemPrompt {
			return "OK", nil
		}
		return `"Tell my logs I loved them."`, nil
	}}
	m := NewManager(gen)
	m.Start(context.Background())
	defer m.Stop()

	got := make(chan string, 1)
	m.RequestDeathQuip(context.Background(), "drowned in the u-bend", func(q string) { got <- q })

	select {
	case q := <-got:
		if q != "Tell my logs I loved them." {
			t.Fatalf("unexpected quip %q", q)
		}
	case <-time.After(time.Second):
		t.Fatalf("callback not invoked")
	}
}

func TestRequestCommentaryTimesOut(t *testing.T) {
	m := NewManager(silent(), WithRequestTimeouts(200*time.Millisecond, 50*time.Millisecond))
	m.Start(context.Background())
	defer m.Stop()

	got := make(chan string, 1)
	m.RequestCommentary(context.Background(), "lap 2, turd in the lead", func(line string) { got <- line })

	select {
	case line := <-got:
		if line != "" {
			t.Fatalf("expected empty commentary on timeout, got %q", line)
		}
	case <-time.After(time.Second):
		t.Fatalf("callback not invoked")
	}
}

func TestSupersededRequestResolvesEmptyExactlyOnce(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{fn: func(ctx context.Context, systemPrompt, _ string) (string, error) {
		if systemPrompt == probeSystemPrompt {
			return "OK", nil
		}
		select {
		case <-release:
			return "Second time's the charm.", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}}
	m := NewManager(gen, WithRequestTimeouts(500*time.Millisecond, 500*time.Millisecond))
	m.Start(context.Background())
	defer m.Stop()

	var firstCalls, secondCalls atomic.Int32
	first := make(chan string, 2)
	second := make(chan string, 2)

	m.RequestDeathQuip(context.Background(), "first wipeout", func(q string) {
		firstCalls.Add(1)
		first <- q
	})
	m.RequestDeathQuip(context.Background(), "second wipeout", func(q string) {
		secondCalls.Add(1)
		second <- q
	})

	// Superseding resolves the first request immediately with "".
	select {
	case q := <-first:
		if q != "" {
			t.Fatalf("superseded request should resolve empty, got %q", q)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("superseded callback not invoked")
	}

	close(release)
	select {
	case q := <-second:
		if q != "Second time's the charm." {
			t.Fatalf("unexpected quip %q", q)
		}
	case <-time.After(time.Second):
		t.Fatalf("second callback not invoked")
	}

	time.Sleep(100 * time.Millisecond)
	if n := firstCalls.Load(); n != 1 {
		t.Fatalf("first callback fired %d times", n)
	}
	if n := secondCalls.Load(); n != 1 {
		t.Fatalf("second callback fired %d times", n)
	}
}

func TestRefillSingleBatchInFlight(t *testing.T) {
	var barkBatches atomic.Int32
	gen := &fakeGenerator{fn: func(ctx context.Context, systemPrompt, _ string) (string, error) {
		switch {
		case systemPrompt == probeSystemPrompt:
			return "OK", nil
		case strings.Contains(systemPrompt, "barks"):
			barkBatches.Add(1)
			<-ctx.Done()
			return "", ctx.Err()
		default:
			return "", context.DeadlineExceeded
		}
	}}
	m := NewManager(gen, WithTickInterval(10*time.Millisecond))
	m.Start(context.Background())
	defer m.Stop()

	// Many ticks elapse while the first batch hangs; the in-flight flag must
	// keep it to a single outstanding fetch.
	time.Sleep(150 * time.Millisecond)
	if n := barkBatches.Load(); n != 1 {
		t.Fatalf("expected exactly one in-flight bark batch, got %d", n)
	}
}

func TestRefillIngestsParsedBatch(t *testing.T) {
	gen := &fakeGenerator{fn: func(_ context.Context, systemPrompt, _ string) (string, error) {
		if systemPrompt == probeSystemPrompt {
			return "OK", nil
		}
		return `[
			{"line":"SKIMMED IT!","emotion":"relieved"},
			{"line":"","emotion":"excited"},
			{"line":"EAT WAKE!","emotion":"cocky"}
		]`, nil
	}}
	m := NewManager(gen, WithBarkPool(20, 5))
	m.available.Store(true)

	if err := m.refillBarks(context.Background()); err != nil {
		t.Fatalf("refill: %v", err)
	}
	if got := m.barks.Len(); got != 2 {
		t.Fatalf("expected 2 ingested items, got %d", got)
	}
	item, _ := m.barks.Pop()
	if item.Line != "SKIMMED IT!" || item.Emotion != EmotionRelieved {
		t.Fatalf("unexpected first item %+v", item)
	}
}
