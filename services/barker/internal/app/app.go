// Package app wires the flavor text manager to persistence, events,
// and the nightly archive export.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"guttervoice/pkg/ai"
	"guttervoice/pkg/domain"
	"guttervoice/pkg/flavor"
	"guttervoice/pkg/queue"
	"guttervoice/pkg/storage"
	"guttervoice/pkg/store"
)

const (
	recordTimeout  = 3 * time.Second
	exportLookback = 24 * time.Hour
	exportLimit    = 10000
	presignExpiry  = 24 * time.Hour
)

// Archive is the slice of the content archive the app needs. Satisfied
// by *store.ArchiveStore; nil disables archiving.
type Archive interface {
	Record(ctx context.Context, rec *store.ContentRecord) error
	ListSince(ctx context.Context, since time.Time, limit int) ([]store.ContentRecord, error)
	CountBySource(ctx context.Context) (map[string]int64, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	GenerationProvider    string
	GenerationBaseURL     string
	GenerationAPIKey      string
	GenerationModel       string
	GenerationTemperature float64

	BarkPoolTarget      int
	BarkPoolLow         int
	GraffitiPoolTarget  int
	GraffitiPoolLow     int
	RefillTickSeconds   int
	DeathQuipTimeoutMS  int
	CommentaryTimeoutMS int

	RedisAddr     string
	RedisPassword string
	DatabaseURL   string
	RabbitMQURL   string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	ExportCron     string

	// Test seams. When set they take precedence over the connection
	// settings above.
	Generator ai.TextGenerator
	Prefs     store.PreferenceStore
	Archive   Archive
	Events    queue.EventPublisher
	Exports   storage.ExportStore
}

// App is the core application service behind the HTTP handlers.
type App struct {
	manager *flavor.Manager
	prefs   store.PreferenceStore
	archive Archive
	events  queue.EventPublisher
	exports storage.ExportStore
	redis   *redis.Client
	cron    *cron.Cron

	mu        sync.Mutex
	state     domain.ServiceState
	startedAt time.Time
}

// New constructs the application from config, connecting only the
// backends that are configured. A missing generator, database, broker,
// or object store degrades the matching feature instead of failing.
func New(cfg Config) (*App, error) {
	gen := cfg.Generator
	if gen == nil {
		var err error
		gen, err = ai.New(ai.Config{
			Provider:    cfg.GenerationProvider,
			BaseURL:     cfg.GenerationBaseURL,
			APIKey:      cfg.GenerationAPIKey,
			Model:       cfg.GenerationModel,
			Temperature: cfg.GenerationTemperature,
		})
		if err != nil {
			return nil, fmt.Errorf("init generator: %w", err)
		}
	}

	opts := []flavor.Option{}
	if cfg.BarkPoolTarget > 0 {
		opts = append(opts, flavor.WithBarkPool(cfg.BarkPoolTarget, cfg.BarkPoolLow))
	}
	if cfg.GraffitiPoolTarget > 0 {
		opts = append(opts, flavor.WithGraffitiPool(cfg.GraffitiPoolTarget, cfg.GraffitiPoolLow))
	}
	if cfg.RefillTickSeconds > 0 {
		opts = append(opts, flavor.WithTickInterval(time.Duration(cfg.RefillTickSeconds)*time.Second))
	}
	if cfg.DeathQuipTimeoutMS > 0 || cfg.CommentaryTimeoutMS > 0 {
		opts = append(opts, flavor.WithRequestTimeouts(
			time.Duration(cfg.DeathQuipTimeoutMS)*time.Millisecond,
			time.Duration(cfg.CommentaryTimeoutMS)*time.Millisecond,
		))
	}

	a := &App{
		manager: flavor.NewManager(gen, opts...),
		archive: cfg.Archive,
		events:  cfg.Events,
		exports: cfg.Exports,
		state:   domain.StateUninitialized,
	}

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	a.prefs = cfg.Prefs
	if a.prefs == nil {
		if a.redis != nil {
			a.prefs = store.NewRedisPreferenceStore(a.redis)
		} else {
			a.prefs = store.NewMemoryPreferenceStore()
		}
	}

	if a.archive == nil && cfg.DatabaseURL != "" {
		archive, err := store.NewArchiveStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init archive store: %w", err)
		}
		a.archive = archive
	}

	if a.events == nil {
		if cfg.RabbitMQURL != "" {
			publisher, err := queue.NewAMQPPublisher(cfg.RabbitMQURL)
			if err != nil {
				slog.Warn("rabbitmq unavailable, content events disabled", "err", err)
				a.events = queue.NopPublisher{}
			} else {
				a.events = publisher
			}
		} else {
			a.events = queue.NopPublisher{}
		}
	}

	if a.exports == nil && cfg.MinioEndpoint != "" {
		exports, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init export store: %w", err)
		}
		a.exports = exports
	}

	if cfg.ExportCron != "" && a.archive != nil && a.exports != nil {
		a.cron = cron.New()
		if _, err := a.cron.AddFunc(cfg.ExportCron, a.runScheduledExport); err != nil {
			return nil, fmt.Errorf("schedule export: %w", err)
		}
	}

	return a, nil
}

// Start probes the generator, warms the pools, and starts the export
// schedule. It blocks for at most the probe timeout.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	a.state = domain.StateProbing
	a.startedAt = time.Now().UTC()
	a.mu.Unlock()

	a.manager.Start(ctx)

	a.mu.Lock()
	if a.manager.Available() {
		a.state = domain.StateReady
	} else {
		a.state = domain.StateFallbackOnly
	}
	a.mu.Unlock()

	if a.cron != nil {
		a.cron.Start()
	}
}

// Stop halts background work. In-flight requests drain on their own.
func (a *App) Stop() {
	a.manager.Stop()
	if a.cron != nil {
		a.cron.Stop()
	}
	if a.events != nil {
		_ = a.events.Close()
	}
}

// Redis exposes the shared client for middleware that needs it. Nil
// when Redis is not configured.
func (a *App) Redis() *redis.Client {
	return a.redis
}

// Bark returns the next bark for an event category. Players who opted
// out of generated text get canned lines only.
func (a *App) Bark(ctx context.Context, playerID, category string) domain.BarkResponse {
	if a.aiEnabled(ctx, playerID) {
		if item, ok := a.manager.PopBark(); ok {
			a.record(flavor.CategoryOf(category), store.ContentKindBark, item.Line, store.ContentSourceGenerated, playerID)
			return domain.BarkResponse{
				Line:     item.Line,
				Emotion:  string(item.Emotion),
				Category: category,
				Source:   domain.SourceGenerated,
			}
		}
	}
	item := a.manager.FallbackBark(category)
	a.record(flavor.CategoryOf(category), store.ContentKindBark, item.Line, store.ContentSourceFallback, playerID)
	return domain.BarkResponse{
		Line:     item.Line,
		Emotion:  string(item.Emotion),
		Category: category,
		Source:   domain.SourceFallback,
	}
}

// Graffiti returns the next wall tag, or an empty response when none is
// pooled. There is no canned graffiti; the wall stays blank.
func (a *App) Graffiti(ctx context.Context, playerID string) domain.GraffitiResponse {
	if !a.aiEnabled(ctx, playerID) {
		return domain.GraffitiResponse{}
	}
	item, ok := a.manager.GetGraffitiItem()
	if !ok {
		return domain.GraffitiResponse{}
	}
	a.record("", store.ContentKindGraffiti, item.Text, store.ContentSourceGenerated, playerID)
	return domain.GraffitiResponse{
		Text:   item.Text,
		Style:  string(item.Style),
		Source: domain.SourceGenerated,
	}
}

// DeathQuip generates a dying line for the run that just ended. It
// blocks until the quip arrives or the deadline passes; an empty line
// tells the client to use its local default.
func (a *App) DeathQuip(ctx context.Context, playerID string, run domain.RunContext) domain.DeathQuipResponse {
	if !a.aiEnabled(ctx, playerID) {
		return domain.DeathQuipResponse{}
	}
	ch := make(chan string, 1)
	a.manager.RequestDeathQuip(ctx, formatRunContext(run), func(line string) { ch <- line })
	line := <-ch
	if line == "" {
		return domain.DeathQuipResponse{}
	}
	a.record("", store.ContentKindDeathQuip, line, store.ContentSourceGenerated, playerID)
	return domain.DeathQuipResponse{Line: line, Source: domain.SourceGenerated}
}

// Commentary generates one announcer line for the live race state. Same
// contract as DeathQuip with the shorter commentary deadline.
func (a *App) Commentary(ctx context.Context, playerID string, state domain.RaceState) domain.CommentaryResponse {
	if !a.aiEnabled(ctx, playerID) {
		return domain.CommentaryResponse{}
	}
	ch := make(chan string, 1)
	a.manager.RequestCommentary(ctx, formatRaceState(state), func(line string) { ch <- line })
	line := <-ch
	if line == "" {
		return domain.CommentaryResponse{}
	}
	a.record("", store.ContentKindCommentary, line, store.ContentSourceGenerated, playerID)
	return domain.CommentaryResponse{Line: line, Source: domain.SourceGenerated}
}

// AIPreference returns the player's flavor text opt-in flag.
func (a *App) AIPreference(ctx context.Context, playerID string) (domain.AIPreference, error) {
	enabled, err := a.prefs.AIEnabled(ctx, playerID)
	if err != nil {
		return domain.AIPreference{}, err
	}
	return domain.AIPreference{PlayerID: playerID, AIEnabled: enabled}, nil
}

// SetAIPreference stores the player's flavor text opt-in flag.
func (a *App) SetAIPreference(ctx context.Context, playerID string, enabled bool) error {
	return a.prefs.SetAIEnabled(ctx, playerID, enabled)
}

// Status reports pool fill levels and generation availability.
func (a *App) Status(ctx context.Context) domain.StatusResponse {
	a.mu.Lock()
	state := a.state
	startedAt := a.startedAt
	a.mu.Unlock()

	stats := a.manager.Stats()
	resp := domain.StatusResponse{
		State:     state,
		Available: stats.Available,
		Pools: map[string]domain.PoolStatus{
			"barks":    poolStatus(stats.Barks),
			"graffiti": poolStatus(stats.Graffiti),
		},
		CheckedAt: time.Now().UTC(),
	}
	if !startedAt.IsZero() {
		resp.Uptime = time.Since(startedAt).Round(time.Second).String()
	}
	if a.archive != nil {
		if counts, err := a.archive.CountBySource(ctx); err == nil {
			resp.Sources = counts
		} else {
			slog.Warn("archive source counts unavailable", "err", err)
		}
	}
	return resp
}

// Export writes recent archive records to object storage as NDJSON and
// returns a pre-signed download link.
func (a *App) Export(ctx context.Context, since time.Time) (domain.ExportResult, error) {
	if a.archive == nil {
		return domain.ExportResult{}, fmt.Errorf("content archive not configured")
	}
	if a.exports == nil {
		return domain.ExportResult{}, fmt.Errorf("export store not configured")
	}
	recs, err := a.archive.ListSince(ctx, since, exportLimit)
	if err != nil {
		return domain.ExportResult{}, fmt.Errorf("list archive: %w", err)
	}
	data, err := encodeNDJSON(recs)
	if err != nil {
		return domain.ExportResult{}, err
	}
	now := time.Now().UTC()
	key := fmt.Sprintf("exports/content-%s.ndjson", now.Format("20060102-150405"))
	if err := a.exports.PutObject(ctx, key, data, "application/x-ndjson"); err != nil {
		return domain.ExportResult{}, fmt.Errorf("upload export: %w", err)
	}
	result := domain.ExportResult{ObjectKey: key, Records: len(recs), ExportedAt: now}
	if url, err := a.exports.PresignGet(ctx, key, presignExpiry); err == nil {
		result.DownloadURL = url
	} else {
		slog.Warn("presign export failed", "key", key, "err", err)
	}
	return result, nil
}

func (a *App) runScheduledExport() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	result, err := a.Export(ctx, time.Now().UTC().Add(-exportLookback))
	if err != nil {
		slog.Warn("scheduled export failed", "err", err)
		return
	}
	slog.Info("scheduled export finished", "key", result.ObjectKey, "records", result.Records)
}

func (a *App) aiEnabled(ctx context.Context, playerID string) bool {
	if playerID == "" {
		return true
	}
	enabled, err := a.prefs.AIEnabled(ctx, playerID)
	if err != nil {
		slog.Warn("preference lookup failed", "player", playerID, "err", err)
		return true
	}
	return enabled
}

// record archives and publishes one served line, best effort and off
// the request path.
func (a *App) record(category, kind, text, source, playerID string) {
	if text == "" {
		return
	}
	servedAt := time.Now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if a.archive != nil {
			rec := &store.ContentRecord{
				Kind:     kind,
				Category: category,
				Text:     text,
				Source:   source,
				PlayerID: playerID,
			}
			if err := a.archive.Record(ctx, rec); err != nil {
				slog.Debug("archive record failed", "kind", kind, "err", err)
			}
		}
		if a.events != nil {
			event := queue.ContentEvent{
				Kind:     kind,
				Category: category,
				Text:     text,
				Source:   source,
				PlayerID: playerID,
				ServedAt: servedAt,
			}
			if err := a.events.PublishContent(ctx, event); err != nil {
				slog.Debug("content event publish failed", "kind", kind, "err", err)
			}
		}
	}()
}

func encodeNDJSON(recs []store.ContentRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range recs {
		if err := enc.Encode(recs[i]); err != nil {
			return nil, fmt.Errorf("encode record: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func poolStatus(s flavor.PoolStats) domain.PoolStatus {
	return domain.PoolStatus{
		Size:     s.Size,
		Target:   s.Target,
		Low:      s.Low,
		InFlight: s.InFlight,
		Served:   s.Served,
	}
}

func formatRunContext(run domain.RunContext) string {
	parts := []string{}
	if run.CauseOfDeath != "" {
		parts = append(parts, "cause of death: "+run.CauseOfDeath)
	}
	parts = append(parts, fmt.Sprintf("distance: %dm", run.DistanceM))
	if run.Coins > 0 {
		parts = append(parts, fmt.Sprintf("coins collected: %d", run.Coins))
	}
	if run.NearMisses > 0 {
		parts = append(parts, fmt.Sprintf("near misses: %d", run.NearMisses))
	}
	return strings.Join(parts, ", ")
}

func formatRaceState(state domain.RaceState) string {
	parts := []string{
		fmt.Sprintf("position %d of %d", state.Position, state.Racers),
		fmt.Sprintf("speed: %d m/s", state.SpeedMPS),
	}
	if state.LeaderName != "" {
		parts = append(parts, "leader: "+state.LeaderName)
	}
	if state.Hazard != "" {
		parts = append(parts, "hazard ahead: "+state.Hazard)
	}
	return strings.Join(parts, ", ")
}
