package domain

import "time"

// ServiceState describes the barker service's generation availability.
type ServiceState string

const (
	StateUninitialized ServiceState = "uninitialized"
	StateProbing       ServiceState = "probing"
	StateReady         ServiceState = "ready"
	StateFallbackOnly  ServiceState = "fallback_only"
)

// TextSource identifies where a served line came from.
type TextSource string

const (
	SourceGenerated TextSource = "generated"
	SourceFallback  TextSource = "fallback"
)

// BarkResponse is one racer bark served during a run.
type BarkResponse struct {
	Line     string     `json:"line"`
	Emotion  string     `json:"emotion"`
	Category string     `json:"category"`
	Source   TextSource `json:"source"`
}

// GraffitiResponse is one wall tag for tunnel decoration. Text is empty
// when no generated graffiti is available; the wall stays blank.
type GraffitiResponse struct {
	Text   string     `json:"text"`
	Style  string     `json:"style,omitempty"`
	Source TextSource `json:"source,omitempty"`
}

// DeathQuipResponse is the end-of-run quip. Line is empty when
// generation missed its deadline and the client should use its local
// default.
type DeathQuipResponse struct {
	Line   string     `json:"line"`
	Source TextSource `json:"source,omitempty"`
}

// CommentaryResponse is one announcer line for the current race state.
type CommentaryResponse struct {
	Line   string     `json:"line"`
	Source TextSource `json:"source,omitempty"`
}

// RunContext summarizes the run that just ended, for death quips.
type RunContext struct {
	CauseOfDeath string `json:"causeOfDeath"`
	DistanceM    int    `json:"distanceM"`
	Coins        int    `json:"coins"`
	NearMisses   int    `json:"nearMisses"`
}

// RaceState summarizes the live race, for commentary.
type RaceState struct {
	Position   int    `json:"position"`
	Racers     int    `json:"racers"`
	LeaderName string `json:"leaderName,omitempty"`
	SpeedMPS   int    `json:"speedMps"`
	Hazard     string `json:"hazard,omitempty"`
}

// AIPreference is a player's flavor text opt-in flag.
type AIPreference struct {
	PlayerID  string `json:"playerId"`
	AIEnabled bool   `json:"aiEnabled"`
}

// PoolStatus reports one pool's fill level for the status endpoint.
type PoolStatus struct {
	Size     int   `json:"size"`
	Target   int   `json:"target"`
	Low      int   `json:"low"`
	InFlight bool  `json:"inFlight"`
	Served   int64 `json:"served"`
}

// StatusResponse is the operator-facing service status.
type StatusResponse struct {
	State     ServiceState          `json:"state"`
	Available bool                  `json:"available"`
	Pools     map[string]PoolStatus `json:"pools"`
	Sources   map[string]int64      `json:"sources,omitempty"`
	Uptime    string                `json:"uptime"`
	CheckedAt time.Time             `json:"checkedAt"`
}

// ExportResult describes a finished archive export.
type ExportResult struct {
	ObjectKey   string    `json:"objectKey"`
	Records     int       `json:"records"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	ExportedAt  time.Time `json:"exportedAt"`
}
