// Package api provides the HTTP and WebSocket analysis server.
package api

import (
	"github.com/yourusername/urengine/pkg/engine"
)

// MoveRequest is the request body for POST /api/move.
type MoveRequest struct {
	Position string `json:"position"`       // Position ID
	Roll     *int   `json:"roll,omitempty"` // Dice sum to apply when the position still needs a roll
	AI       string `json:"ai,omitempty"`   // AI name (default from config)
	Seed     uint64 `json:"seed,omitempty"` // RNG seed (0 = random)
}

// MoveResponse is the response for POST /api/move.
type MoveResponse struct {
	Position   string           `json:"position"`
	AI         string           `json:"ai"`
	Roll       int              `json:"roll"`
	LegalMoves []int            `json:"legal_moves"`
	Move       int              `json:"move"`
	Next       string           `json:"next"` // Position ID after the move
	Decision   *engine.Decision `json:"decision,omitempty"`
}

// ScoreRequest is the request body for POST /api/score. Weights, when
// given, override the named AI.
type ScoreRequest struct {
	Position string             `json:"position"`
	Roll     *int               `json:"roll,omitempty"`
	AI       string             `json:"ai,omitempty"`
	Weights  map[string]float64 `json:"weights,omitempty"`
	Top      int                `json:"top,omitempty"` // Limit number of moves returned
}

// RolloutRequest is the request body for POST /api/rollout.
type RolloutRequest struct {
	Position string `json:"position"`
	AI       string `json:"ai,omitempty"`       // Policy playing both sides
	Observer *int   `json:"observer,omitempty"` // Player whose wins are counted (default: player on turn)
	Trials   int    `json:"trials,omitempty"`
	Seed     uint64 `json:"seed,omitempty"`
	Workers  int    `json:"workers,omitempty"`
}

// RolloutResponse is the response for POST /api/rollout.
type RolloutResponse struct {
	Position string  `json:"position"`
	AI       string  `json:"ai"`
	Observer int     `json:"observer"`
	Wins     int     `json:"wins"`
	Total    int     `json:"total"`
	WinRate  float64 `json:"win_rate"`
	CI95     float64 `json:"ci95"`
}

// ReviewRequest is the request body for POST /api/review. The game is
// replayed from the starting position.
type ReviewRequest struct {
	AI     string        `json:"ai,omitempty"` // Monte Carlo AI rating the moves
	Pieces int           `json:"pieces,omitempty"`
	Turns  []engine.Turn `json:"turns"`
	Seed   uint64        `json:"seed,omitempty"`
}

// AIsResponse is the response for GET /api/ais.
type AIsResponse struct {
	Default string                `json:"default"`
	AIs     []engine.AIDefinition `json:"ais"`
	Scorers []string              `json:"scorers"`
}

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	AIs     int         `json:"ais"`
	Pool    *PoolStats  `json:"pool,omitempty"`
	Cache   *CacheStats `json:"cache,omitempty"`
}

// CandidateProgress is streamed while a Monte Carlo search runs.
type CandidateProgress struct {
	Move            int     `json:"move"`
	TrialsCompleted int     `json:"trials_completed"`
	TrialsTotal     int     `json:"trials_total"`
	Percent         float64 `json:"percent"`
	WinRate         float64 `json:"win_rate"`
	CI              float64 `json:"ci"`
}

func toCandidateProgress(move int, p engine.RolloutProgress) CandidateProgress {
	return CandidateProgress{
		Move:            move,
		TrialsCompleted: p.TrialsCompleted,
		TrialsTotal:     p.TrialsTotal,
		Percent:         p.Percent,
		WinRate:         p.WinRate,
		CI:              p.CI,
	}
}
