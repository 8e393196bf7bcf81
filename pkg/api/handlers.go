package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/yourusername/urengine/internal/positionid"
	"github.com/yourusername/urengine/pkg/engine"
)

// DefaultMaxTrials caps the rollout trials or search budget of one request.
const DefaultMaxTrials = 100000

// HandlerOptions holds the engine defaults used when a request leaves them out.
type HandlerOptions struct {
	DefaultAI     string
	RolloutTrials int
	MaxTrials     int // Larger request values are lowered to this (0 = DefaultMaxTrials)
	Workers       int // Rollout goroutines per request (0 = GOMAXPROCS)
	CacheSize     int // Seeded move answers remembered (0 = default, negative = off)
	Logger        zerolog.Logger
}

// Handlers holds the HTTP handlers and the AI registry.
type Handlers struct {
	registry *engine.Registry
	version  string
	pool     *WorkerPool
	cache    *DecisionCache
	opts     HandlerOptions
}

// NewHandlers creates the handlers. pool may be nil to run requests unbounded.
func NewHandlers(reg *engine.Registry, version string, pool *WorkerPool, opts HandlerOptions) *Handlers {
	if opts.RolloutTrials <= 0 {
		opts.RolloutTrials = engine.DefaultTrials
	}
	if opts.MaxTrials <= 0 {
		opts.MaxTrials = DefaultMaxTrials
	}
	h := &Handlers{
		registry: reg,
		version:  version,
		pool:     pool,
		opts:     opts,
	}
	switch {
	case opts.CacheSize == 0:
		h.cache = NewDecisionCache(DefaultCacheSize)
	case opts.CacheSize > 0:
		h.cache = NewDecisionCache(opts.CacheSize)
	}
	return h
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: msg,
		Code:  code,
	})
}

// writeEngineError maps engine errors to a status and code.
func writeEngineError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeError(w, status, err.Error(), code)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, positionid.ErrInvalidPositionID):
		return http.StatusBadRequest, "INVALID_POSITION"
	case errors.Is(err, engine.ErrUnknownAI):
		return http.StatusBadRequest, "UNKNOWN_AI"
	case errors.Is(err, engine.ErrUnknownScorer):
		return http.StatusBadRequest, "UNKNOWN_SCORER"
	case errors.Is(err, engine.ErrNotRollTime), errors.Is(err, engine.ErrInvalidRoll):
		return http.StatusBadRequest, "INVALID_ROLL"
	case errors.Is(err, engine.ErrNoLegalMove):
		return http.StatusUnprocessableEntity, "NO_LEGAL_MOVE"
	case errors.Is(err, engine.ErrIllegalMove):
		return http.StatusUnprocessableEntity, "ILLEGAL_MOVE"
	case errors.Is(err, errNotScoring):
		return http.StatusBadRequest, "NOT_SCORING_AI"
	case errors.Is(err, errNotMonteCarlo):
		return http.StatusBadRequest, "NOT_MONTE_CARLO"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELLED"
	}
	return http.StatusInternalServerError, "ENGINE_ERROR"
}

var (
	errNotScoring    = errors.New("AI has no scoring configuration")
	errNotMonteCarlo = errors.New("AI is not a Monte Carlo AI")
)

// parseState decodes a position ID and applies roll when given.
func parseState(posID string, roll *int) (*engine.GameState, error) {
	state, err := engine.FromPositionID(posID)
	if err != nil {
		return nil, err
	}
	if roll != nil {
		if err := state.ApplyRoll(*roll); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// newRand returns a generator for seed, or a randomly seeded one for 0.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewSource(seed))
}

func (h *Handlers) aiName(name string) string {
	if name == "" {
		return h.opts.DefaultAI
	}
	return name
}

// run executes fn in the given pool lane.
func (h *Handlers) run(ctx context.Context, l Lane, fn func() error) error {
	if h.pool == nil {
		return fn()
	}
	return h.pool.Do(ctx, l, fn)
}

// laneFor puts Monte Carlo AIs in the slow lane.
func laneFor(p engine.Policy) Lane {
	if _, ok := p.(*engine.MonteCarloAI); ok {
		return LaneSlow
	}
	return LaneFast
}

// scoringConfig resolves the weights used to score for the named AI. A Monte
// Carlo AI scores with its baseline.
func (h *Handlers) scoringConfig(name string) (*engine.ScoringConfig, error) {
	if def, ok := h.registry.Definition(name); ok && def.IsMonteCarlo() {
		name = def.Baseline
	}
	p, err := h.registry.Get(name)
	if err != nil {
		return nil, err
	}
	ai, ok := p.(*engine.ScoringAI)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errNotScoring, name)
	}
	return ai.Config, nil
}

// rolloutSetup returns the policy playing the rollouts for the named AI and
// the default number of games per candidate.
func (h *Handlers) rolloutSetup(name string) (engine.Policy, int, error) {
	def, ok := h.registry.Definition(name)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", engine.ErrUnknownAI, name)
	}
	if !def.IsMonteCarlo() {
		p, err := h.registry.Get(name)
		return p, h.opts.RolloutTrials, err
	}
	p, err := h.registry.Get(def.Baseline)
	return p, def.Budget, err
}

// clampTrials lowers a requested trial count or budget to the configured cap.
func (h *Handlers) clampTrials(n int) int {
	if n > h.opts.MaxTrials {
		h.opts.Logger.Debug().Int("requested", n).Int("max", h.opts.MaxTrials).Msg("trials clamped")
		return h.opts.MaxTrials
	}
	return n
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	if h.registry != nil {
		resp.AIs = len(h.registry.Names())
	}
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		resp.Cache = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// AIs handles GET /api/ais
func (h *Handlers) AIs(w http.ResponseWriter, r *http.Request) {
	resp := AIsResponse{
		Default: h.opts.DefaultAI,
		Scorers: engine.ScorerNames(),
	}
	for _, name := range h.registry.Names() {
		def, _ := h.registry.Definition(name)
		resp.AIs = append(resp.AIs, def)
	}
	writeJSON(w, http.StatusOK, resp)
}

// chooseMove runs the named AI on state. Monte Carlo AIs report their full
// decision and stop when ctx does. Answers to seeded requests are cached.
func (h *Handlers) chooseMove(ctx context.Context, state *engine.GameState, name string, seed uint64) (*MoveResponse, error) {
	policy, gen, err := h.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	key := decisionKey{position: state.PositionID(), ai: name, seed: seed, generation: gen}
	cacheable := seed != 0 && h.cache != nil
	if cacheable {
		if cached, ok := h.cache.Lookup(key); ok {
			return &cached, nil
		}
	}

	resp := &MoveResponse{
		Position:   state.PositionID(),
		AI:         name,
		Roll:       state.Roll,
		LegalMoves: state.LegalMoves(),
	}
	if len(resp.LegalMoves) == 0 {
		return nil, fmt.Errorf("%w: %s", engine.ErrNoLegalMove, state)
	}

	err = h.run(ctx, laneFor(policy), func() error {
		rng := newRand(seed)
		if mc, ok := policy.(*engine.MonteCarloAI); ok {
			d, err := mc.Decide(ctx, state, rng)
			if err != nil {
				return err
			}
			resp.Move = d.Move
			resp.Decision = d
			return nil
		}
		move, err := policy.ChooseMove(state, rng)
		resp.Move = move
		return err
	})
	if err != nil {
		return nil, err
	}

	next, ok := state.Apply(resp.Move)
	if !ok {
		return nil, &engine.PolicyViolationError{State: state.Copy(), Move: resp.Move}
	}
	resp.Next = next.PositionID()
	if cacheable {
		h.cache.Add(key, *resp)
	}
	return resp, nil
}

// Move handles POST /api/move
func (h *Handlers) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}
	if req.Position == "" {
		writeError(w, http.StatusBadRequest, "position is required", "MISSING_POSITION")
		return
	}
	state, err := parseState(req.Position, req.Roll)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp, err := h.chooseMove(r.Context(), state, h.aiName(req.AI), req.Seed)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// scorePosition analyzes state with the weights of req.
func (h *Handlers) scorePosition(ctx context.Context, state *engine.GameState, req ScoreRequest) (*engine.AnalysisResult, error) {
	var (
		cfg *engine.ScoringConfig
		err error
	)
	if len(req.Weights) > 0 {
		cfg, err = engine.NewScoringConfig("custom", req.Weights)
	} else {
		cfg, err = h.scoringConfig(h.aiName(req.AI))
	}
	if err != nil {
		return nil, err
	}

	var result *engine.AnalysisResult
	err = h.run(ctx, LaneFast, func() error {
		result = engine.AnalyzeScoring(state, cfg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if req.Top > 0 && req.Top < len(result.Moves) {
		result.Moves = result.Moves[:req.Top]
	}
	return result, nil
}

// Score handles POST /api/score
func (h *Handlers) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}
	if req.Position == "" {
		writeError(w, http.StatusBadRequest, "position is required", "MISSING_POSITION")
		return
	}
	state, err := parseState(req.Position, req.Roll)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	result, err := h.scorePosition(r.Context(), state, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Rollout handles POST /api/rollout
func (h *Handlers) Rollout(w http.ResponseWriter, r *http.Request) {
	var req RolloutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}
	if req.Position == "" {
		writeError(w, http.StatusBadRequest, "position is required", "MISSING_POSITION")
		return
	}
	state, err := engine.FromPositionID(req.Position)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_POSITION")
		return
	}

	name := h.aiName(req.AI)
	policy, trials, err := h.rolloutSetup(name)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if req.Trials > 0 {
		trials = h.clampTrials(req.Trials)
	}
	observer := state.CurrentPlayer
	if req.Observer != nil {
		if *req.Observer != 0 && *req.Observer != 1 {
			writeError(w, http.StatusBadRequest, "observer must be 0 or 1", "INVALID_OBSERVER")
			return
		}
		observer = *req.Observer
	}
	workers := req.Workers
	if workers <= 0 {
		workers = h.opts.Workers
	}

	var stats engine.OutcomeStatistic
	err = h.run(r.Context(), LaneSlow, func() error {
		var err error
		stats, err = engine.Rollout(r.Context(), state, policy, observer, engine.RolloutOptions{
			Trials:  trials,
			Seed:    req.Seed,
			Workers: workers,
		})
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RolloutResponse{
		Position: state.PositionID(),
		AI:       name,
		Observer: observer,
		Wins:     stats.Wins,
		Total:    stats.Total,
		WinRate:  stats.WinRate(),
		CI95:     stats.ConfidenceInterval(0.95),
	})
}

// reviewGame rates the moves of req with a Monte Carlo AI.
func (h *Handlers) reviewGame(ctx context.Context, req ReviewRequest) (*engine.GameReview, error) {
	name := h.aiName(req.AI)
	policy, err := h.registry.Get(name)
	if err != nil {
		return nil, err
	}
	mc, ok := policy.(*engine.MonteCarloAI)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errNotMonteCarlo, name)
	}

	var review *engine.GameReview
	err = h.run(ctx, LaneSlow, func() error {
		var err error
		review, err = mc.ReviewGame(ctx, engine.GameRecord{
			NumPieces: req.Pieces,
			Turns:     req.Turns,
		}, newRand(req.Seed))
		return err
	})
	return review, err
}

// Review handles POST /api/review
func (h *Handlers) Review(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}
	if len(req.Turns) == 0 {
		writeError(w, http.StatusBadRequest, "turns are required", "MISSING_TURNS")
		return
	}

	review, err := h.reviewGame(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}
