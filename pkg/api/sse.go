package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/yourusername/urengine/pkg/engine"
)

// RolloutSSE streams a Monte Carlo search as Server-Sent Events: "progress"
// per candidate batch, then "result" with the decision and "done".
// GET /api/rollout/stream?position=...&roll=...&ai=...&budget=...&seed=...&workers=...
func (h *Handlers) RolloutSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeSSEError(w, "streaming not supported")
		return
	}

	query := r.URL.Query()
	position := query.Get("position")
	if position == "" {
		writeSSEError(w, "position is required")
		return
	}
	var roll *int
	if s := query.Get("roll"); s != "" {
		v := parseIntParam(s, -1)
		roll = &v
	}
	state, err := parseState(position, roll)
	if err != nil {
		writeSSEError(w, "invalid position: "+err.Error())
		return
	}

	baseline, budget, err := h.rolloutSetup(h.aiName(query.Get("ai")))
	if err != nil {
		writeSSEError(w, err.Error())
		return
	}
	budget = h.clampTrials(parseIntParam(query.Get("budget"), budget))
	workers := parseIntParam(query.Get("workers"), h.opts.Workers)
	seed, _ := strconv.ParseUint(query.Get("seed"), 10, 64)

	mc, err := engine.NewMonteCarloAI(budget, baseline,
		engine.WithWorkers(workers),
		engine.WithLogger(h.opts.Logger),
		engine.WithProgress(func(move int, p engine.RolloutProgress) {
			writeSSEEvent(w, "progress", toCandidateProgress(move, p))
			flusher.Flush()
		}),
	)
	if err != nil {
		writeSSEError(w, err.Error())
		return
	}

	var decision *engine.Decision
	err = h.run(r.Context(), LaneSlow, func() error {
		var err error
		decision, err = mc.Decide(r.Context(), state, newRand(seed))
		return err
	})
	if err != nil {
		writeSSEError(w, "search failed: "+err.Error())
		return
	}

	writeSSEEvent(w, "result", decision)
	flusher.Flush()

	writeSSEEvent(w, "done", nil)
	flusher.Flush()
}

// writeSSEEvent writes a Server-Sent Event to the response.
func writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	fmt.Fprintf(w, "event: %s\n", event)
	if data != nil {
		jsonData, _ := json.Marshal(data)
		fmt.Fprintf(w, "data: %s\n", jsonData)
	}
	fmt.Fprintf(w, "\n")
}

// writeSSEError writes an error event and ends the stream.
func writeSSEError(w http.ResponseWriter, message string) {
	writeSSEEvent(w, "error", ErrorResponse{Error: message})
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// parseIntParam parses an integer query value, falling back to def.
func parseIntParam(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
