package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/urengine/pkg/engine"
)

const testMC = "#AI_TestMonteCarlo"

func testRegistry(t *testing.T) *engine.Registry {
	t.Helper()
	reg := engine.DefaultRegistry()
	require.NoError(t, reg.Define([]engine.AIDefinition{
		{Name: testMC, Budget: 30, Baseline: "#AI_KFE521T"},
	}))
	return reg
}

func testHandlers(t *testing.T) *Handlers {
	t.Helper()
	return NewHandlers(testRegistry(t), "test-version", NewWorkerPool(DefaultPoolConfig()), HandlerOptions{
		DefaultAI:     "#AI_KFE521S3",
		RolloutTrials: 20,
		MaxTrials:     60,
		Workers:       2,
		Logger:        zerolog.Nop(),
	})
}

// positionWith encodes a state with the given piece squares
func positionWith(p0, p1 []int, player, roll int) string {
	s := engine.NewGameState(len(p0))
	for i, v := range p0 {
		s.Board[0][i] = uint8(v)
	}
	for i, v := range p1 {
		s.Board[1][i] = uint8(v)
	}
	s.CurrentPlayer = player
	s.Roll = roll
	return s.PositionID()
}

// knockoutPosition has two legal moves: 3 captures on 5, 0 enters quietly
func knockoutPosition() string {
	return positionWith([]int{3, 0}, []int{5, 0}, 0, 2)
}

func intPtr(v int) *int { return &v }

func doJSON(t *testing.T, handler http.HandlerFunc, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&e))
	return e
}

func TestHealthHandler(t *testing.T) {
	h := testHandlers(t)
	w := doJSON(t, h.Health, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test-version", health.Version)
	assert.Equal(t, len(engine.DefaultDefinitions())+1, health.AIs)
	require.NotNil(t, health.Pool)
	assert.Equal(t, DefaultPoolConfig().MaxSlowWorkers, health.Pool.Slow.Max)
}

func TestAIsHandler(t *testing.T) {
	h := testHandlers(t)
	w := doJSON(t, h.AIs, "GET", "/api/ais", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp AIsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "#AI_KFE521S3", resp.Default)
	assert.Contains(t, resp.Scorers, "knockout")

	byName := map[string]engine.AIDefinition{}
	for _, d := range resp.AIs {
		byName[d.Name] = d
	}
	require.Contains(t, byName, testMC)
	assert.Equal(t, 30, byName[testMC].Budget)
	assert.Equal(t, "#AI_KFE521T", byName[testMC].Baseline)
	assert.Contains(t, byName, "#AI_Random")
}

func TestMoveHandler(t *testing.T) {
	h := testHandlers(t)
	start := engine.NewGameState(7).PositionID()

	t.Run("scoring AI prefers the knockout", func(t *testing.T) {
		w := doJSON(t, h.Move, "POST", "/api/move", MoveRequest{Position: knockoutPosition(), Seed: 1})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp MoveResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "#AI_KFE521S3", resp.AI)
		assert.Equal(t, []int{0, 3}, resp.LegalMoves)
		assert.Equal(t, 3, resp.Move)
		assert.Nil(t, resp.Decision)

		next, err := engine.FromPositionID(resp.Next)
		require.NoError(t, err)
		assert.True(t, next.Occupies(0, 5))
		assert.Equal(t, []int{0, 0}, next.Pieces(1), "captured piece returns to the start")
		assert.Equal(t, 1, next.CurrentPlayer)
	})

	t.Run("roll applied to a position awaiting one", func(t *testing.T) {
		w := doJSON(t, h.Move, "POST", "/api/move", MoveRequest{Position: start, Roll: intPtr(2)})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp MoveResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, 2, resp.Roll)
		assert.Equal(t, []int{0}, resp.LegalMoves)
		assert.Equal(t, 0, resp.Move)
	})

	t.Run("monte carlo reports its decision", func(t *testing.T) {
		w := doJSON(t, h.Move, "POST", "/api/move", MoveRequest{Position: knockoutPosition(), AI: testMC, Seed: 42})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp MoveResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.NotNil(t, resp.Decision)
		assert.False(t, resp.Decision.Forced)
		assert.Len(t, resp.Decision.Candidates, 2)
		assert.Equal(t, resp.Decision.Move, resp.Move)
		for _, c := range resp.Decision.Candidates {
			assert.Equal(t, 30, c.Stats.Total)
		}
		assert.Equal(t, int64(1), h.pool.Stats().Slow.Total)
	})

	t.Run("forced monte carlo move", func(t *testing.T) {
		w := doJSON(t, h.Move, "POST", "/api/move", MoveRequest{Position: start, Roll: intPtr(2), AI: testMC})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp MoveResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.NotNil(t, resp.Decision)
		assert.True(t, resp.Decision.Forced)
		assert.Empty(t, resp.Decision.Candidates)
	})

	errorCases := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"invalid JSON", "{not json", http.StatusBadRequest, "INVALID_JSON"},
		{"missing position", MoveRequest{}, http.StatusBadRequest, "MISSING_POSITION"},
		{"invalid position", MoveRequest{Position: "!!!"}, http.StatusBadRequest, "INVALID_POSITION"},
		{"unknown AI", MoveRequest{Position: knockoutPosition(), AI: "#AI_Nobody"}, http.StatusBadRequest, "UNKNOWN_AI"},
		{"roll out of range", MoveRequest{Position: start, Roll: intPtr(9)}, http.StatusBadRequest, "INVALID_ROLL"},
		{"roll already pending", MoveRequest{Position: knockoutPosition(), Roll: intPtr(1)}, http.StatusBadRequest, "INVALID_ROLL"},
		{"no legal move", MoveRequest{Position: start, Roll: intPtr(0)}, http.StatusUnprocessableEntity, "NO_LEGAL_MOVE"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, h.Move, "POST", "/api/move", tc.body)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantCode, decodeError(t, w).Code)
		})
	}
}

func TestScoreHandler(t *testing.T) {
	h := testHandlers(t)

	decode := func(t *testing.T, w *httptest.ResponseRecorder) engine.AnalysisResult {
		t.Helper()
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res engine.AnalysisResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		return res
	}

	t.Run("default AI", func(t *testing.T) {
		res := decode(t, doJSON(t, h.Score, "POST", "/api/score", ScoreRequest{Position: knockoutPosition()}))
		assert.Equal(t, "#AI_KFE521S3", res.AI)
		assert.Equal(t, 2, res.NumMoves)
		assert.Equal(t, 3, res.BestMove)
		require.Len(t, res.Moves, 2)
		assert.Equal(t, 1.0, res.Moves[0].Breakdown["knockout"])
	})

	t.Run("monte carlo AI scores with its baseline", func(t *testing.T) {
		res := decode(t, doJSON(t, h.Score, "POST", "/api/score", ScoreRequest{Position: knockoutPosition(), AI: testMC}))
		assert.Equal(t, "#AI_KFE521T", res.AI)
		assert.Equal(t, 3, res.BestMove)
	})

	t.Run("custom weights", func(t *testing.T) {
		res := decode(t, doJSON(t, h.Score, "POST", "/api/score", ScoreRequest{
			Position: knockoutPosition(),
			Weights:  map[string]float64{"position": 1},
			Top:      1,
		}))
		assert.Equal(t, "custom", res.AI)
		assert.Equal(t, 2, res.NumMoves)
		require.Len(t, res.Moves, 1)
		assert.Equal(t, 3, res.Moves[0].Move)
		assert.InDelta(t, 3.0/15, res.Moves[0].Total, 1e-12)
	})

	t.Run("unknown scorer", func(t *testing.T) {
		w := doJSON(t, h.Score, "POST", "/api/score", ScoreRequest{
			Position: knockoutPosition(),
			Weights:  map[string]float64{"luck": 1},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "UNKNOWN_SCORER", decodeError(t, w).Code)
	})

	t.Run("missing position", func(t *testing.T) {
		w := doJSON(t, h.Score, "POST", "/api/score", ScoreRequest{})
		assert.Equal(t, "MISSING_POSITION", decodeError(t, w).Code)
	})
}

func TestRolloutHandler(t *testing.T) {
	h := testHandlers(t)
	won := positionWith([]int{15}, []int{0}, 1, engine.NotRolled)

	decode := func(t *testing.T, w *httptest.ResponseRecorder) RolloutResponse {
		t.Helper()
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res RolloutResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		return res
	}

	t.Run("finished game", func(t *testing.T) {
		res := decode(t, doJSON(t, h.Rollout, "POST", "/api/rollout", RolloutRequest{Position: won, Observer: intPtr(0)}))
		assert.Equal(t, 0, res.Observer)
		assert.Equal(t, 20, res.Total)
		assert.Equal(t, 20, res.Wins)
		assert.Equal(t, 1.0, res.WinRate)

		res = decode(t, doJSON(t, h.Rollout, "POST", "/api/rollout", RolloutRequest{Position: won}))
		assert.Equal(t, 1, res.Observer, "defaults to the player on turn")
		assert.Equal(t, 0, res.Wins)
	})

	t.Run("seeded rollouts repeat", func(t *testing.T) {
		req := RolloutRequest{Position: knockoutPosition(), Trials: 40, Seed: 9}
		a := decode(t, doJSON(t, h.Rollout, "POST", "/api/rollout", req))
		b := decode(t, doJSON(t, h.Rollout, "POST", "/api/rollout", req))
		assert.Equal(t, 40, a.Total)
		assert.Equal(t, a, b)
	})

	t.Run("trials above the cap", func(t *testing.T) {
		res := decode(t, doJSON(t, h.Rollout, "POST", "/api/rollout", RolloutRequest{Position: won, Trials: 1 << 30}))
		assert.Equal(t, 60, res.Total)
	})

	t.Run("invalid observer", func(t *testing.T) {
		w := doJSON(t, h.Rollout, "POST", "/api/rollout", RolloutRequest{Position: won, Observer: intPtr(2)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_OBSERVER", decodeError(t, w).Code)
	})

	t.Run("invalid position", func(t *testing.T) {
		w := doJSON(t, h.Rollout, "POST", "/api/rollout", RolloutRequest{Position: "AAAA"})
		assert.Equal(t, "INVALID_POSITION", decodeError(t, w).Code)
	})

	t.Run("roll nobody can use", func(t *testing.T) {
		dead := positionWith([]int{12, 15}, []int{0, 0}, 0, 4)
		w := doJSON(t, h.Rollout, "POST", "/api/rollout", RolloutRequest{Position: dead})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_POSITION", decodeError(t, w).Code)
	})
}

func TestReviewHandler(t *testing.T) {
	h := testHandlers(t)
	turns := []engine.Turn{
		{Roll: 2, Move: 0},
		{Roll: 1, Move: 0},
		{Roll: 3, Move: 0},
	}

	t.Run("rates each move", func(t *testing.T) {
		w := doJSON(t, h.Review, "POST", "/api/review", ReviewRequest{AI: testMC, Turns: turns, Seed: 4})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res struct {
			Moves []struct {
				Turn   int    `json:"turn"`
				Forced bool   `json:"forced"`
				Skill  string `json:"skill"`
			} `json:"moves"`
			Players [2]struct {
				Moves  int    `json:"moves"`
				Rating string `json:"rating"`
			} `json:"players"`
			Winner int `json:"winner"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		require.Len(t, res.Moves, 3)
		assert.True(t, res.Moves[0].Forced)
		assert.False(t, res.Moves[2].Forced)
		assert.NotEmpty(t, res.Moves[2].Skill)
		assert.Equal(t, 1, res.Players[0].Moves)
		assert.NotEqual(t, "Undefined", res.Players[0].Rating)
		assert.Equal(t, "Undefined", res.Players[1].Rating)
		assert.Equal(t, engine.NoWinner, res.Winner)
		assert.Equal(t, int64(1), h.pool.Stats().Slow.Total)
	})

	errorCases := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"invalid JSON", "{", http.StatusBadRequest, "INVALID_JSON"},
		{"no turns", ReviewRequest{AI: testMC}, http.StatusBadRequest, "MISSING_TURNS"},
		{"scoring AI", ReviewRequest{Turns: turns}, http.StatusBadRequest, "NOT_MONTE_CARLO"},
		{"unknown AI", ReviewRequest{AI: "#AI_Nobody", Turns: turns}, http.StatusBadRequest, "UNKNOWN_AI"},
		{"illegal move", ReviewRequest{AI: testMC, Turns: []engine.Turn{{Roll: 2, Move: 4}}}, http.StatusUnprocessableEntity, "ILLEGAL_MOVE"},
		{"bad roll", ReviewRequest{AI: testMC, Turns: []engine.Turn{{Roll: 5}}}, http.StatusBadRequest, "INVALID_ROLL"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, h.Review, "POST", "/api/review", tc.body)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantCode, decodeError(t, w).Code)
		})
	}
}

func TestRolloutSSE(t *testing.T) {
	h := testHandlers(t)
	q := url.Values{}
	q.Set("position", knockoutPosition())
	q.Set("ai", testMC)
	q.Set("budget", "10")
	q.Set("seed", "3")
	q.Set("workers", "1")

	req := httptest.NewRequest("GET", "/api/rollout/stream?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	h.RolloutSSE(w, req)

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: progress\n")
	assert.Contains(t, body, "event: result\n")
	assert.True(t, strings.HasSuffix(body, "event: done\n\n"))
	assert.NotContains(t, body, "event: error")
}

func TestRolloutSSEBudgetCapped(t *testing.T) {
	h := testHandlers(t)
	q := url.Values{}
	q.Set("position", knockoutPosition())
	q.Set("ai", testMC)
	q.Set("budget", "1000000000")
	q.Set("seed", "3")

	req := httptest.NewRequest("GET", "/api/rollout/stream?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	h.RolloutSSE(w, req)

	body := w.Body.String()
	assert.Contains(t, body, `"trials_total":60`)
	assert.NotContains(t, body, `"trials_total":1000000000`)
	assert.True(t, strings.HasSuffix(body, "event: done\n\n"))
}

func TestRolloutSSEErrors(t *testing.T) {
	h := testHandlers(t)
	for name, query := range map[string]string{
		"missing position": "",
		"bad position":     "position=nope",
		"unknown ai":       "position=" + url.QueryEscape(knockoutPosition()) + "&ai=nobody",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/rollout/stream?"+query, nil)
			w := httptest.NewRecorder()
			h.RolloutSSE(w, req)
			assert.Contains(t, w.Body.String(), "event: error\n")
		})
	}
}

func TestServerMiddleware(t *testing.T) {
	srv := NewServer(testRegistry(t), DefaultConfig(), "test", zerolog.Nop())
	handler := srv.Handler()

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest("OPTIONS", "/api/move", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/api/move", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

type wsReply struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func TestWebSocket(t *testing.T) {
	srv := NewServer(testRegistry(t), DefaultConfig(), "test", zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	roundTrip := func(msg interface{}) wsReply {
		t.Helper()
		require.NoError(t, conn.WriteJSON(msg))
		var r wsReply
		require.NoError(t, conn.ReadJSON(&r))
		return r
	}
	payload := func(v interface{}) json.RawMessage {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return b
	}

	r := roundTrip(WSMessage{Type: "ping", ID: "1"})
	assert.Equal(t, "pong", r.Type)
	assert.Equal(t, "1", r.ID)

	r = roundTrip(WSMessage{Type: "ping"})
	assert.Equal(t, "pong", r.Type)
	assert.NotEmpty(t, r.ID, "missing IDs are assigned")

	r = roundTrip(WSMessage{Type: "move", ID: "m", Payload: payload(MoveRequest{Position: knockoutPosition()})})
	require.Equal(t, "result", r.Type, r.Error)
	var move MoveResponse
	require.NoError(t, json.Unmarshal(r.Payload, &move))
	assert.Equal(t, 3, move.Move)

	r = roundTrip(WSMessage{Type: "score", ID: "s", Payload: payload(ScoreRequest{Position: knockoutPosition()})})
	require.Equal(t, "result", r.Type, r.Error)
	var score engine.AnalysisResult
	require.NoError(t, json.Unmarshal(r.Payload, &score))
	assert.Equal(t, 3, score.BestMove)

	r = roundTrip(WSMessage{Type: "move", ID: "bad", Payload: payload(MoveRequest{Position: "zzz"})})
	assert.Equal(t, "error", r.Type)
	assert.Equal(t, "INVALID_POSITION", r.Code)

	r = roundTrip(WSMessage{Type: "review", ID: "rv", Payload: payload(ReviewRequest{
		AI:    testMC,
		Turns: []engine.Turn{{Roll: 2, Move: 0}},
	})})
	require.Equal(t, "result", r.Type, r.Error)
	assert.Contains(t, string(r.Payload), `"forced":true`)

	r = roundTrip(WSMessage{Type: "review", ID: "rv2", Payload: payload(ReviewRequest{Turns: []engine.Turn{{Roll: 2}}})})
	assert.Equal(t, "NOT_MONTE_CARLO", r.Code)

	r = roundTrip(WSMessage{Type: "cube", ID: "x"})
	assert.Equal(t, "error", r.Type)
	assert.Equal(t, "UNKNOWN_TYPE", r.Code)
}
