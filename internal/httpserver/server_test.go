package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/cantstop/internal/agent"
	"github.com/robalobadob/cantstop/internal/dice"
	"github.com/robalobadob/cantstop/internal/game"
	"github.com/robalobadob/cantstop/internal/store"
)

type fakeCheckpointer struct {
	saved int
	err   error
}

func (f *fakeCheckpointer) Checkpoint(ctx context.Context, t *agent.QTable) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.saved = t.Len()
	return f.saved, nil
}

type harness struct {
	srv   *Server
	store store.Store
}

func newHarness(t *testing.T, ckpt Checkpointer) *harness {
	t.Helper()
	return newHarnessWith(t, ckpt, Options{})
}

func newHarnessWith(t *testing.T, ckpt Checkpointer, opts Options) *harness {
	t.Helper()
	st := store.NewMemoryStore(func(id string) *game.Game {
		return game.New(id, dice.NewRoller(dice.SeedFor("test", id)))
	})
	return &harness{
		srv:   New(st, agent.New(agent.WithSeed(1)), ckpt, opts),
		store: st,
	}
}

func (h *harness) do(t *testing.T, method, path, session, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])
}

func TestRollDice(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/roll_dice", "s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", rec.Header().Get(SessionHeader))

	var res rollRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.DiceRoll, 4)
	for _, d := range res.DiceRoll {
		assert.True(t, d >= 1 && d <= 6)
	}
	assert.Equal(t, game.PossibleMoves(res.DiceRoll), res.Moves)
}

func TestDefaultSession(t *testing.T) {
	t.Run("cookieless requests share one board", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(t, http.MethodGet, "/roll_dice", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, DefaultSession, rec.Header().Get(SessionHeader))
		assert.Empty(t, rec.Result().Cookies())

		for _, mv := range []string{`[2,12]`, `[2,12]`, `[2,12]`, `[11,11]`, `[11,11]`} {
			rec = h.do(t, http.MethodPost, "/make_move", "", `{"move":`+mv+`}`)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "continue", decode(t, rec)["status"])
		}
		rec = h.do(t, http.MethodPost, "/make_move", "", `{"move":[11,3]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "win", decode(t, rec)["status"])
		assert.Equal(t, 1, h.store.Len())
	})

	t.Run("new game hands out a session cookie", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(t, http.MethodPost, "/game/new", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		id := rec.Header().Get(SessionHeader)
		require.NotEmpty(t, id)
		assert.NotEqual(t, DefaultSession, id)
		assert.Equal(t, id, decode(t, rec)["sessionId"])

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "cantstop_session", cookies[0].Name)
		assert.Equal(t, id, cookies[0].Value)

		// the cookie alone binds the next request to the same session
		req := httptest.NewRequest(http.MethodPost, "/make_move", strings.NewReader(`{"move":[7,7]}`))
		req.AddCookie(cookies[0])
		rec = httptest.NewRecorder()
		h.srv.Router().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
		g, err := h.store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, []int{7}, g.State().Active)

		_, err = h.store.Get(context.Background(), DefaultSession)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestMakeMove(t *testing.T) {
	t.Run("continue", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(t, http.MethodPost, "/make_move", "s", `{"move":[6,8]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "continue", decode(t, rec)["status"])
	})

	t.Run("invalid resets the turn", func(t *testing.T) {
		h := newHarness(t, nil)
		h.do(t, http.MethodPost, "/make_move", "s", `{"move":[6,6]}`)
		rec := h.do(t, http.MethodPost, "/make_move", "s", `{"move":[1,14]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "invalid", decode(t, rec)["status"])

		g, err := h.store.Get(context.Background(), "s")
		require.NoError(t, err)
		snap := g.Snapshot()
		assert.Empty(t, snap.Active)
		assert.Equal(t, 1, snap.Columns[4].Progress) // column 6
	})

	t.Run("win", func(t *testing.T) {
		h := newHarness(t, nil)
		var last string
		for _, body := range []string{
			`{"move":[2,12]}`, `{"move":[2,12]}`, `{"move":[2,12]}`,
			`{"move":[11,11]}`, `{"move":[11,11]}`, `{"move":[11,3]}`,
		} {
			rec := h.do(t, http.MethodPost, "/make_move", "w", body)
			require.Equal(t, http.StatusOK, rec.Code)
			last = decode(t, rec)["status"].(string)
		}
		assert.Equal(t, "win", last)
	})

	t.Run("malformed bodies", func(t *testing.T) {
		h := newHarness(t, nil)
		cases := map[string]string{
			"not json":    `{"move":`,
			"missing key": `{}`,
			"one column":  `{"move":[7]}`,
			"three cols":  `{"move":[7,8,9]}`,
			"strings":     `{"move":["a","b"]}`,
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				rec := h.do(t, http.MethodPost, "/make_move", "m", body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Contains(t, decode(t, rec), "error")
			})
		}
		_, err := h.store.Get(context.Background(), "m")
		assert.ErrorIs(t, err, store.ErrNotFound, "bad requests must not touch the store")
	})
}

func TestEndAndResetTurn(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/make_move", "s", `{"move":[5,9]}`)

	rec := h.do(t, http.MethodPost, "/end_turn", "s", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "turn ended", decode(t, rec)["status"])

	h.do(t, http.MethodPost, "/make_move", "s", `{"move":[5,5]}`)
	rec = h.do(t, http.MethodPost, "/reset_turn", "s", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "turn reset", decode(t, rec)["status"])

	rec = h.do(t, http.MethodGet, "/state", "s", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st stateRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, []int{5, 9}, st.Banked)
	assert.Empty(t, st.Active)
	assert.Equal(t, 2, st.Columns[3].Progress) // column 5: 1 + 2 - 1
	assert.Equal(t, 1, st.Columns[7].Progress) // column 9
	assert.False(t, st.Won)
	assert.NotEmpty(t, st.StateKey)
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/make_move", "a", `{"move":[7,7]}`)
	h.do(t, http.MethodPost, "/make_move", "b", `{"move":[4,10]}`)

	ga, err := h.store.Get(context.Background(), "a")
	require.NoError(t, err)
	gb, err := h.store.Get(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, ga.State().Active)
	assert.Equal(t, []int{4, 10}, gb.State().Active)
}

func TestNewGame(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/make_move", "s", `{"move":[7,7]}`)
	rec := h.do(t, http.MethodPost, "/game/new", "s", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s", decode(t, rec)["sessionId"])

	g, err := h.store.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Empty(t, g.State().Active)
}

func TestAgentPlay(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodPost, "/agent/play", "s", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var step agent.Step
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &step))
	assert.Len(t, step.Dice, 4)
	assert.Contains(t, step.Moves, step.Move)
	assert.Equal(t, game.StatusContinue, step.Status)
}

func TestAgentTrain(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodPost, "/agent/train", "", `{"episodes":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res trainRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Episodes)
	assert.False(t, res.Partial)
	assert.Positive(t, res.Entries)

	rec = h.do(t, http.MethodPost, "/agent/train", "", `{"episodes":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodPost, "/agent/train", "", `{"episodes":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentTrainBudget(t *testing.T) {
	const timeout = 100 * time.Millisecond
	h := newHarnessWith(t, nil, Options{RequestTimeout: timeout})

	start := time.Now()
	rec := h.do(t, http.MethodPost, "/agent/train", "", `{"episodes":10000}`)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, rec.Code)
	var res trainRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	assert.LessOrEqual(t, res.Episodes, 10000)
	assert.Equal(t, res.Episodes < 10000, res.Partial)
	if res.Partial {
		assert.Less(t, elapsed, timeout, "reply must beat the request timeout")
	}
}

func TestCheckpoint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(t, http.MethodPost, "/agent/checkpoint", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("saves the table", func(t *testing.T) {
		ck := &fakeCheckpointer{}
		h := newHarness(t, ck)
		h.do(t, http.MethodPost, "/agent/play", "s", "")
		rec := h.do(t, http.MethodPost, "/agent/checkpoint", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decode(t, rec)["saved"])
		assert.Equal(t, 1, ck.saved)
	})

	t.Run("store failure", func(t *testing.T) {
		h := newHarness(t, &fakeCheckpointer{err: errors.New("disk full")})
		rec := h.do(t, http.MethodPost, "/agent/checkpoint", "", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestNotFound(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/nope", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])
}
