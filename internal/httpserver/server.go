// internal/httpserver/server.go
//
// HTTP server wiring for the Can't Stop backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     zerolog access logging).
//   - Public endpoints: "/", "/health".
//   - Game endpoints: GET /roll_dice, POST /make_move, POST /end_turn, ...
//     (routes_game.go).
//   - Agent endpoints: /agent/* (routes_agent.go).
//   - Session binding: a request is tied to the session id carried in the
//     X-Session-ID header or the session cookie; each session owns one board.
//     Requests without an id all play on the shared default board. New ids
//     are only handed out by POST /game/new.
//
// Notes:
//   - There is no authentication; a session id is only a handle, not a
//     credential.
//   - Engine operations are atomic per board (see game.Game), so concurrent
//     requests on one session cannot break the board's invariants.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/cantstop/internal/agent"
	"github.com/robalobadob/cantstop/internal/store"
)

// SessionHeader carries the session id on requests and responses.
const SessionHeader = "X-Session-ID"

// DefaultSession is the board shared by clients that send no session id.
const DefaultSession = "default"

// Checkpointer persists the agent's value table.
type Checkpointer interface {
	Checkpoint(ctx context.Context, t *agent.QTable) (int, error)
}

// Options tunes the server; zero values fall back to defaults.
type Options struct {
	ClientOrigin   string
	SessionCookie  string
	RequestTimeout time.Duration
}

// Server bundles router, session store and the shared agent.
type Server struct {
	r      *chi.Mux
	store  store.Store
	agent  *agent.Agent
	ckpt   Checkpointer // nil disables /agent/checkpoint
	cookie string

	trainBudget time.Duration // must finish inside RequestTimeout
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, ag *agent.Agent, ckpt Checkpointer, opts Options) *Server {
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	if opts.SessionCookie == "" {
		opts.SessionCookie = "cantstop_session"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	s := &Server{
		r:           chi.NewRouter(),
		store:       st,
		agent:       ag,
		ckpt:        ckpt,
		cookie:      opts.SessionCookie,
		trainBudget: opts.RequestTimeout * 3 / 4,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                    // add X-Request-ID
	s.r.Use(chimw.RealIP)                       // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger))        // per-request logger
	s.r.Use(requestIDLogger)                    // tag it with the request id
	s.r.Use(hlog.AccessHandler(accessLog))      // one line per request
	s.r.Use(chimw.Recoverer)                    // recover from panics
	s.r.Use(chimw.Timeout(opts.RequestTimeout)) // bound handler time
	s.r.Use(jsonContentType)                    // default JSON responses
	s.r.Use(cors(opts.ClientOrigin))            // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"cantstop-go","endpoints":["/health","GET /roll_dice","POST /make_move","POST /end_turn","POST /reset_turn","GET /state","POST /game/new","POST /agent/play","POST /agent/train","POST /agent/checkpoint"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.store.Len()})
	})

	s.mountGame(s.r)
	s.mountAgent(s.r)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return s
}

// Handler exposes the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.r }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)
			w.Header().Set("Access-Control-Expose-Headers", SessionHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestIDLogger adds chi's request id to the request logger.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, dur time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("took", dur).
		Msg("request")
}

// ------------------------------- sessions ----------------------------------

// sessionID returns the caller's session id. Requests that carry none
// share the DefaultSession board.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		if c, err := r.Cookie(s.cookie); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = DefaultSession
	}
	w.Header().Set(SessionHeader, id)
	return id
}

// mintSession starts a new session and hands its id back as a cookie.
func (s *Server) mintSession(w http.ResponseWriter) string {
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	w.Header().Set(SessionHeader, id)
	return id
}

// ------------------------------- small util --------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
