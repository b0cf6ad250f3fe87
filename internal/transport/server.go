// Package transport is the HTTP adapter: long-poll delivery of
// notifications, lobby topic membership and the player commands.
//
// Callers identify themselves with the X-Account-ID header. Issuing and
// checking credentials happens in front of this adapter.
package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/match"
	"github.com/roach88/brawl/internal/notify"
)

// AccountHeader carries the caller's account id.
const AccountHeader = "X-Account-ID"

// CodeBadRequest is returned for malformed requests. It is not a game code.
const CodeBadRequest = "BAD_REQUEST"

// CodeUnauthorized is returned when the account header is missing.
const CodeUnauthorized = "UNAUTHORIZED"

// Server wires a match service and a hub to HTTP routes.
type Server struct {
	matches *match.Service
	hub     *notify.Hub
	logger  *slog.Logger

	// maxPoll caps the timeout a client may ask for.
	maxPoll time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMaxPoll caps client-requested poll timeouts.
func WithMaxPoll(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.maxPoll = d
		}
	}
}

// New creates a Server.
func New(matches *match.Service, hub *notify.Hub, opts ...Option) *Server {
	s := &Server{
		matches: matches,
		hub:     hub,
		logger:  slog.Default(),
		maxPoll: notify.DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", Healthz)
	r.Post("/matches", s.CreateMatch)
	r.Get("/matches/{matchID}", s.GetMatch)

	r.Group(func(r chi.Router) {
		r.Use(requireAccount)

		r.Get("/poll", s.Poll)
		r.Put("/lobbies/{lobbyID}/members", s.JoinLobby)
		r.Delete("/lobbies/{lobbyID}/members", s.LeaveLobby)

		r.Get("/matches/{matchID}/me", s.GetView)
		r.Post("/matches/{matchID}/buy", s.Buy)
		r.Post("/matches/{matchID}/sell", s.Sell)
		r.Post("/matches/{matchID}/reroll", s.Reroll)
		r.Post("/matches/{matchID}/upgrade", s.Upgrade)
		r.Post("/matches/{matchID}/move", s.Move)
		r.Post("/matches/{matchID}/lock", s.SetLock)
		r.Post("/matches/{matchID}/avatar", s.SelectAvatar)
	})
	return r
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type accountKey struct{}

func requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(AccountHeader), 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Code: CodeUnauthorized, Message: "missing or invalid " + AccountHeader})
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), id)))
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusOf maps a game error code to an HTTP status.
func statusOf(code game.ErrorCode) int {
	switch code {
	case game.CodeMatchNotFound, game.CodePlayerNotFound:
		return http.StatusNotFound
	case game.CodeInsufficientFunds, game.CodeInvalidIndex, game.CodeBoardFull, game.CodeInvalidUpgradeSet:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := game.CodeOf(err)
	status := statusOf(code)
	msg := err.Error()
	var ge *game.Error
	if errors.As(err, &ge) {
		msg = ge.Message
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Code: string(code), Message: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: CodeBadRequest, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
