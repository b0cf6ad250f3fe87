package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/brawl/internal/match"
	"github.com/roach88/brawl/internal/notify"
	"github.com/roach88/brawl/internal/shop"
)

// Poll waits for the caller's next notification. The optional timeout
// query parameter (a Go duration) shortens the wait; it is capped by the
// server's maximum. A timeout answers 200 with a no_update notification.
func (s *Server) Poll(w http.ResponseWriter, r *http.Request) {
	timeout := s.maxPoll
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			badRequest(w, "invalid timeout")
			return
		}
		timeout = min(d, s.maxPoll)
	}
	n := s.hub.Poll(r.Context(), notify.UserID(accountFrom(r.Context())), timeout)
	writeJSON(w, http.StatusOK, n)
}

// JoinLobby adds the caller to a lobby topic.
func (s *Server) JoinLobby(w http.ResponseWriter, r *http.Request) {
	s.hub.JoinTopic(notify.LobbyTopic(chi.URLParam(r, "lobbyID")), notify.UserID(accountFrom(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

// LeaveLobby removes the caller from a lobby topic.
func (s *Server) LeaveLobby(w http.ResponseWriter, r *http.Request) {
	s.hub.LeaveTopic(notify.LobbyTopic(chi.URLParam(r, "lobbyID")), notify.UserID(accountFrom(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

type seatRequest struct {
	Name      string   `json:"name"`
	AccountID *int64   `json:"account_id,omitempty"`
	Avatars   []string `json:"avatars,omitempty"`
}

type createMatchRequest struct {
	LobbyID string        `json:"lobby_id,omitempty"`
	Seats   []seatRequest `json:"seats"`
}

// CreateMatch starts a match from the posted lobby.
func (s *Server) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return
	}
	lobby := match.Lobby{ID: req.LobbyID}
	for _, seat := range req.Seats {
		lobby.Seats = append(lobby.Seats, match.Seat{Name: seat.Name, AccountID: seat.AccountID, Avatars: seat.Avatars})
	}

	m, err := s.matches.Create(r.Context(), lobby)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, match.NewMatchView(m))
}

// GetMatch returns the public view of a match.
func (s *Server) GetMatch(w http.ResponseWriter, r *http.Request) {
	view, err := s.matches.Summary(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetView returns the caller's private view of a match.
func (s *Server) GetView(w http.ResponseWriter, r *http.Request) {
	view, err := s.matches.View(r.Context(), chi.URLParam(r, "matchID"), accountFrom(r.Context()))
	s.respond(w, r, view, err)
}

type buyRequest struct {
	ShopIndex  int `json:"shop_index"`
	BoardIndex int `json:"board_index"`
}

// Buy buys a shop offer onto the board.
func (s *Server) Buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return
	}
	view, err := s.matches.Buy(r.Context(), chi.URLParam(r, "matchID"), accountFrom(r.Context()), req.ShopIndex, req.BoardIndex)
	s.respond(w, r, view, err)
}

type slotRequest struct {
	BoardIndex int `json:"board_index"`
}

// Sell sells a board unit.
func (s *Server) Sell(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return
	}
	view, err := s.matches.Sell(r.Context(), chi.URLParam(r, "matchID"), accountFrom(r.Context()), req.BoardIndex)
	s.respond(w, r, view, err)
}

// Reroll pays for a new shop.
func (s *Server) Reroll(w http.ResponseWriter, r *http.Request) {
	view, err := s.matches.Reroll(r.Context(), chi.URLParam(r, "matchID"), accountFrom(r.Context()))
	s.respond(w, r, view, err)
}

type upgradeRequest struct {
	Slots [shop.UpgradeCopies]int `json:"slots"`
}

// Upgrade merges three copies.
func (s *Server) Upgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return
	}
	view, err := s.matches.Upgrade(r.Context(), chi.URLParam(r, "matchID"), accountFrom(r.Context()), req.Slots)
	s.respond(w, r, view, err)
}

type moveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Move swaps two board slots.
func (s *Server) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return
	}
	view, err := s.matches.Move(r.Context(), chi.URLParam(r, "matchID"), accountFrom(r.Context()), req.From, req.To)
	s.respond(w, r, view, err)
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

// SetLock locks or unlocks the shop.
func (s *Server) SetLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return
	}
	view, err := s.matches.SetShopLock(r.Context(), chi.URLParam(r, "matchID"), accountFrom(r.Context()), req.Locked)
	s.respond(w, r, view, err)
}

type avatarRequest struct {
	Avatar string `json:"avatar"`
}

// SelectAvatar picks an offered avatar.
func (s *Server) SelectAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return
	}
	view, err := s.matches.SelectAvatar(r.Context(), chi.URLParam(r, "matchID"), accountFrom(r.Context()), req.Avatar)
	s.respond(w, r, view, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, view match.PlayerView, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
