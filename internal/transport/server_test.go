package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brawl/internal/catalog"
	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/match"
	"github.com/roach88/brawl/internal/notify"
	"github.com/roach88/brawl/internal/store"
	"github.com/roach88/brawl/internal/testutil"
)

type testServer struct {
	*httptest.Server
	hub *notify.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := notify.New(notify.WithLogger(logger))
	svc := match.NewService(st, hub, catalog.MustDefault(),
		match.WithClock(testutil.NewManualClock(testutil.Epoch)),
		match.WithIDGenerator(match.NewFixedGenerator("m1", "m2")),
		match.WithSeeds(func() uint64 { return 7 }),
		match.WithLogger(logger),
	)
	srv := httptest.NewServer(New(svc, hub, WithLogger(logger), WithMaxPoll(time.Second)).Routes())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, hub: hub}
}

// do sends a request as account (0 for none) and decodes a JSON response
// into out when out is non-nil.
func (ts *testServer) do(t *testing.T, method, path string, account int64, body any, out any) int {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, ts.URL+path, rd)
	require.NoError(t, err)
	if account != 0 {
		req.Header.Set(AccountHeader, strconv.FormatInt(account, 10))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) createMatch(t *testing.T) match.MatchView {
	t.Helper()
	var view match.MatchView
	status := ts.do(t, http.MethodPost, "/matches", 0, createMatchRequest{Seats: []seatRequest{
		{Name: "Ann", AccountID: testutil.Account(10)},
		{Name: "Bob", AccountID: testutil.Account(20)},
		{Name: "Bot"},
	}}, &view)
	require.Equal(t, http.StatusCreated, status)
	return view
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", 0, nil, nil))
}

func TestRequireAccount(t *testing.T) {
	ts := newTestServer(t)

	var body errorBody
	status := ts.do(t, http.MethodGet, "/poll", 0, nil, &body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, CodeUnauthorized, body.Code)
}

func TestCreateAndGetMatch(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createMatch(t)
	assert.Equal(t, "m1", created.ID)
	assert.Equal(t, game.PhaseShop, created.Turn.Phase)
	require.Len(t, created.Players, 3)
	assert.True(t, created.Players[2].Bot)

	var got match.MatchView
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/matches/m1", 0, nil, &got))
	assert.Equal(t, "m1", got.ID)
	assert.Len(t, got.Players, 3)

	var body errorBody
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/matches/nope", 0, nil, &body))
	assert.Equal(t, string(game.CodeMatchNotFound), body.Code)
}

func TestCreateMatch_Invalid(t *testing.T) {
	ts := newTestServer(t)

	var body errorBody
	status := ts.do(t, http.MethodPost, "/matches", 0, createMatchRequest{Seats: []seatRequest{{Name: "solo"}}}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, string(game.CodeInvalidIndex), body.Code)

	status = ts.do(t, http.MethodPost, "/matches", 0, `{"seats": [], "extra": 1}`, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeBadRequest, body.Code)
}

func TestPoll_DeliversThenTimesOut(t *testing.T) {
	ts := newTestServer(t)
	ts.createMatch(t)

	var n struct {
		Kind  notify.Kind     `json:"kind"`
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/poll", 10, nil, &n))
	assert.Equal(t, notify.KindMatchUpdate, n.Kind)
	assert.Equal(t, "match:m1", n.Topic)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/poll", 10, nil, &n))
	assert.Equal(t, notify.KindPlayerView, n.Kind)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/poll?timeout=10ms", 10, nil, &n))
	assert.Equal(t, notify.KindNoUpdate, n.Kind)

	var body errorBody
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/poll?timeout=later", 10, nil, &body))
}

func TestLobbyMembership(t *testing.T) {
	ts := newTestServer(t)
	topic := notify.LobbyTopic("l1")

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPut, "/lobbies/l1/members", 10, nil, nil))
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPut, "/lobbies/l1/members", 20, nil, nil))
	assert.Equal(t, []notify.UserID{10, 20}, ts.hub.Members(topic))

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/lobbies/l1/members", 10, nil, nil))
	assert.Equal(t, []notify.UserID{20}, ts.hub.Members(topic))
}

func TestCommands(t *testing.T) {
	ts := newTestServer(t)
	ts.createMatch(t)

	var view match.PlayerView
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/matches/m1/me", 10, nil, &view))
	assert.Equal(t, 2, view.Money)

	var body errorBody
	status := ts.do(t, http.MethodPost, "/matches/m1/buy", 10, buyRequest{ShopIndex: 9, BoardIndex: 0}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, string(game.CodeInvalidIndex), body.Code)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/matches/m1/buy", 10, buyRequest{ShopIndex: 0, BoardIndex: 2}, &view))
	assert.Equal(t, 1, view.Money)
	require.NotNil(t, view.Board[2])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/matches/m1/move", 10, moveRequest{From: 2, To: 7}, &view))
	assert.Nil(t, view.Board[2])
	assert.NotNil(t, view.Board[7])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/matches/m1/sell", 10, slotRequest{BoardIndex: 7}, &view))
	assert.Equal(t, 2, view.Money)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/matches/m1/lock", 10, lockRequest{Locked: true}, &view))
	assert.True(t, view.Shop.Locked)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/matches/m1/reroll", 10, nil, &view))
	assert.Equal(t, 1, view.Money)

	status = ts.do(t, http.MethodPost, "/matches/m1/upgrade", 10, upgradeRequest{Slots: [3]int{0, 1, 2}}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status = ts.do(t, http.MethodPost, "/matches/m1/avatar", 10, avatarRequest{Avatar: view.AvatarChoices[0]}, &view)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, view.AvatarChoices[0], view.Avatar)

	status = ts.do(t, http.MethodPost, "/matches/m1/buy", 99, buyRequest{}, &body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(game.CodePlayerNotFound), body.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		code game.ErrorCode
		want int
	}{
		{game.CodeInsufficientFunds, http.StatusUnprocessableEntity},
		{game.CodeInvalidIndex, http.StatusUnprocessableEntity},
		{game.CodeBoardFull, http.StatusUnprocessableEntity},
		{game.CodeInvalidUpgradeSet, http.StatusUnprocessableEntity},
		{game.CodeMatchNotFound, http.StatusNotFound},
		{game.CodePlayerNotFound, http.StatusNotFound},
		{game.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.code), string(tt.code))
	}
}
