package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/classline/livepoll-backend/internal/store"
	"github.com/classline/livepoll-backend/internal/storetest"
	"github.com/classline/livepoll-backend/pkg/types"
)

func newHandler(t *testing.T, fake *storetest.Fake) *PollHandler {
	t.Helper()
	return NewPollHandler(fake, zaptest.NewLogger(t))
}

func TestCreatePoll_Valid(t *testing.T) {
	fake := storetest.New()
	h := newHandler(t, fake)

	body, _ := json.Marshal(map[string]any{
		"question": "Which planet is closest to the sun?",
		"options":  []string{"Mercury", "Venus"},
		"duration": 30,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/polls", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var snap types.PollSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, store.StatusActive, snap.Status)
	assert.Equal(t, map[string]int{"Mercury": 0, "Venus": 0}, snap.VoteCounts)

	stored, ok := fake.Poll(snap.ID)
	require.True(t, ok)
	assert.Equal(t, store.StatusActive, stored.Status)
}

func TestCreatePoll_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad json", "{"},
		{"missing question", `{"options":["A","B"],"duration":30}`},
		{"one option", `{"question":"q","options":["A"],"duration":30}`},
		{"zero duration", `{"question":"q","options":["A","B"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHandler(t, storetest.New())
			req := httptest.NewRequest(http.MethodPost, "/api/polls", bytes.NewReader([]byte(tc.body)))
			rec := httptest.NewRecorder()
			h.Create(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestActivePoll_NotFound(t *testing.T) {
	h := newHandler(t, storetest.New())
	rec := httptest.NewRecorder()
	h.Active(rec, httptest.NewRequest(http.MethodGet, "/api/polls/active", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivePoll_WithCounts(t *testing.T) {
	fake := storetest.New()
	poll := fake.Seed(store.Poll{
		Question:  "q",
		Options:   []string{"A", "B"},
		Duration:  30,
		StartTime: time.Now().UnixMilli(),
		Status:    store.StatusActive,
	})
	fake.SeedVote(store.Vote{PollID: poll.ID, ParticipantID: "x", ParticipantName: "Xia", OptionSelected: "A"})

	h := newHandler(t, fake)
	rec := httptest.NewRecorder()
	h.Active(rec, httptest.NewRequest(http.MethodGet, "/api/polls/active", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap types.PollSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, map[string]int{"A": 1, "B": 0}, snap.VoteCounts)
}

func TestHistory_NewestFirstWithCounts(t *testing.T) {
	fake := storetest.New()
	old := fake.Seed(store.Poll{
		Question:  "old",
		Options:   []string{"A", "B"},
		Duration:  30,
		StartTime: time.Now().Add(-time.Hour).UnixMilli(),
		Status:    store.StatusEnded,
	})
	fake.SeedVote(store.Vote{PollID: old.ID, ParticipantID: "x", ParticipantName: "Xia", OptionSelected: "B"})
	fake.Seed(store.Poll{
		Question:  "new",
		Options:   []string{"C", "D"},
		Duration:  30,
		StartTime: time.Now().UnixMilli(),
		Status:    store.StatusActive,
	})

	h := newHandler(t, fake)
	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/polls/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var history []types.PollHistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "new", history[0].Question)
	assert.Equal(t, map[string]int{"A": 0, "B": 1}, history[1].VoteCounts)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
