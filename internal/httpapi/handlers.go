package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/classline/livepoll-backend/internal/store"
	"github.com/classline/livepoll-backend/pkg/types"
)

// PollStore is the read-mostly slice of the store the REST surface
// uses. It never touches session state; poll creation through here is
// the degraded, non-session-aware path for integration use outside the
// live flow.
type PollStore interface {
	CreatePoll(ctx context.Context, p store.NewPoll) (store.Poll, error)
	ActivePoll(ctx context.Context) (*store.Poll, error)
	VoteCounts(ctx context.Context, pollID int64) (map[string]int, error)
	ListPolls(ctx context.Context) ([]store.PollHistory, error)
}

type PollHandler struct {
	store PollStore
	log   *zap.Logger
}

func NewPollHandler(st PollStore, log *zap.Logger) *PollHandler {
	return &PollHandler{store: st, log: log}
}

type createPollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Duration int      `json:"duration"`
}

// Create handles POST /api/polls.
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" || len(req.Options) < 2 || req.Duration < 1 {
		writeError(w, http.StatusBadRequest,
			"invalid poll data: provide question, options (>= 2) and duration")
		return
	}

	poll, err := h.store.CreatePoll(r.Context(), store.NewPoll{
		Question:  req.Question,
		Options:   req.Options,
		Duration:  req.Duration,
		StartTime: time.Now().UnixMilli(),
	})
	if err != nil {
		h.log.Error("create poll failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create poll")
		return
	}

	writeJSON(w, http.StatusCreated, poll.Snapshot(nil))
}

// Active handles GET /api/polls/active.
func (h *PollHandler) Active(w http.ResponseWriter, r *http.Request) {
	poll, err := h.store.ActivePoll(r.Context())
	if err != nil {
		h.log.Error("get active poll failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve active poll")
		return
	}
	if poll == nil {
		writeError(w, http.StatusNotFound, "no active poll found")
		return
	}

	counts, err := h.store.VoteCounts(r.Context(), poll.ID)
	if err != nil {
		h.log.Error("get vote counts failed", zap.Error(err), zap.Int64("poll_id", poll.ID))
		writeError(w, http.StatusInternalServerError, "failed to retrieve active poll")
		return
	}

	writeJSON(w, http.StatusOK, poll.Snapshot(counts))
}

// History handles GET /api/polls/history.
func (h *PollHandler) History(w http.ResponseWriter, r *http.Request) {
	polls, err := h.store.ListPolls(r.Context())
	if err != nil {
		h.log.Error("list polls failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve polls")
		return
	}

	out := make([]types.PollHistoryEntry, 0, len(polls))
	for _, p := range polls {
		out = append(out, p.HistoryEntry())
	}
	writeJSON(w, http.StatusOK, out)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
