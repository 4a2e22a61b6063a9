package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classline/livepoll-backend/internal/store"
	"github.com/classline/livepoll-backend/internal/storetest"
	"github.com/classline/livepoll-backend/pkg/types"
)

func seedActivePoll(fake *storetest.Fake, start time.Time, duration int) store.Poll {
	return fake.Seed(store.Poll{
		Question:      "Which planet is closest to the sun?",
		Options:       []string{"Mercury", "Venus"},
		Duration:      duration,
		StartTime:     start.UnixMilli(),
		CorrectAnswer: "Mercury",
		Marks:         10,
		Status:        store.StatusActive,
	})
}

func TestRecovery_ResumesMidPollWithOriginalStart(t *testing.T) {
	fake := storetest.New()
	clock := newFakeClock()
	t0 := clock.Now()

	poll := seedActivePoll(fake, t0, 30)
	fake.SeedVote(store.Vote{PollID: poll.ID, ParticipantID: "x", ParticipantName: "Xia", OptionSelected: "Mercury"})

	// Process "restarts" 10 seconds into the poll.
	clock.Advance(10 * time.Second)
	s := newTestSession(t, fake, clock)

	view := getView(t, s)
	require.True(t, view.Active)
	require.NotNil(t, view.Poll)
	assert.Equal(t, poll.ID, view.Poll.ID)
	assert.Equal(t, 20, view.RemainingTime)

	// The clock is never reset on recovery.
	assert.Equal(t, t0.UnixMilli(), view.Poll.StartTime)

	// Tallies come from the durable rows, with unchosen options
	// present at zero.
	assert.Equal(t, map[string]int{"Mercury": 1, "Venus": 0}, view.Poll.VoteCounts)
}

func TestRecovery_RestoresDuplicateCheck(t *testing.T) {
	fake := storetest.New()
	clock := newFakeClock()
	poll := seedActivePoll(fake, clock.Now(), 30)
	fake.SeedVote(store.Vote{PollID: poll.ID, ParticipantID: "x", ParticipantName: "Xia", OptionSelected: "Mercury"})

	clock.Advance(5 * time.Second)
	s := newTestSession(t, fake, clock)

	out := join(s, "c1")
	s.Inbox() <- SubmitVote{ConnID: "c1", PollID: poll.ID, ParticipantID: "x", Name: "Xia", Option: "Venus"}
	ev := recvKind(t, out, types.EvtError, time.Second)
	assert.Contains(t, ev.Payload.(types.Notice).Message, "already voted")

	// A new participant can still vote.
	s.Inbox() <- SubmitVote{ConnID: "c1", PollID: poll.ID, ParticipantID: "y", Name: "Yan", Option: "Venus"}
	tally := recvKind(t, out, types.EvtPollUpdate, time.Second).Payload.(types.TallyUpdate)
	assert.Equal(t, map[string]int{"Mercury": 1, "Venus": 1}, tally.VoteCounts)
}

func TestRecovery_EndsPollThatExpiredWhileDown(t *testing.T) {
	fake := storetest.New()
	clock := newFakeClock()
	poll := seedActivePoll(fake, clock.Now(), 30)

	// Restart lands 40 seconds after the poll started.
	clock.Advance(40 * time.Second)
	s := newTestSession(t, fake, clock)

	view := getView(t, s)
	assert.False(t, view.Active)

	stored, ok := fake.Poll(poll.ID)
	require.True(t, ok)
	assert.Equal(t, store.StatusEnded, stored.Status)
	assert.Contains(t, fake.EndedPolls, poll.ID)
}

func TestRecovery_RebuildsLeaderboardFromScoreboard(t *testing.T) {
	fake := storetest.New()
	clock := newFakeClock()

	ended := fake.Seed(store.Poll{
		Question:      "2+2?",
		Options:       []string{"3", "4"},
		Duration:      10,
		StartTime:     clock.Now().Add(-time.Hour).UnixMilli(),
		CorrectAnswer: "4",
		Marks:         5,
		Status:        store.StatusEnded,
	})
	fake.SeedVote(store.Vote{PollID: ended.ID, ParticipantID: "x", ParticipantName: "Xia", OptionSelected: "4"})
	fake.SeedVote(store.Vote{PollID: ended.ID, ParticipantID: "y", ParticipantName: "Yan", OptionSelected: "3"})

	s := newTestSession(t, fake, clock)

	view := getView(t, s)
	require.Len(t, view.Leaderboard, 1)
	assert.Equal(t, "x", view.Leaderboard[0].ParticipantID)
	assert.Equal(t, 5, view.Leaderboard[0].Score)
}

func TestRecovery_ScoreboardFailureStartsEmpty(t *testing.T) {
	fake := storetest.New()
	fake.ScoreboardErr = assert.AnError

	s := newTestSession(t, fake, newFakeClock())

	// The process still serves; it just starts with nothing.
	view := getView(t, s)
	assert.False(t, view.Active)
	assert.Empty(t, view.Leaderboard)
}
