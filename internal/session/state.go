package session

import (
	"sort"
	"time"

	"github.com/classline/livepoll-backend/internal/store"
	"github.com/classline/livepoll-backend/pkg/types"
)

const chatLogCap = 100

// pollState is the in-memory view of the poll happening right now.
// It is a cache over the durable rows: replaced wholesale when a new
// poll starts, rebuilt from the store on recovery.
type pollState struct {
	active        bool
	poll          *types.PollSnapshot
	duration      int
	startTime     int64 // ms, fixed at creation, never reset
	remainingTime int
	correctAnswer string
	marks         int
}

func newPollState(p store.Poll, counts map[string]int, remaining int) pollState {
	snap := p.Snapshot(counts)
	return pollState{
		active:        true,
		poll:          &snap,
		duration:      p.Duration,
		startTime:     p.StartTime,
		remainingTime: remaining,
		correctAnswer: p.CorrectAnswer,
		marks:         p.Marks,
	}
}

// snapshot deep-copies the session state for delivery. Receivers
// marshal on their own goroutines, so they must never alias the
// actor-owned maps.
func (ps *pollState) snapshot() types.SessionSnapshot {
	if !ps.active && ps.poll == nil {
		return types.SessionSnapshot{Active: false}
	}
	poll := *ps.poll
	poll.Options = append([]string(nil), ps.poll.Options...)
	poll.VoteCounts = make(map[string]int, len(ps.poll.VoteCounts))
	for opt, n := range ps.poll.VoteCounts {
		poll.VoteCounts[opt] = n
	}
	return types.SessionSnapshot{
		Active:        ps.active,
		Poll:          &poll,
		Duration:      ps.duration,
		StartTime:     ps.startTime,
		RemainingTime: ps.remainingTime,
		CorrectAnswer: ps.correctAnswer,
		Marks:         ps.marks,
	}
}

// remaining computes seconds left from the absolute start timestamp,
// clamped to zero. 1-second granularity is deliberate.
func (ps *pollState) remaining(now time.Time) int {
	elapsed := int((now.UnixMilli() - ps.startTime) / 1000)
	r := ps.duration - elapsed
	if r < 0 {
		return 0
	}
	return r
}

type boardEntry struct {
	name  string
	score int
}

// sortedLeaderboard ranks by score descending, name ascending on ties.
func sortedLeaderboard(board map[string]*boardEntry) []types.LeaderboardEntry {
	out := make([]types.LeaderboardEntry, 0, len(board))
	for id, e := range board {
		out = append(out, types.LeaderboardEntry{
			ParticipantID: id,
			Name:          e.name,
			Score:         e.score,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func participantList(roster map[string]types.Participant) []types.Participant {
	out := make([]types.Participant, 0, len(roster))
	for _, p := range roster {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
