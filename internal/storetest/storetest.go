// Package storetest provides an in-memory stand-in for the Postgres
// store, mirroring its semantics (force-end on create, duplicate-vote
// conflicts, scoreboard aggregation) so session and handler tests run
// without a database.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/classline/livepoll-backend/internal/store"
)

type Fake struct {
	mu     sync.Mutex
	nextID int64
	polls  map[int64]*store.Poll
	votes  []store.Vote

	// Error injection, checked before any state change.
	CreatePollErr error
	EndPollErr    error
	InsertVoteErr error
	ScoreboardErr error

	// EndedPolls records every EndPoll call in order.
	EndedPolls []int64
}

func New() *Fake {
	return &Fake{polls: make(map[int64]*store.Poll)}
}

// Seed installs a poll row directly, for recovery tests.
func (f *Fake) Seed(p store.Poll) store.Poll {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.UnixMilli(p.StartTime)
	}
	f.polls[p.ID] = &p
	return p
}

// SeedVote installs a vote row directly.
func (f *Fake) SeedVote(v store.Vote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes = append(f.votes, v)
}

func (f *Fake) Poll(id int64) (store.Poll, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.polls[id]
	if !ok {
		return store.Poll{}, false
	}
	return *p, true
}

func (f *Fake) VoteRows() []store.Vote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Vote(nil), f.votes...)
}

func (f *Fake) CreatePoll(_ context.Context, p store.NewPoll) (store.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreatePollErr != nil {
		return store.Poll{}, f.CreatePollErr
	}
	for _, existing := range f.polls {
		if existing.Status == store.StatusActive {
			existing.Status = store.StatusEnded
		}
	}
	f.nextID++
	poll := store.Poll{
		ID:            f.nextID,
		Question:      p.Question,
		Options:       append([]string(nil), p.Options...),
		Duration:      p.Duration,
		StartTime:     p.StartTime,
		CorrectAnswer: p.CorrectAnswer,
		Marks:         p.Marks,
		Status:        store.StatusActive,
		CreatedAt:     time.Now(),
	}
	f.polls[poll.ID] = &poll
	return poll, nil
}

func (f *Fake) EndPoll(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EndPollErr != nil {
		return f.EndPollErr
	}
	p, ok := f.polls[id]
	if !ok {
		return store.ErrPollNotFound
	}
	p.Status = store.StatusEnded
	f.EndedPolls = append(f.EndedPolls, id)
	return nil
}

func (f *Fake) ActivePoll(_ context.Context) (*store.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *store.Poll
	for _, p := range f.polls {
		if p.Status != store.StatusActive {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *Fake) InsertVote(_ context.Context, pollID int64, participantID, name, option string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertVoteErr != nil {
		return f.InsertVoteErr
	}
	for _, v := range f.votes {
		if v.PollID == pollID && v.ParticipantID == participantID {
			return fmt.Errorf("storetest: %w", store.ErrDuplicateVote)
		}
	}
	f.votes = append(f.votes, store.Vote{
		PollID:          pollID,
		ParticipantID:   participantID,
		ParticipantName: name,
		OptionSelected:  option,
		CreatedAt:       time.Now(),
	})
	return nil
}

func (f *Fake) VoteCounts(_ context.Context, pollID int64) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, v := range f.votes {
		if v.PollID == pollID {
			counts[v.OptionSelected]++
		}
	}
	return counts, nil
}

func (f *Fake) Voters(_ context.Context, pollID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, v := range f.votes {
		if v.PollID == pollID {
			ids = append(ids, v.ParticipantID)
		}
	}
	return ids, nil
}

func (f *Fake) ListPolls(_ context.Context) ([]store.PollHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	polls := make([]store.Poll, 0, len(f.polls))
	for _, p := range f.polls {
		polls = append(polls, *p)
	}
	sort.Slice(polls, func(i, j int) bool { return polls[i].CreatedAt.After(polls[j].CreatedAt) })

	out := make([]store.PollHistory, 0, len(polls))
	for _, p := range polls {
		counts := make(map[string]int, len(p.Options))
		for _, opt := range p.Options {
			counts[opt] = 0
		}
		for _, v := range f.votes {
			if v.PollID == p.ID {
				counts[v.OptionSelected]++
			}
		}
		out = append(out, store.PollHistory{Poll: p, VoteCounts: counts})
	}
	return out, nil
}

func (f *Fake) DeleteAllPolls(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = make(map[int64]*store.Poll)
	f.votes = nil
	return nil
}

func (f *Fake) Scoreboard(_ context.Context) ([]store.ScoreRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScoreboardErr != nil {
		return nil, f.ScoreboardErr
	}
	scores := make(map[string]*store.ScoreRow)
	for _, v := range f.votes {
		p, ok := f.polls[v.PollID]
		if !ok || p.CorrectAnswer == "" || v.OptionSelected != p.CorrectAnswer {
			continue
		}
		row, ok := scores[v.ParticipantID]
		if !ok {
			row = &store.ScoreRow{ParticipantID: v.ParticipantID, ParticipantName: v.ParticipantName}
			scores[v.ParticipantID] = row
		}
		row.Score += p.Marks
		row.ParticipantName = v.ParticipantName
	}
	out := make([]store.ScoreRow, 0, len(scores))
	for _, r := range scores {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ParticipantName < out[j].ParticipantName
	})
	return out, nil
}
