package store

import "github.com/classline/livepoll-backend/pkg/types"

// Snapshot converts a durable poll row into its wire shape, merging in
// per-option counts with every declared option defaulted to 0 so
// unchosen options still render client-side.
func (p Poll) Snapshot(counts map[string]int) types.PollSnapshot {
	merged := make(map[string]int, len(p.Options))
	for _, opt := range p.Options {
		merged[opt] = 0
	}
	for opt, n := range counts {
		merged[opt] = n
	}
	return types.PollSnapshot{
		ID:            p.ID,
		Question:      p.Question,
		Options:       append([]string(nil), p.Options...),
		Duration:      p.Duration,
		StartTime:     p.StartTime,
		CorrectAnswer: p.CorrectAnswer,
		Marks:         p.Marks,
		Status:        p.Status,
		VoteCounts:    merged,
	}
}

// HistoryEntry is the wire shape of one poll plus its counts.
func (p PollHistory) HistoryEntry() types.PollHistoryEntry {
	return types.PollHistoryEntry{
		PollSnapshot: p.Poll.Snapshot(p.VoteCounts),
		CreatedAt:    p.CreatedAt,
	}
}
