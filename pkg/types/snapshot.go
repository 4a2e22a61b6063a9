package types

import "time"

// PollSnapshot is the client-visible view of one poll. StartTime is
// a millisecond unix timestamp so browser clients can diff against
// Date.now() directly.
type PollSnapshot struct {
	ID            int64          `json:"id"`
	Question      string         `json:"question"`
	Options       []string       `json:"options"`
	Duration      int            `json:"duration"`
	StartTime     int64          `json:"startTime"`
	CorrectAnswer string         `json:"correctAnswer,omitempty"`
	Marks         int            `json:"marks"`
	Status        string         `json:"status"`
	VoteCounts    map[string]int `json:"voteCounts"`
}

// SessionSnapshot is the full "what is happening right now" view sent
// on request_state, start_poll and poll_ended. Inactive sessions carry
// Active=false and a nil Poll.
type SessionSnapshot struct {
	Active        bool          `json:"active"`
	Poll          *PollSnapshot `json:"poll,omitempty"`
	Duration      int           `json:"duration,omitempty"`
	StartTime     int64         `json:"startTime,omitempty"`
	RemainingTime int           `json:"remainingTime,omitempty"`
	CorrectAnswer string        `json:"correctAnswer,omitempty"`
	Marks         int           `json:"marks,omitempty"`
}

// Participant is one connected client as shown in the roster.
// ConnectionID changes on every reconnect; ParticipantID is the stable
// token the leaderboard is keyed by.
type Participant struct {
	ConnectionID  string `json:"connectionId"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
}

// LeaderboardEntry is one row of the ranked cumulative scoreboard.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
}

// ChatMessage is one entry of the bounded chat log.
type ChatMessage struct {
	ID          int64     `json:"id"`
	SenderName  string    `json:"senderName"`
	Text        string    `json:"text"`
	IsPresenter bool      `json:"isPresenter"`
	Timestamp   time.Time `json:"timestamp"`
}

// PollHistoryEntry is one past (or current) poll with its final counts,
// as served by poll history queries.
type PollHistoryEntry struct {
	PollSnapshot
	CreatedAt time.Time `json:"createdAt"`
}
