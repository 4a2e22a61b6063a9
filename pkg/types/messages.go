package types

// Event is the server -> client envelope. Every push over the websocket
// is one of these, with Payload shaped per the Evt* constant.
type Event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Server -> client event kinds.
const (
	EvtCurrentState       = "current_state"       // SessionSnapshot
	EvtChatHistory        = "chat_history"        // []ChatMessage
	EvtParticipantsUpdate = "participants_update" // []Participant
	EvtLeaderboardUpdate  = "leaderboard_update"  // []LeaderboardEntry
	EvtStartPoll          = "start_poll"          // SessionSnapshot
	EvtPollUpdate         = "poll_update"         // TallyUpdate
	EvtPollEnded          = "poll_ended"          // SessionSnapshot
	EvtTimerSync          = "timer_sync"          // TimerSync
	EvtNewMessage         = "new_message"         // ChatMessage
	EvtPollHistory        = "poll_history"        // []PollHistoryEntry
	EvtKicked             = "kicked"              // Notice
	EvtWarning            = "warning"             // Notice
	EvtError              = "error"               // Notice
)

// TallyUpdate carries the refreshed per-option counts after a vote lands.
type TallyUpdate struct {
	VoteCounts map[string]int `json:"voteCounts"`
}

// TimerSync is pushed once per second while a poll is running.
type TimerSync struct {
	RemainingTime int  `json:"remainingTime"`
	Active        bool `json:"active"`
}

// Notice is a human-readable message targeted at one client
// (kick, warning, recoverable error).
type Notice struct {
	Message string `json:"message"`
}
