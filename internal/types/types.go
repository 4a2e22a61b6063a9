package types

// ClientMessage is the client -> server envelope. Fields are a union
// across all message types; the ws handler picks the ones that matter
// for each Type.
type ClientMessage struct {
	Type string `json:"type"`

	// join_session / submit_vote
	ParticipantID string `json:"participantId,omitempty"`
	Name          string `json:"name,omitempty"`

	// submit_vote
	PollID int64  `json:"pollId,omitempty"`
	Option string `json:"option,omitempty"`

	// start_poll
	Question      string   `json:"question,omitempty"`
	Options       []string `json:"options,omitempty"`
	Duration      int      `json:"duration,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Marks         int      `json:"marks,omitempty"`

	// send_message
	SenderName  string `json:"senderName,omitempty"`
	Text        string `json:"text,omitempty"`
	IsPresenter bool   `json:"isPresenter,omitempty"`

	// kick_participant / warn_participant
	ConnectionID string `json:"connectionId,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Client -> server message types.
const (
	MsgRequestState      = "request_state"
	MsgJoinSession       = "join_session"
	MsgStartPoll         = "start_poll"
	MsgSubmitVote        = "submit_vote"
	MsgSendMessage       = "send_message"
	MsgKickParticipant   = "kick_participant"
	MsgWarnParticipant   = "warn_participant"
	MsgResetScores       = "reset_scores"
	MsgGetPollHistory    = "get_poll_history"
	MsgDeletePollHistory = "delete_poll_history"
)
