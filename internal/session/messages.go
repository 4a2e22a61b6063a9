package session

import "github.com/classline/livepoll-backend/pkg/types"

// Msg is a message into the session actor. All session state is owned
// by the actor goroutine; the transport and tests talk to it only
// through the inbox.
type Msg interface{ isSessionMsg() }

// Join registers a connection's outbox so it starts receiving
// broadcasts. It does not put the connection on the roster; that
// happens when the client announces itself with JoinSession.
type Join struct {
	ConnID string
	Outbox chan types.Event
}

// Leave drops a connection: outbox closed, roster entry removed,
// updated roster broadcast.
type Leave struct{ ConnID string }

// RequestState asks for the full initial snapshot set (session state,
// chat history, roster, leaderboard), unicast to the requesting
// connection. Clients pull this after wiring their listeners; it is
// never pushed proactively.
type RequestState struct{ ConnID string }

// JoinSession announces a participant's identity on a connection.
type JoinSession struct {
	ConnID        string
	ParticipantID string
	Name          string
}

// StartPoll creates a new poll, force-ending any active one.
type StartPoll struct {
	ConnID        string
	Question      string
	Options       []string
	Duration      int
	CorrectAnswer string
	Marks         int
}

// SubmitVote records one participant's vote for the active poll.
type SubmitVote struct {
	ConnID        string
	PollID        int64
	ParticipantID string
	Name          string
	Option        string
}

// SendMessage appends a chat message and broadcasts it.
type SendMessage struct {
	SenderName  string
	Text        string
	IsPresenter bool
}

// KickParticipant removes the target connection from the session and
// tells it why. No-op if the connection is already gone.
type KickParticipant struct{ TargetID string }

// WarnParticipant delivers a warning to one connection.
type WarnParticipant struct {
	TargetID string
	Message  string
}

// ResetScores zeroes the scores of everyone currently connected and
// drops entries for absent participants. Vote history is untouched.
type ResetScores struct{}

// GetPollHistory fetches all polls with their vote breakdowns and
// unicasts them to the requesting connection.
type GetPollHistory struct{ ConnID string }

// DeletePollHistory wipes all polls (votes cascade) and unicasts the
// now-empty history to the requester.
type DeletePollHistory struct{ ConnID string }

// Shutdown stops the actor and closes every client outbox.
type Shutdown struct{}

// GetView reflects internal state without data races. Test-only.
type GetView struct{ Reply chan View }

// tick is sent by the timer goroutine once per second. Ticks from a
// cancelled timer generation are dropped.
type tick struct{ gen uint64 }

// View is the race-free state reflection answered to GetView.
type View struct {
	Active        bool
	Poll          *types.PollSnapshot
	RemainingTime int
	NumClients    int
	Participants  []types.Participant
	Leaderboard   []types.LeaderboardEntry
	ChatLen       int
}

func (Join) isSessionMsg()              {}
func (Leave) isSessionMsg()             {}
func (RequestState) isSessionMsg()      {}
func (JoinSession) isSessionMsg()       {}
func (StartPoll) isSessionMsg()         {}
func (SubmitVote) isSessionMsg()        {}
func (SendMessage) isSessionMsg()       {}
func (KickParticipant) isSessionMsg()   {}
func (WarnParticipant) isSessionMsg()   {}
func (ResetScores) isSessionMsg()       {}
func (GetPollHistory) isSessionMsg()    {}
func (DeletePollHistory) isSessionMsg() {}
func (Shutdown) isSessionMsg()          {}
func (GetView) isSessionMsg()           {}
func (tick) isSessionMsg()              {}
