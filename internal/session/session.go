package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/classline/livepoll-backend/internal/store"
	"github.com/classline/livepoll-backend/pkg/types"
)

// Store is what the session needs from the durable layer. Implemented
// by *store.Store; tests substitute an in-memory fake.
type Store interface {
	CreatePoll(ctx context.Context, p store.NewPoll) (store.Poll, error)
	EndPoll(ctx context.Context, id int64) error
	ActivePoll(ctx context.Context) (*store.Poll, error)
	InsertVote(ctx context.Context, pollID int64, participantID, name, option string) error
	VoteCounts(ctx context.Context, pollID int64) (map[string]int, error)
	Voters(ctx context.Context, pollID int64) ([]string, error)
	ListPolls(ctx context.Context) ([]store.PollHistory, error)
	DeleteAllPolls(ctx context.Context) error
	Scoreboard(ctx context.Context) ([]store.ScoreRow, error)
}

// Session is the single-writer owner of all live polling state: the
// active poll, the roster, the leaderboard cache and the chat log.
// Every mutation is serialized through the actor loop, so a vote
// racing a timer expiry is deterministically accepted or rejected,
// never lost.
type Session struct {
	inbox chan Msg
	store Store
	log   *zap.Logger
	now   func() time.Time

	state  pollState
	voted  map[string]bool // participant ids with a recorded vote for the active poll
	roster map[string]types.Participant
	board  map[string]*boardEntry
	chat   []types.ChatMessage

	clients map[string]chan types.Event

	timerGen    uint64
	timerCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Session at construction.
type Option func(*Session)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New builds the session, runs recovery against the store, and starts
// the actor loop. Recovery failures are logged and leave the session
// empty rather than refusing to start.
func New(parent context.Context, st Store, log *zap.Logger, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		inbox:   make(chan Msg, 64),
		store:   st,
		log:     log,
		now:     time.Now,
		voted:   make(map[string]bool),
		roster:  make(map[string]types.Participant),
		board:   make(map[string]*boardEntry),
		clients: make(map[string]chan types.Event),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.recoverState()

	go s.loop()
	return s
}

// Inbox is where the transport layer and tests send messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.clients[msg.ConnID] = msg.Outbox

			case Leave:
				s.removeConn(msg.ConnID)
				s.broadcast(types.EvtParticipantsUpdate, participantList(s.roster))

			case RequestState:
				s.unicast(msg.ConnID, types.EvtCurrentState, s.state.snapshot())
				s.unicast(msg.ConnID, types.EvtChatHistory, append([]types.ChatMessage(nil), s.chat...))
				s.unicast(msg.ConnID, types.EvtParticipantsUpdate, participantList(s.roster))
				s.unicast(msg.ConnID, types.EvtLeaderboardUpdate, sortedLeaderboard(s.board))

			case JoinSession:
				s.handleJoinSession(msg)

			case StartPoll:
				s.handleStartPoll(msg)

			case SubmitVote:
				s.handleVote(msg)

			case SendMessage:
				s.broadcast(types.EvtNewMessage, s.appendChat(msg))

			case KickParticipant:
				s.handleKick(msg)

			case WarnParticipant:
				text := msg.Message
				if text == "" {
					text = "You have received a warning from the presenter."
				}
				s.unicast(msg.TargetID, types.EvtWarning, types.Notice{Message: text})

			case ResetScores:
				s.handleResetScores()

			case GetPollHistory:
				s.unicast(msg.ConnID, types.EvtPollHistory, s.pollHistory())

			case DeletePollHistory:
				if err := s.store.DeleteAllPolls(s.ctx); err != nil {
					s.log.Error("delete poll history failed", zap.Error(err))
					s.unicast(msg.ConnID, types.EvtError, types.Notice{Message: "Failed to delete poll history"})
					break
				}
				s.unicast(msg.ConnID, types.EvtPollHistory, []types.PollHistoryEntry{})

			case tick:
				s.handleTick(msg)

			case GetView:
				msg.Reply <- s.view()

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleJoinSession(msg JoinSession) {
	s.roster[msg.ConnID] = types.Participant{
		ConnectionID:  msg.ConnID,
		ParticipantID: msg.ParticipantID,
		Name:          msg.Name,
	}
	// Score survives reconnects: keyed by participant id, not connection.
	if _, ok := s.board[msg.ParticipantID]; !ok {
		s.board[msg.ParticipantID] = &boardEntry{name: msg.Name}
	}
	s.broadcast(types.EvtParticipantsUpdate, participantList(s.roster))
	s.broadcast(types.EvtLeaderboardUpdate, sortedLeaderboard(s.board))
}

func validatePoll(msg StartPoll) error {
	if strings.TrimSpace(msg.Question) == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidPoll)
	}
	if len(msg.Options) < 2 {
		return fmt.Errorf("%w: at least two options are required", ErrInvalidPoll)
	}
	seen := make(map[string]bool, len(msg.Options))
	for _, opt := range msg.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("%w: empty option label", ErrInvalidPoll)
		}
		if seen[opt] {
			return fmt.Errorf("%w: duplicate option label %q", ErrInvalidPoll, opt)
		}
		seen[opt] = true
	}
	if msg.Duration < 1 {
		return fmt.Errorf("%w: duration must be at least 1 second", ErrInvalidPoll)
	}
	if msg.Marks < 0 {
		return fmt.Errorf("%w: marks must not be negative", ErrInvalidPoll)
	}
	if msg.CorrectAnswer != "" && !seen[msg.CorrectAnswer] {
		return fmt.Errorf("%w: correct answer is not one of the options", ErrInvalidPoll)
	}
	return nil
}

// handleStartPoll creates a new poll. The store force-ends any active
// poll in the same transaction, and the old timer generation is
// cancelled before the new one is armed, so exactly one timer ticks at
// any moment.
func (s *Session) handleStartPoll(msg StartPoll) {
	if err := validatePoll(msg); err != nil {
		s.unicast(msg.ConnID, types.EvtError, types.Notice{Message: err.Error()})
		return
	}

	poll, err := s.store.CreatePoll(s.ctx, store.NewPoll{
		Question:      msg.Question,
		Options:       msg.Options,
		Duration:      msg.Duration,
		StartTime:     s.now().UnixMilli(),
		CorrectAnswer: msg.CorrectAnswer,
		Marks:         msg.Marks,
	})
	if err != nil {
		// Fail closed: no in-memory mutation without the durable row.
		s.log.Error("start poll failed", zap.Error(err))
		s.unicast(msg.ConnID, types.EvtError, types.Notice{Message: "Failed to start poll"})
		return
	}

	s.state = newPollState(poll, nil, poll.Duration)
	s.voted = make(map[string]bool)
	s.armTimer()

	s.log.Info("poll started",
		zap.Int64("poll_id", poll.ID),
		zap.Int("duration", poll.Duration),
		zap.Int("options", len(poll.Options)))
	s.broadcast(types.EvtStartPoll, s.state.snapshot())
}

// handleVote is the vote ledger: active check, duplicate check (memory
// fast path, store unique index as the arbiter), durable append, then
// tally and leaderboard updates. The durable write happens-before the
// in-memory tally, so a crash in between leaves the store as ground
// truth.
func (s *Session) handleVote(msg SubmitVote) {
	if !s.state.active || s.state.poll == nil || s.state.poll.ID != msg.PollID {
		s.unicast(msg.ConnID, types.EvtError, types.Notice{Message: ErrPollInactive.Error()})
		return
	}
	if s.voted[msg.ParticipantID] {
		s.unicast(msg.ConnID, types.EvtError, types.Notice{Message: store.ErrDuplicateVote.Error()})
		return
	}

	if err := s.store.InsertVote(s.ctx, msg.PollID, msg.ParticipantID, msg.Name, msg.Option); err != nil {
		if errors.Is(err, store.ErrDuplicateVote) {
			// Same rejection whether caught in memory or by the index.
			s.voted[msg.ParticipantID] = true
			s.unicast(msg.ConnID, types.EvtError, types.Notice{Message: store.ErrDuplicateVote.Error()})
			return
		}
		s.log.Error("vote insert failed", zap.Error(err), zap.Int64("poll_id", msg.PollID))
		s.unicast(msg.ConnID, types.EvtError, types.Notice{Message: "Failed to submit vote"})
		return
	}

	s.voted[msg.ParticipantID] = true
	s.state.poll.VoteCounts[msg.Option]++
	s.broadcast(types.EvtPollUpdate, types.TallyUpdate{VoteCounts: s.state.snapshot().Poll.VoteCounts})

	if s.state.correctAnswer != "" && msg.Option == s.state.correctAnswer && s.state.marks > 0 {
		entry, ok := s.board[msg.ParticipantID]
		if !ok {
			entry = &boardEntry{}
			s.board[msg.ParticipantID] = entry
		}
		entry.score += s.state.marks
		entry.name = msg.Name
		s.broadcast(types.EvtLeaderboardUpdate, sortedLeaderboard(s.board))
	}
}

func (s *Session) appendChat(msg SendMessage) types.ChatMessage {
	cm := types.ChatMessage{
		ID:          s.now().UnixMilli(),
		SenderName:  msg.SenderName,
		Text:        msg.Text,
		IsPresenter: msg.IsPresenter,
		Timestamp:   s.now(),
	}
	s.chat = append(s.chat, cm)
	if len(s.chat) > chatLogCap {
		s.chat = s.chat[len(s.chat)-chatLogCap:]
	}
	return cm
}

func (s *Session) handleKick(msg KickParticipant) {
	if _, ok := s.clients[msg.TargetID]; !ok {
		return // already disconnected, not an error
	}
	s.unicast(msg.TargetID, types.EvtKicked, types.Notice{
		Message: "You have been removed from this session by the presenter.",
	})
	s.removeConn(msg.TargetID)
	s.broadcast(types.EvtParticipantsUpdate, participantList(s.roster))
}

// handleResetScores zeroes everyone currently connected and forgets
// absent participants. Durable vote history is untouched, so a restart
// restores pre-reset scores; that matches the "cache over the
// scoreboard query" contract.
func (s *Session) handleResetScores() {
	s.board = make(map[string]*boardEntry)
	for _, p := range s.roster {
		s.board[p.ParticipantID] = &boardEntry{name: p.Name}
	}
	s.log.Info("leaderboard reset")
	s.broadcast(types.EvtLeaderboardUpdate, sortedLeaderboard(s.board))
}

func (s *Session) pollHistory() []types.PollHistoryEntry {
	polls, err := s.store.ListPolls(s.ctx)
	if err != nil {
		s.log.Error("fetch poll history failed", zap.Error(err))
		return []types.PollHistoryEntry{}
	}
	out := make([]types.PollHistoryEntry, 0, len(polls))
	for _, p := range polls {
		out = append(out, p.HistoryEntry())
	}
	return out
}

func (s *Session) view() View {
	v := View{
		Active:        s.state.active,
		RemainingTime: s.state.remainingTime,
		NumClients:    len(s.clients),
		Participants:  participantList(s.roster),
		Leaderboard:   sortedLeaderboard(s.board),
		ChatLen:       len(s.chat),
	}
	if s.state.poll != nil {
		snap := s.state.snapshot()
		v.Poll = snap.Poll
	}
	return v
}

// removeConn drops a connection from the client registry and roster.
// Closing the outbox tells the transport writer to shut the socket.
func (s *Session) removeConn(connID string) {
	if ch, ok := s.clients[connID]; ok {
		close(ch)
		delete(s.clients, connID)
	}
	delete(s.roster, connID)
}

func (s *Session) shutdown() {
	s.stopTimer()
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.cancel()
}

// broadcast fans an event out to every connected client. A client
// whose outbox is full is dropped rather than allowed to stall the
// actor.
func (s *Session) broadcast(event string, payload any) {
	for id, ch := range s.clients {
		select {
		case ch <- types.Event{Event: event, Payload: payload}:
		default:
			s.log.Warn("dropping slow client", zap.String("conn_id", id))
			s.removeConn(id)
		}
	}
}

// unicast delivers to exactly one connection; a vanished connection is
// a no-op, which absorbs races with disconnects.
func (s *Session) unicast(connID, event string, payload any) {
	ch, ok := s.clients[connID]
	if !ok {
		return
	}
	select {
	case ch <- types.Event{Event: event, Payload: payload}:
	default:
		s.log.Warn("dropping slow client", zap.String("conn_id", connID))
		s.removeConn(connID)
	}
}
