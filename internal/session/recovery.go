package session

import (
	"go.uber.org/zap"
)

// recoverState runs once at construction, before the actor loop starts
// accepting messages. It rebuilds the leaderboard from the durable
// scoreboard query, then reconciles any poll that was active when the
// process last stopped: expired polls are marked ended, live ones are
// resumed with their original start timestamp so countdowns stay
// consistent across the restart. This is the only place wall-clock
// drift across a restart is reconciled.
func (s *Session) recoverState() {
	if rows, err := s.store.Scoreboard(s.ctx); err != nil {
		s.log.Error("restore leaderboard failed", zap.Error(err))
	} else {
		for _, r := range rows {
			s.board[r.ParticipantID] = &boardEntry{name: r.ParticipantName, score: r.Score}
		}
		s.log.Info("leaderboard restored", zap.Int("participants", len(rows)))
	}

	poll, err := s.store.ActivePoll(s.ctx)
	if err != nil {
		s.log.Error("poll recovery failed", zap.Error(err))
		return
	}
	if poll == nil {
		s.log.Info("no active poll found on startup")
		return
	}

	elapsed := int((s.now().UnixMilli() - poll.StartTime) / 1000)
	remaining := poll.Duration - elapsed

	if remaining <= 0 {
		// Expired while the process was down: settle the status, do
		// not resume a timer.
		if err := s.store.EndPoll(s.ctx, poll.ID); err != nil {
			s.log.Error("end expired poll failed", zap.Error(err), zap.Int64("poll_id", poll.ID))
		}
		s.log.Info("poll expired while down", zap.Int64("poll_id", poll.ID))
		return
	}

	counts, err := s.store.VoteCounts(s.ctx, poll.ID)
	if err != nil {
		s.log.Error("poll recovery failed", zap.Error(err), zap.Int64("poll_id", poll.ID))
		return
	}
	voters, err := s.store.Voters(s.ctx, poll.ID)
	if err != nil {
		s.log.Error("poll recovery failed", zap.Error(err), zap.Int64("poll_id", poll.ID))
		return
	}

	s.state = newPollState(*poll, counts, remaining)
	s.voted = make(map[string]bool, len(voters))
	for _, id := range voters {
		s.voted[id] = true
	}
	s.armTimer()

	s.log.Info("resumed active poll",
		zap.Int64("poll_id", poll.ID),
		zap.Int("remaining", remaining))
}
