package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/classline/livepoll-backend/internal/store"
	"github.com/classline/livepoll-backend/pkg/types"
)

// armTimer cancels any running timer and starts a fresh 1-second tick
// loop for the current poll. The generation bump and the new loop are
// installed in the same actor step, so two timers can never race to
// close a poll.
func (s *Session) armTimer() {
	s.stopTimer()
	s.timerGen++
	gen := s.timerGen

	ctx, cancel := context.WithCancel(s.ctx)
	s.timerCancel = cancel

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case s.inbox <- tick{gen: gen}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

func (s *Session) stopTimer() {
	if s.timerCancel != nil {
		s.timerCancel()
		s.timerCancel = nil
	}
}

// handleTick recomputes remaining time from the absolute start
// timestamp. Below zero it ends the poll: durable status flip first,
// then the in-memory transition and the poll_ended broadcast.
func (s *Session) handleTick(msg tick) {
	if msg.gen != s.timerGen || !s.state.active {
		return // stale generation or poll already closed
	}

	remaining := s.state.remaining(s.now())
	if remaining > 0 {
		s.state.remainingTime = remaining
		s.broadcast(types.EvtTimerSync, types.TimerSync{RemainingTime: remaining, Active: true})
		return
	}

	if err := s.store.EndPoll(s.ctx, s.state.poll.ID); err != nil {
		// Keep ticking; the status flip retries next second and
		// recovery would reconcile after a crash either way.
		s.log.Error("mark poll ended failed", zap.Error(err), zap.Int64("poll_id", s.state.poll.ID))
		return
	}

	s.state.remainingTime = 0
	s.state.active = false
	s.state.poll.Status = store.StatusEnded
	s.stopTimer()

	s.log.Info("poll ended", zap.Int64("poll_id", s.state.poll.ID))
	s.broadcast(types.EvtPollEnded, s.state.snapshot())
	s.broadcast(types.EvtLeaderboardUpdate, sortedLeaderboard(s.board))
}
