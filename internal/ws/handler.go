package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classline/livepoll-backend/internal/session"
	"github.com/classline/livepoll-backend/internal/types"
	outtypes "github.com/classline/livepoll-backend/pkg/types"
)

const writeTimeout = 3 * time.Second

// Handler upgrades a client connection and bridges it to the session
// actor: a reader loop decodes client messages into session messages,
// a writer goroutine drains the per-connection outbox. No business
// logic lives here.
func Handler(sess *session.Session, log *zap.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := &websocket.AcceptOptions{OriginPatterns: originPatterns}
		if len(originPatterns) == 1 && originPatterns[0] == "*" {
			opts = &websocket.AcceptOptions{InsecureSkipVerify: true}
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusInternalError, "closing")

		connID := uuid.NewString()
		out := make(chan outtypes.Event, 16)

		sess.Inbox() <- session.Join{ConnID: connID, Outbox: out}
		defer func() { sess.Inbox() <- session.Leave{ConnID: connID} }()

		log.Debug("client connected", zap.String("conn_id", connID))

		// Writer: drains the outbox until the session closes it
		// (disconnect, kick, shutdown), then shuts the socket so the
		// reader unblocks.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range out {
				payload, err := json.Marshal(ev)
				if err != nil {
					log.Error("marshal event failed", zap.Error(err), zap.String("event", ev.Event))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			conn.Close(websocket.StatusNormalClosure, "session closed")
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("client read ended", zap.String("conn_id", connID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				log.Debug("bad client payload", zap.String("conn_id", connID), zap.Error(err))
				continue
			}

			msg, ok := toSessionMsg(connID, cm)
			if !ok {
				log.Debug("unknown message type", zap.String("type", cm.Type))
				continue
			}
			sess.Inbox() <- msg
		}
	}
}

func toSessionMsg(connID string, m types.ClientMessage) (session.Msg, bool) {
	switch m.Type {
	case types.MsgRequestState:
		return session.RequestState{ConnID: connID}, true
	case types.MsgJoinSession:
		return session.JoinSession{ConnID: connID, ParticipantID: m.ParticipantID, Name: m.Name}, true
	case types.MsgStartPoll:
		return session.StartPoll{
			ConnID:        connID,
			Question:      m.Question,
			Options:       m.Options,
			Duration:      m.Duration,
			CorrectAnswer: m.CorrectAnswer,
			Marks:         m.Marks,
		}, true
	case types.MsgSubmitVote:
		return session.SubmitVote{
			ConnID:        connID,
			PollID:        m.PollID,
			ParticipantID: m.ParticipantID,
			Name:          m.Name,
			Option:        m.Option,
		}, true
	case types.MsgSendMessage:
		return session.SendMessage{SenderName: m.SenderName, Text: m.Text, IsPresenter: m.IsPresenter}, true
	case types.MsgKickParticipant:
		return session.KickParticipant{TargetID: m.ConnectionID}, true
	case types.MsgWarnParticipant:
		return session.WarnParticipant{TargetID: m.ConnectionID, Message: m.Message}, true
	case types.MsgResetScores:
		return session.ResetScores{}, true
	case types.MsgGetPollHistory:
		return session.GetPollHistory{ConnID: connID}, true
	case types.MsgDeletePollHistory:
		return session.DeletePollHistory{ConnID: connID}, true
	default:
		return nil, false
	}
}
