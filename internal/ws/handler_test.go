package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/classline/livepoll-backend/internal/session"
	"github.com/classline/livepoll-backend/internal/storetest"
	"github.com/classline/livepoll-backend/internal/types"
	outtypes "github.com/classline/livepoll-backend/pkg/types"
)

// decoded server event with the payload left raw for per-test decoding.
type rawEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, strings.Replace(url, "http", "ws", 1), nil)
	require.NoError(t, err)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, m types.ClientMessage) {
	t.Helper()
	payload, err := json.Marshal(m)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))
}

// readEvent skips events until one of the wanted kind arrives.
func readEvent(t *testing.T, conn *websocket.Conn, kind string) rawEvent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		_, data, err := conn.Read(ctx)
		cancel()
		require.NoError(t, err, "waiting for %q", kind)

		var ev rawEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Event == kind {
			return ev
		}
	}
}

func TestHandler_RequestStateRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sess := session.New(ctx, storetest.New(), zaptest.NewLogger(t))
	srv := httptest.NewServer(Handler(sess, zaptest.NewLogger(t), []string{"*"}))
	t.Cleanup(srv.Close)

	conn := dial(t, srv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	send(t, conn, types.ClientMessage{Type: types.MsgRequestState})

	ev := readEvent(t, conn, outtypes.EvtCurrentState)
	var snap outtypes.SessionSnapshot
	require.NoError(t, json.Unmarshal(ev.Payload, &snap))
	assert.False(t, snap.Active)

	readEvent(t, conn, outtypes.EvtChatHistory)
	readEvent(t, conn, outtypes.EvtParticipantsUpdate)
	readEvent(t, conn, outtypes.EvtLeaderboardUpdate)
}

func TestHandler_StartPollAndVoteOverWire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sess := session.New(ctx, storetest.New(), zaptest.NewLogger(t))
	srv := httptest.NewServer(Handler(sess, zaptest.NewLogger(t), []string{"*"}))
	t.Cleanup(srv.Close)

	presenter := dial(t, srv.URL)
	defer presenter.Close(websocket.StatusNormalClosure, "done")
	voter := dial(t, srv.URL)
	defer voter.Close(websocket.StatusNormalClosure, "done")

	send(t, voter, types.ClientMessage{Type: types.MsgJoinSession, ParticipantID: "x", Name: "Xia"})
	send(t, presenter, types.ClientMessage{
		Type:          types.MsgStartPoll,
		Question:      "Which planet is closest to the sun?",
		Options:       []string{"Mercury", "Venus"},
		Duration:      30,
		CorrectAnswer: "Mercury",
		Marks:         10,
	})

	ev := readEvent(t, voter, outtypes.EvtStartPoll)
	var snap outtypes.SessionSnapshot
	require.NoError(t, json.Unmarshal(ev.Payload, &snap))
	require.True(t, snap.Active)
	require.NotNil(t, snap.Poll)

	send(t, voter, types.ClientMessage{
		Type:          types.MsgSubmitVote,
		PollID:        snap.Poll.ID,
		ParticipantID: "x",
		Name:          "Xia",
		Option:        "Mercury",
	})

	ev = readEvent(t, presenter, outtypes.EvtPollUpdate)
	var tally outtypes.TallyUpdate
	require.NoError(t, json.Unmarshal(ev.Payload, &tally))
	assert.Equal(t, map[string]int{"Mercury": 1, "Venus": 0}, tally.VoteCounts)

	// Second vote from the same participant bounces.
	send(t, voter, types.ClientMessage{
		Type:          types.MsgSubmitVote,
		PollID:        snap.Poll.ID,
		ParticipantID: "x",
		Name:          "Xia",
		Option:        "Venus",
	})
	ev = readEvent(t, voter, outtypes.EvtError)
	var notice outtypes.Notice
	require.NoError(t, json.Unmarshal(ev.Payload, &notice))
	assert.Contains(t, notice.Message, "already voted")
}

func TestHandler_KickClosesConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sess := session.New(ctx, storetest.New(), zaptest.NewLogger(t))
	srv := httptest.NewServer(Handler(sess, zaptest.NewLogger(t), []string{"*"}))
	t.Cleanup(srv.Close)

	presenter := dial(t, srv.URL)
	defer presenter.Close(websocket.StatusNormalClosure, "done")
	victim := dial(t, srv.URL)
	defer victim.Close(websocket.StatusNormalClosure, "done")

	send(t, victim, types.ClientMessage{Type: types.MsgJoinSession, ParticipantID: "v", Name: "Vic"})

	// Fish the victim's connection id out of the roster broadcast.
	ev := readEvent(t, presenter, outtypes.EvtParticipantsUpdate)
	var roster []outtypes.Participant
	require.NoError(t, json.Unmarshal(ev.Payload, &roster))
	require.Len(t, roster, 1)

	send(t, presenter, types.ClientMessage{Type: types.MsgKickParticipant, ConnectionID: roster[0].ConnectionID})

	readEvent(t, victim, outtypes.EvtKicked)

	// The server closes the socket after the kicked notice.
	readCtx, readCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer readCancel()
	for {
		if _, _, err := victim.Read(readCtx); err != nil {
			break
		}
	}
}
