package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetrelay/pkg/kv"
	"github.com/carverauto/fleetrelay/pkg/logger"
	"github.com/carverauto/fleetrelay/pkg/models"
	"github.com/carverauto/fleetrelay/pkg/registry"
	"github.com/carverauto/fleetrelay/pkg/relay"
)

func TestCheckOrigin(t *testing.T) {
	cors := models.CORSConfig{AllowedOrigins: []string{"https://console.example.com"}}

	req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	assert.True(t, checkOrigin(req, cors), "no Origin header means a non-browser client")

	req.Header.Set("Origin", "https://console.example.com")
	assert.True(t, checkOrigin(req, cors))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, checkOrigin(req, cors))

	assert.True(t, checkOrigin(req, models.CORSConfig{AllowedOrigins: []string{"*"}}))
}

func TestConnSendNeverBlocks(t *testing.T) {
	c := newConn(nil, logger.NewTestLogger())

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.Send("status", nil))
	}

	// No write pump is draining, so the next send must be refused
	// instead of blocking the caller.
	err := c.Send("status", nil)
	require.ErrorIs(t, err, errSendBufferFull)
}

func TestConnCloseRefusesFurtherSends(t *testing.T) {
	c := newConn(nil, logger.NewTestLogger())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "closing twice is a no-op")

	err := c.Send("status", nil)
	require.ErrorIs(t, err, errConnClosed)
}

func TestCloseDeliversQueuedNotice(t *testing.T) {
	upgrader := websocket.Upgrader{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sock, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}

		c := newConn(sock, logger.NewTestLogger())
		go c.writePump()

		// Queue the notice and close immediately, the way an eviction
		// does. The peer must still receive the frame before the
		// closing handshake.
		assert.NoError(t, c.Send(models.EventForceLogout,
			models.ForceLogoutPayload{Reason: "signed in from another session"}))
		assert.NoError(t, c.Close())
	}))
	t.Cleanup(ts.Close)

	client := dial(t, ts)

	notice := readFrame(t, client)
	assert.Equal(t, models.EventForceLogout, notice.Event)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err := client.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"expected a normal closure after the notice, got %v", err)
}

func TestConnSubscriptions(t *testing.T) {
	c := newConn(nil, logger.NewTestLogger())

	assert.False(t, c.Subscribed("status:R1"))

	c.Subscribe("status:R1")
	c.Subscribe("status:R1")
	assert.True(t, c.Subscribed("status:R1"))
	assert.False(t, c.Subscribed("status:R2"))
}

// outFrame is the wire shape of one server-to-client message.
type outFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newRelayServer(t *testing.T) (*httptest.Server, *relay.Engine, *relay.StateCache) {
	t.Helper()

	log := logger.NewTestLogger()
	cache := relay.NewStateCache(kv.NewMemoryStore(), log)
	engine := relay.NewEngine(models.ScopeRobot, registry.New[relay.Handle](), cache, log,
		relay.NewMetrics(prometheus.NewRegistry()))

	transport := NewServer(engine, models.CORSConfig{AllowedOrigins: []string{"*"}}, log)
	engine.SetBroadcaster(transport)

	ts := httptest.NewServer(http.HandlerFunc(transport.HandleWS))
	t.Cleanup(ts.Close)

	return ts, engine, cache
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
}

func readFrame(t *testing.T, conn *websocket.Conn) outFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var f outFrame
	require.NoError(t, conn.ReadJSON(&f))

	return f
}

func TestRelayEndToEnd(t *testing.T) {
	ts, _, cache := newRelayServer(t)

	robot := dial(t, ts)
	sendEvent(t, robot, models.EventRegisterRobot, map[string]interface{}{"robot_id": "R1"})

	// The robot's registration is processed on its own read loop; wait
	// for the cache write before registering the operator.
	require.Eventually(t, func() bool {
		_, found, err := cache.GetState(context.Background(), "R1")
		return err == nil && found
	}, 2*time.Second, 10*time.Millisecond)

	operator := dial(t, ts)
	sendEvent(t, operator, models.EventRegisterUI, map[string]interface{}{
		"operator_id": "a@x.com",
		"robot_ids":   []string{"R1"},
	})

	// Hydration delivers the last cached state to the new session.
	hydration := readFrame(t, operator)
	assert.Equal(t, models.EventStatus, hydration.Event)

	var status models.StatusPayload
	require.NoError(t, json.Unmarshal(hydration.Data, &status))
	assert.Equal(t, "R1", status.RobotID)
	assert.Equal(t, models.ConnectionConnected, status.Status.Connection())

	// A fresh report from the robot reaches the watching operator.
	sendEvent(t, robot, models.EventStatusUpdate, map[string]interface{}{
		"robot_id": "R1",
		"status":   map[string]interface{}{"battery": 42.0},
	})

	update := readFrame(t, operator)
	require.Equal(t, models.EventStatus, update.Event)
	require.NoError(t, json.Unmarshal(update.Data, &status))
	assert.Equal(t, 42.0, status.Status["battery"])

	// A command from the operator reaches exactly the addressed robot.
	sendEvent(t, operator, models.EventCommandToRobot, map[string]interface{}{
		"robot_id": "R1",
		"command":  "start",
	})

	command := readFrame(t, robot)
	assert.Equal(t, models.EventCommand, command.Event)

	var cmd models.CommandPayload
	require.NoError(t, json.Unmarshal(command.Data, &cmd))
	assert.Equal(t, "start", cmd.Command)
}

func TestSecondSessionEvictsFirst(t *testing.T) {
	ts, engine, _ := newRelayServer(t)

	first := dial(t, ts)
	sendEvent(t, first, models.EventRegisterUI, map[string]interface{}{"operator_id": "a@x.com"})

	require.Eventually(t, func() bool {
		_, ok := engine.Registry().Get(registry.KindOperator, "a@x.com")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	second := dial(t, ts)
	sendEvent(t, second, models.EventRegisterUI, map[string]interface{}{"operator_id": "a@x.com"})

	// The superseded session is told why, then its transport dies.
	notice := readFrame(t, first)
	assert.Equal(t, models.EventForceLogout, notice.Event)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err := first.ReadMessage()
	require.Error(t, err, "evicted transport must be closed by the server")
}

func TestCommandToOfflineRobotAnswersSender(t *testing.T) {
	ts, _, _ := newRelayServer(t)

	operator := dial(t, ts)
	sendEvent(t, operator, models.EventCommandToRobot, map[string]interface{}{
		"robot_id": "ghost",
		"command":  "start",
	})

	reply := readFrame(t, operator)
	assert.Equal(t, models.EventCommandError, reply.Event)
}

func TestDisconnectMarksRobotOffline(t *testing.T) {
	ts, _, cache := newRelayServer(t)

	robot := dial(t, ts)
	sendEvent(t, robot, models.EventRegisterRobot, map[string]interface{}{"robot_id": "R1"})

	require.Eventually(t, func() bool {
		state, found, err := cache.GetState(context.Background(), "R1")
		return err == nil && found && state.Connection() == models.ConnectionConnected
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, robot.Close())

	require.Eventually(t, func() bool {
		state, found, err := cache.GetState(context.Background(), "R1")
		return err == nil && found && state.Connection() == models.ConnectionDisconnected
	}, 2*time.Second, 10*time.Millisecond)
}
