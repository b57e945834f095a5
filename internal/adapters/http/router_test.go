package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairbooth/signaling/internal/app"
	"github.com/pairbooth/signaling/internal/config"
	"github.com/pairbooth/signaling/internal/core"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:         "release",
		Port:         0,
		ReadLimit:    1 << 20,
		WriteTimeout: 5 * time.Second,
		SendBuffer:   32,
		StartLead:    time.Second,
		AllowOrigins: []string{"*"},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Directory) {
	t.Helper()
	dir := app.NewDirectory(time.Second)
	r := SetupRouter(context.Background(), testConfig(), dir)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, dir
}

func wsURL(srv *httptest.Server, room string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if room != "" {
		u += "?room=" + room
	}
	return u
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server, room string) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, room), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) sendf(eventType, payload string) {
	c.t.Helper()
	env := core.Envelope{Type: eventType}
	if payload != "" {
		env.Payload = json.RawMessage(payload)
	}
	require.NoError(c.t, c.conn.WriteJSON(env))
}

// next reads the next envelope off the wire.
func (c *client) next() core.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var env core.Envelope
	require.NoError(c.t, c.conn.ReadJSON(&env))
	return env
}

// await skips unrelated envelopes until one of the wanted type arrives.
func (c *client) await(eventType string) json.RawMessage {
	c.t.Helper()
	for i := 0; i < 20; i++ {
		env := c.next()
		if env.Type == eventType {
			return env.Payload
		}
	}
	c.t.Fatalf("no %s envelope received", eventType)
	return nil
}

func (c *client) join(name string) {
	c.t.Helper()
	c.sendf(core.EventRoomJoin, `{"displayName":"`+name+`"}`)
}

func ids(t *testing.T, payload json.RawMessage) []string {
	t.Helper()
	var p core.ParticipantsPayload
	require.NoError(t, json.Unmarshal(payload, &p))
	out := make([]string, 0, len(p.Participants))
	for _, part := range p.Participants {
		out = append(out, part.ID)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "pairbooth-signaling", body["service"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestServiceInfoEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/", "/api"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Pairbooth Signaling Server", body["name"])
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomCodeValidationBeforeUpgrade(t *testing.T) {
	srv, dir := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"missing code", "/ws"},
		{"hyphenated code", "/ws?room=bad-code"},
		{"too long", "/ws?room=" + strings.Repeat("A", 21)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, dir.Count(), "invalid codes never create a room")
}

func TestRoomCodeIsCaseNormalized(t *testing.T) {
	srv, dir := newTestServer(t)

	a := dial(t, srv, "abcd12")
	a.join("Alice")
	a.await(core.EventRoomJoined)

	b := dial(t, srv, "ABCD12")
	b.join("Bob")
	b.await(core.EventRoomReady)

	assert.Equal(t, 1, dir.Count(), "differing case shares one room")
}

func TestThirdClientRejectedOverWire(t *testing.T) {
	srv, _ := newTestServer(t)

	a := dial(t, srv, "FULL1")
	a.join("Alice")
	b := dial(t, srv, "FULL1")
	b.join("Bob")
	b.await(core.EventRoomReady)

	c := dial(t, srv, "FULL1")
	c.join("Carol")

	var ep core.ErrorPayload
	require.NoError(t, json.Unmarshal(c.await(core.EventRoomError), &ep))
	assert.Contains(t, ep.Message, "full")
}

// TestPairedSessionScenario drives the whole happy path: join, ready,
// signaling relay, the start race, photo relay, and peer disconnect.
func TestPairedSessionScenario(t *testing.T) {
	srv, dir := newTestServer(t)

	a := dial(t, srv, "ABCD12")
	a.join("Alice")

	first := ids(t, a.await(core.EventRoomJoined))
	require.Len(t, first, 1)
	aID := first[0]

	b := dial(t, srv, "ABCD12")
	b.join("Bob")

	// Both sides see the two-participant snapshot and the ready signal.
	var bID string
	for _, c := range []*client{a, b} {
		snap := ids(t, c.await(core.EventRoomJoined))
		require.Len(t, snap, 2)
		assert.Equal(t, aID, snap[0])
		bID = snap[1]

		var ready core.ReadyPayload
		require.NoError(t, json.Unmarshal(c.await(core.EventRoomReady), &ready))
		assert.True(t, ready.Ready)
	}

	// Targeted signaling: only B sees the offer, stamped with A's id.
	a.sendf(core.EventWebRTCOffer, `{"to":"`+bID+`","sdp":"dummy-sdp"}`)
	var offer map[string]any
	require.NoError(t, json.Unmarshal(b.await(core.EventWebRTCOffer), &offer))
	assert.Equal(t, "dummy-sdp", offer["sdp"])
	assert.Equal(t, aID, offer["from"])
	assert.NotContains(t, offer, "to")

	// Start race: A starts, B's duplicate start right behind it.
	before := time.Now().UnixMilli()
	a.sendf(core.EventSessionStart, `{"layout":"layout2"}`)
	b.sendf(core.EventSessionStart, `{"layout":"layout2"}`)
	b.sendf(core.EventPhotoSend, `{"index":0,"mime":"image/jpeg","base64":"aGk="}`)

	for _, c := range []*client{a, b} {
		var start core.StartPayload
		require.NoError(t, json.Unmarshal(c.await(core.EventSessionStart), &start))
		assert.Equal(t, "layout2", string(start.Layout))
		assert.GreaterOrEqual(t, start.StartTime, before+1000, "start time anchors a one-second countdown")
	}

	// B's messages are processed in order, so if the duplicate start had
	// been rebroadcast, A would see it before the photo. It must not.
	env := a.next()
	require.Equal(t, core.EventPhotoReceive, env.Type, "duplicate start produced a second broadcast")
	var photo map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &photo))
	assert.Equal(t, bID, photo["from"])

	// B drops; A sees the shrunken snapshot and the room is back to IDLE,
	// which a fresh successful start proves.
	require.NoError(t, b.conn.Close())
	snap := ids(t, a.await(core.EventRoomJoined))
	require.Len(t, snap, 1)
	assert.Equal(t, aID, snap[0])

	a.sendf(core.EventSessionStart, `{"layout":"layout1"}`)
	var restart core.StartPayload
	require.NoError(t, json.Unmarshal(a.await(core.EventSessionStart), &restart))
	assert.Equal(t, "layout1", string(restart.Layout))

	// Last one out turns off the lights.
	require.NoError(t, a.conn.Close())
	require.Eventually(t, func() bool { return dir.Count() == 0 },
		2*time.Second, 10*time.Millisecond, "room torn down after last disconnect")
}

func TestExplicitLeaveResetsPeer(t *testing.T) {
	srv, _ := newTestServer(t)

	a := dial(t, srv, "LEAVE1")
	a.join("Alice")
	b := dial(t, srv, "LEAVE1")
	b.join("Bob")
	a.await(core.EventRoomReady)
	b.await(core.EventRoomReady)

	b.sendf(core.EventRoomLeave, "")

	snap := ids(t, a.await(core.EventRoomJoined))
	assert.Len(t, snap, 1)
	a.await(core.EventSessionReset)
}
