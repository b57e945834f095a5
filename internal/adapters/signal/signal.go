// Package signal is the WebSocket adapter: it upgrades connections, assigns
// session ids, and pumps envelopes between the wire and the room unit.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pairbooth/signaling/internal/app"
	"github.com/pairbooth/signaling/internal/config"
	"github.com/pairbooth/signaling/internal/core"
	"github.com/pairbooth/signaling/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	dir *app.Directory
	cfg *config.Config
}

func NewController(dir *app.Directory, cfg *config.Config) *Controller {
	return &Controller{dir: dir, cfg: cfg}
}

// wsConn owns one websocket connection. Writes leave through the buffered
// send channel only; Close is safe to call any number of times.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the request and binds the connection to the room unit for
// code. The room code has already been validated by the HTTP layer.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context, code domain.RoomCode) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.cfg.SendBuffer),
	}

	// A unit can be torn down between Resolve and Connect when its last
	// session drops at exactly the wrong moment; re-resolving gets a fresh one.
	var room *app.Room
	for {
		room = ctl.dir.Resolve(code)
		if room.Connect(sid, conn) {
			break
		}
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(code)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, room, conn)
}
