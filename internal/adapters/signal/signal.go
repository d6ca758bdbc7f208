package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/openmic/karaoke/internal/app"
	"github.com/openmic/karaoke/internal/core"
	"github.com/openmic/karaoke/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	errConnClosed   = errors.New("connection closed")
)

type WSController struct {
	Orch       *app.Orchestrator
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewWSController(orch *app.Orchestrator, readLimit int64, pingPeriod time.Duration) (*WSController, error) {
	if orch == nil {
		return nil, errors.New("ws controller requires an orchestrator")
	}
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &WSController{Orch: orch, ReadLimit: readLimit, PingPeriod: pingPeriod}, nil
}

// WsConn adapts a gorilla connection to core.SignalConnection. Outbound
// frames go through a buffered channel that the write pump drains; a full
// buffer drops the frame rather than blocking the sender.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
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

// HandleSignal upgrades the request and binds the session id from the
// client token cookie to the new connection.
func (ctl *WSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := domain.SessionID(c.GetString("client_token"))
	if sid == "" {
		sid = domain.SessionID(uuid.NewString())
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	sess := core.NewMemberSession(conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, sess, conn)
}
