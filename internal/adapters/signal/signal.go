package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VideoChat/internal/app/orch"
	"github.com/dkeye/VideoChat/internal/core"
)

// Settings tunes the transport side of every connection.
type Settings struct {
	// ReadLimit caps one websocket message. A larger message closes the
	// connection, so it sits well above the largest frame the pipeline
	// accepts.
	ReadLimit     int64
	PingPeriod    time.Duration
	WriteTimeout  time.Duration
	SendBuffer    int
	MaxChatLength int
}

func DefaultSettings() Settings {
	return Settings{
		ReadLimit:     16 << 20,
		PingPeriod:    54 * time.Second,
		WriteTimeout:  10 * time.Second,
		SendBuffer:    64,
		MaxChatLength: 2000,
	}
}

// pongWait must exceed PingPeriod so a healthy peer is never timed out.
func (s Settings) pongWait() time.Duration {
	return s.PingPeriod * 10 / 9
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Chat     *RoomRateLimiter
	Settings Settings
}

func NewSignalWSController(o *orch.Orchestrator, limiter *RoomRateLimiter, settings Settings) *SignalWSController {
	return &SignalWSController{
		Orch:     o,
		Chat:     limiter,
		Settings: settings,
	}
}

// WsSignalConn implements core.SignalConnection over a websocket with a
// bounded outbound queue drained by writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
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
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until either
// side hangs up. Every connection gets a fresh session id.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	client := c.GetString(ClientTokenKey)
	logger := log.With().Str("module", "signal").Str("sid", string(sid)).Str("client", client).Logger()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}
	conn := newWsSignalConn(ws, ctl.Settings.SendBuffer)

	connCtx, cancel := context.WithCancel(ctx)
	if err := ctl.Orch.Connect(sid, conn, cancel); err != nil {
		logger.Error().Err(err).Msg("connect rejected")
		cancel()
		conn.Close()
		return
	}
	logger.Info().Str("remote", c.ClientIP()).Msg("new WS connection")

	go ctl.writePump(connCtx, sid, conn)
	go ctl.readPump(connCtx, sid, conn)
}

// ClientTokenKey is the gin context key holding the browser's client token.
const ClientTokenKey = "client_token"
