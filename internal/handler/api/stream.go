package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"StockSim/internal/domain/models"
	xhttp "StockSim/pkg/http"
	xlogger "StockSim/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Stream message types.
const (
	StreamPath    = "path"
	StreamSummary = "summary"
	StreamError   = "error"
)

// StreamMessage is one frame sent to a stream client.
type StreamMessage struct {
	Type    string                     `json:"type"`
	ID      string                     `json:"id,omitempty"`
	Path    *models.SimulatedPath      `json:"path,omitempty"`
	Summary *models.SimulationResponse `json:"summary,omitempty"`
	Errors  interface{}                `json:"errors,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream upgrades to a WebSocket. Each request frame the client sends is
// answered with one path frame per run followed by a summary frame.
func (h *SimulationHandler) Stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("stream upgrade failed", xlogger.Error(err))
		return nil
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
	send := make(chan StreamMessage, sendBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, send, cancel)
	}()

	h.readPump(ctx, conn, send)
	cancel()
	close(send)
	<-done
	return nil
}

// readPump reads request frames until the client goes away.
func (h *SimulationHandler) readPump(ctx context.Context, conn *websocket.Conn, send chan<- StreamMessage) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("stream read error", xlogger.Error(err))
			}
			return
		}
		if !h.streamOne(ctx, b, send) {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// streamOne runs one request; it returns false once the connection is gone.
func (h *SimulationHandler) streamOne(ctx context.Context, b []byte, send chan<- StreamMessage) bool {
	emit := func(m StreamMessage) bool {
		select {
		case send <- m:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var req models.SimulationRequest
	if err := xhttp.SetDefaults(&req); err != nil {
		return emit(StreamMessage{Type: StreamError, Errors: []*xhttp.AppError{xhttp.InternalError(err.Error())}})
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return emit(StreamMessage{Type: StreamError, Errors: []*xhttp.AppError{xhttp.BadRequestErrorf("invalid json: %v", err)}})
	}
	if verrs := xhttp.ValidateRequest(ctx, &req); len(verrs) > 0 {
		return emit(StreamMessage{Type: StreamError, Errors: verrs})
	}

	out, err := h.uc.Simulate(ctx, req, models.TriggerStream)
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= 500 {
			h.logger.Error("stream usecase error", xlogger.Error(err))
		}
		return emit(StreamMessage{Type: StreamError, Errors: []*xhttp.AppError{appErr}})
	}

	for i := range out.Result.Paths {
		if !emit(StreamMessage{Type: StreamPath, ID: out.Record.ID, Path: &out.Result.Paths[i]}) {
			return false
		}
	}
	return emit(StreamMessage{Type: StreamSummary, ID: out.Record.ID, Summary: out.Response(false)})
}

func (h *SimulationHandler) writePump(conn *websocket.Conn, send <-chan StreamMessage, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// abort unblocks the reader by closing the connection, then waits for it to stop sending.
	abort := func() {
		cancel()
		_ = conn.Close()
		drain(send)
	}

	for {
		select {
		case m, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = conn.Close()
				return
			}
			if err := conn.WriteJSON(m); err != nil {
				h.logger.Debug("stream write error", xlogger.Error(err))
				abort()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				abort()
				return
			}
		}
	}
}

// drain discards queued frames until the reader closes send.
func drain(send <-chan StreamMessage) {
	for range send {
	}
}
