package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/apperr"
	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/realtime"
	"github.com/iliyamo/taskboard/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// StreamHandler pushes board events to members over a websocket.
type StreamHandler struct {
	Boards  *service.BoardService
	Hub     *realtime.Hub
	Origins []string
	Log     *zap.Logger
}

func NewStreamHandler(boards *service.BoardService, hub *realtime.Hub, origins []string, log *zap.Logger) *StreamHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamHandler{Boards: boards, Hub: hub, Origins: origins, Log: log}
}

// checkOrigin admits same-origin requests (no Origin header) and the
// configured frontend origins.
func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.Origins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

// Board streams the events of one board until the client disconnects.
func (h *StreamHandler) Board(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	boardID, err := paramID(c, "boardId", "board")
	if err != nil {
		return err
	}
	if h.Hub == nil {
		return apperr.Unavailable("Realtime events are not available")
	}
	ctx, cancel := reqCtx(c)
	_, err = h.Boards.Authorize(ctx, boardID, uid)
	cancel()
	if err != nil {
		return err
	}

	// subscribe before upgrading so redis failures still get a JSON error
	sub, err := h.Hub.Subscribe(c.Request().Context(), boardID)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "Realtime events are not available", err)
	}
	defer sub.Close()

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the failure response
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	log := h.Log.With(zap.Uint64("board_id", boardID), zap.Uint64("user_id", uid))
	log.Debug("websocket connected")

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// the read loop only services control frames and detects disconnects
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("websocket read", zap.Error(err))
				}
				return
			}
		}
	}()

	if err := writeJSON(conn, echo.Map{"type": "connected", "boardId": boardID}); err != nil {
		return nil
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			log.Debug("websocket closed")
			return nil
		case ev, open := <-sub.C:
			if !open {
				return nil
			}
			// membership may have changed; removed members get no more events
			if ev.Type == model.EventBoardUpdated && !h.stillMember(boardID, uid) {
				log.Debug("websocket closed: membership revoked")
				_ = writeJSON(conn, echo.Map{"type": "revoked", "boardId": boardID})
				return nil
			}
			if err := writeJSON(conn, ev); err != nil {
				log.Debug("websocket write", zap.Error(err))
				return nil
			}
			if ev.Type == model.EventBoardDeleted {
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

// stillMember reports whether uid may keep streaming the board. Lookup
// failures other than NotFound or Forbidden keep the stream open.
func (h *StreamHandler) stillMember(boardID, uid uint64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	_, err := h.Boards.Authorize(ctx, boardID, uid)
	if err == nil {
		return true
	}
	if apperr.Is(err, apperr.KindForbidden) || apperr.Is(err, apperr.KindNotFound) {
		return false
	}
	h.Log.Warn("websocket membership check", zap.Uint64("board_id", boardID), zap.Error(err))
	return true
}

func writeJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
