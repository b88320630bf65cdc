package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/prime-cvd-server/internal/domain"
)

const (
	// liveReadTimeout closes connections with no inbound frame for this long.
	liveReadTimeout = 5 * time.Minute
	// liveWriteTimeout bounds each outbound frame.
	liveWriteTimeout = 10 * time.Second
	// liveReadLimit caps inbound frame size; assessment requests are small.
	liveReadLimit = 64 * 1024
)

// liveFrame is the outbound message of the recalculation channel. Exactly one
// of Assessment and Error is set per frame.
type liveFrame struct {
	Assessment *domain.AssessmentResult `json:"assessment,omitempty"`
	Error      *domain.EngineError      `json:"error,omitempty"`
}

// handleLiveAssess upgrades the connection and runs the recalculation loop:
// every inbound frame is a complete assessment request, every outbound frame
// the recomputed result. Engine errors are sent as error frames and keep the
// connection open; interactive frames are previews and are never persisted to
// the assessment history.
func (s *Server) handleLiveAssess(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer ws.Close()

	correlationID := c.GetString("correlation_id")
	s.logger.WithField("correlation_id", correlationID).Info("Live assessment client connected")

	ws.SetReadLimit(liveReadLimit)

	// Hello frame so clients can confirm the channel before the first input
	_ = ws.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	if err := ws.WriteJSON(gin.H{"status": "connected", "engine_version": domain.EngineVersion}); err != nil {
		return
	}

	for {
		_ = ws.SetReadDeadline(time.Now().Add(liveReadTimeout))

		var req domain.AssessmentRequest
		if err := ws.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.WithError(err).WithField("correlation_id", correlationID).
					Info("Live assessment client disconnected")
			}
			return
		}

		frame := liveFrame{}
		result, err := s.assessor.Assess(c.Request.Context(), &req)
		if err != nil {
			frame.Error = domain.NewEngineError(domain.ErrCodeCalculation, err.Error(), "", correlationID)
		} else {
			frame.Assessment = result
		}

		_ = ws.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := ws.WriteJSON(frame); err != nil {
			s.logger.WithError(err).WithField("correlation_id", correlationID).
				Info("Live assessment write failed, closing")
			return
		}
	}
}

// checkOrigin enforces the configured origin allowlist. An empty list or a
// literal "*" entry admits every origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
