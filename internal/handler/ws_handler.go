package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prepdesk/examsim-backend/internal/middleware"
	"github.com/prepdesk/examsim-backend/internal/response"
	"github.com/prepdesk/examsim-backend/internal/service"
	"github.com/prepdesk/examsim-backend/internal/session"
	ws "github.com/prepdesk/examsim-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams one live exam session over a WebSocket: countdown ticks
// and expiry flow out, user intents flow in.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// StreamSession godoc
// WS /ws/v1/sessions/:id/stream
// Upgrades to WebSocket for real-time session intents and countdown events.
func (h *WSHandler) StreamSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	loop, err := h.sessionService.Lookup(id, claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("session_id", id.String()).
		Str("user_id", claims.UserID).
		Logger()
	wsLog.Info().Msg("Session stream connected")

	// All writes funnel through one goroutine; gorilla connections do not
	// allow concurrent writers.
	outbound := make(chan interface{}, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			if err := ws.WriteTyped(conn, msg); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed, closing stream")
				conn.Close()
				// Drain so producers never block on a dead connection.
				for range outbound {
				}
				return
			}
		}
	}()

	// Forward loop events (ticks, expiry, persistence outcome) to the client.
	stop := make(chan struct{})
	forwarderDone := make(chan struct{})
	go func() {
		defer close(forwarderDone)
		for {
			select {
			case <-stop:
				return
			case ev := <-loop.Events():
				if msg := translateEvent(ev); msg != nil {
					outbound <- msg
				}
			}
		}
	}()

	// Initial full snapshot so reconnects land on current state.
	if snap, err := loop.State(); err == nil {
		outbound <- ws.StateResponse{Event: ws.EventState, State: snap}
	}

	for {
		var intent ws.IntentPayload
		if err := ws.ReadJSON(conn, &intent); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}
		h.handleIntent(id, claims.UserID, &intent, outbound, wsLog)
	}

	close(stop)
	<-forwarderDone
	close(outbound)
	<-writerDone
}

// translateEvent maps a loop event onto the wire schema. Unknown events are
// dropped.
func translateEvent(ev session.Event) interface{} {
	switch ev.Type {
	case session.EventTick:
		return ws.TickResponse{Event: ws.EventTick, RemainingSeconds: ev.RemainingSeconds}
	case session.EventExpired:
		return ws.SubmitOutcomeResponse{Event: ws.EventExpired}
	case session.EventSubmitted:
		return ws.SubmitOutcomeResponse{Event: ws.EventSubmitted}
	case session.EventResultSaved:
		return ws.SaveOutcomeResponse{Event: ws.EventResultSaved}
	case session.EventResultSaveFailed:
		return ws.SaveOutcomeResponse{Event: ws.EventResultSaveFailed, Error: ev.Error}
	default:
		return nil
	}
}

func (h *WSHandler) handleIntent(id uuid.UUID, userID string, intent *ws.IntentPayload, outbound chan<- interface{}, wsLog zerolog.Logger) {
	ctx := context.Background()

	fail := func(err error) {
		outbound <- ws.ErrorResponse{Event: ws.EventError, Error: intentErrorMessage(err)}
	}
	ack := func() {
		outbound <- ws.AckResponse{Event: ws.EventAck, Action: intent.Action}
	}

	switch intent.Action {
	case ws.ActionStartTimer:
		if err := h.sessionService.StartTimer(ctx, id, userID); err != nil {
			fail(err)
			return
		}
		ack()

	case ws.ActionPauseTimer:
		if err := h.sessionService.PauseTimer(ctx, id, userID); err != nil {
			fail(err)
			return
		}
		ack()

	case ws.ActionAnswer:
		if err := h.sessionService.UpdateAnswer(ctx, id, userID, intent.Index, intent.Text); err != nil {
			fail(err)
			return
		}
		ack()

	case ws.ActionMark:
		marked, err := h.sessionService.ToggleMark(ctx, id, userID, intent.Index)
		if err != nil {
			fail(err)
			return
		}
		outbound <- ws.MarkedResponse{Event: ws.EventMarked, Index: intent.Index, Marked: marked}

	case ws.ActionNavigate:
		if err := h.sessionService.NavigateTo(ctx, id, userID, intent.ViewKey); err != nil {
			fail(err)
			return
		}
		ack()

	case ws.ActionScroll:
		if err := h.sessionService.SaveScroll(ctx, id, userID, intent.ViewKey, intent.Position); err != nil {
			fail(err)
			return
		}
		ack()

	case ws.ActionSubmit:
		outcome, err := h.sessionService.Submit(ctx, id, userID, intent.Confirmed)
		if err != nil {
			fail(err)
			return
		}
		switch outcome {
		case session.SubmitConfirmRequired:
			outbound <- ws.SubmitOutcomeResponse{Event: ws.EventConfirmRequired}
		case session.SubmitAccepted:
			outbound <- ws.SubmitOutcomeResponse{Event: ws.EventSubmitted}
		case session.SubmitIgnored:
			// Already submitted; nothing changes and nothing re-persists.
			outbound <- ws.ErrorResponse{Event: ws.EventError, Error: "session already submitted"}
		}

	case ws.ActionPing:
		outbound <- ws.PongResponse{Event: ws.EventPong}

	default:
		wsLog.Warn().Str("action", string(intent.Action)).Msg("Unknown action")
		outbound <- ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(intent.Action)}
	}
}

// intentErrorMessage keeps wire errors stable and free of internal detail.
func intentErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrIndexOutOfRange):
		return "answer index out of range"
	case errors.Is(err, session.ErrUnknownView):
		return "unknown view key"
	case errors.Is(err, session.ErrNotInProgress):
		return "session is not in progress"
	case errors.Is(err, session.ErrLoopClosed):
		return "session is closed"
	case errors.Is(err, service.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, service.ErrNotOwner):
		return "session belongs to another user"
	default:
		return "intent failed"
	}
}
