package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prepdesk/examsim-backend/internal/export"
	"github.com/prepdesk/examsim-backend/internal/middleware"
	"github.com/prepdesk/examsim-backend/internal/model"
	"github.com/prepdesk/examsim-backend/internal/response"
	"github.com/prepdesk/examsim-backend/internal/service"
	"github.com/prepdesk/examsim-backend/internal/session"
	"github.com/prepdesk/examsim-backend/internal/validator"
)

// SessionHandler handles the REST surface of exam sessions. Live intents go
// over the WebSocket stream; this covers launch, state reads, results and
// exports.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Launch godoc
// POST /api/v1/sessions
// Creates a new exam session from uploaded materials.
func (h *SessionHandler) Launch(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.LaunchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := h.sessionService.Launch(c.Request.Context(), claims.UserID, req)
	if err != nil {
		if errors.Is(err, session.ErrMissingRequiredAsset) {
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrMissingRequiredAsset)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, snap)
}

// GetState godoc
// GET /api/v1/sessions/:id/state
// Returns the observable session state, live or reconstructed.
func (h *SessionHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snap, err := h.sessionService.GetState(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, snap)
}

// ListSessions godoc
// GET /api/v1/sessions
// Returns the user's session rows, newest first.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessions, err := h.sessionService.Sessions(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, sessions)
}

// GetResult godoc
// GET /api/v1/sessions/:id/result
// Returns the final snapshot of a submitted session.
func (h *SessionHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := h.sessionService.Result(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// History godoc
// GET /api/v1/results
// Returns the user's submitted results, newest first.
func (h *SessionHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)

	results, err := h.sessionService.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, results)
}

// Export godoc
// GET /api/v1/sessions/:id/export?format=txt|pdf|xlsx
// Downloads the submitted answer sheet in the requested format.
func (h *SessionHandler) Export(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	format, err := export.ParseFormat(c.DefaultQuery("format", "txt"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFormat)
		return
	}

	artifact, err := h.sessionService.Export(c.Request.Context(), id, claims.UserID, format)
	if err != nil {
		failSessionError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+artifact.Filename+`"`)
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

// failSessionError maps service errors onto the response taxonomy.
func failSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrNotSubmitted):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotSubmitted)
	case errors.Is(err, export.ErrUnsupportedFormat):
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFormat)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
