package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-console/internal/console"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
	"github.com/noah-isme/sma-adp-console/pkg/response"
)

// ErrEventFailed is reported when a dispatched event ends with an error notification.
var ErrEventFailed = appErrors.New("EVENT_FAILED", http.StatusUnprocessableEntity, "event failed")

type eventDispatcher interface {
	Events() []console.Event
	Dispatch(ctx context.Context, name string, args []string) console.Result
}

// EventRequest carries positional event arguments.
type EventRequest struct {
	Args []string `json:"args"`
}

// EventHandler lets HTTP clients drive the console through named events.
type EventHandler struct {
	dispatcher eventDispatcher
}

// NewEventHandler constructs an event handler.
func NewEventHandler(dispatcher eventDispatcher) *EventHandler {
	return &EventHandler{dispatcher: dispatcher}
}

// List godoc
// @Summary List console events
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/v1/events [get]
func (h *EventHandler) List(c *gin.Context) {
	events := h.dispatcher.Events()
	response.JSON(c, http.StatusOK, events, map[string]interface{}{"count": len(events)})
}

// Dispatch godoc
// @Summary Dispatch a console event; an empty body means no arguments
// @Tags Events
// @Accept json
// @Produce json
// @Param name path string true "Event name"
// @Param payload body EventRequest false "Event arguments"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /api/v1/events/{name} [post]
func (h *EventHandler) Dispatch(c *gin.Context) {
	var req EventRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
			return
		}
	}

	result := h.dispatcher.Dispatch(c.Request.Context(), c.Param("name"), req.Args)
	if !result.OK() {
		response.Unprocessable(c, result, appErrors.Clone(ErrEventFailed, result.Notification.Message))
		return
	}
	response.JSON(c, http.StatusOK, result)
}
