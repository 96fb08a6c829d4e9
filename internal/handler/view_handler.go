package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-console/internal/console"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/pkg/response"
)

type viewSource interface {
	State() models.ViewState
	View() models.View
}

type formSource interface {
	Forms() console.Forms
}

type lastNotification interface {
	Last() *models.Notification
}

// ViewPayload is the full console snapshot served to HTTP clients.
type ViewPayload struct {
	State        models.ViewState     `json:"state"`
	View         models.View          `json:"view"`
	Forms        console.Forms        `json:"forms"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// ViewHandler exposes the current console state.
type ViewHandler struct {
	store    viewSource
	forms    formSource
	notifier lastNotification
}

// NewViewHandler constructs a view handler.
func NewViewHandler(store viewSource, forms formSource, notifier lastNotification) *ViewHandler {
	return &ViewHandler{store: store, forms: forms, notifier: notifier}
}

// Get godoc
// @Summary Current state, derived view, open forms and last notification
// @Tags View
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/v1/view [get]
func (h *ViewHandler) Get(c *gin.Context) {
	payload := ViewPayload{
		State: h.store.State(),
		View:  h.store.View(),
	}
	if h.forms != nil {
		payload.Forms = h.forms.Forms()
	}
	if h.notifier != nil {
		payload.Notification = h.notifier.Last()
	}
	response.JSON(c, http.StatusOK, payload)
}
