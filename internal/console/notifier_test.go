package console

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

func TestNotifierMessages(t *testing.T) {
	n := NewNotifier(nil)
	assert.Nil(t, n.Last())

	cases := []struct {
		err     error
		message string
	}{
		{appErrors.Rejection(http.StatusBadRequest, "Email já cadastrado"), "Email já cadastrado"},
		{appErrors.Clone(appErrors.ErrPreconditionFailed, "class is full"), "class is full"},
		{appErrors.Wrap(errors.New("dial tcp: refused"), appErrors.ErrTransportFailure.Code, appErrors.ErrTransportFailure.Status, appErrors.ErrTransportFailure.Message), TransportFailureMessage},
		{errors.New("boom"), "Something went wrong: internal error"},
	}
	for _, tc := range cases {
		note := n.Error(tc.err)
		assert.Equal(t, models.NotificationError, note.Level)
		assert.Equal(t, tc.message, note.Message)
	}

	n.Success("Student created")
	assert.Equal(t, &models.Notification{Level: models.NotificationSuccess, Message: "Student created"}, n.Last())
}

func TestNotifierSubscribe(t *testing.T) {
	n := NewNotifier(nil)
	var seen []string
	unsubscribe := n.Subscribe(func(note models.Notification) { seen = append(seen, note.Message) })

	n.Success("Student created")
	n.Error(appErrors.Clone(appErrors.ErrValidation, "name is required"))
	unsubscribe()
	n.Success("Class created")

	assert.Equal(t, []string{"Student created", "name is required"}, seen)
	assert.Equal(t, "Class created", n.Last().Message)
}
