package console

import (
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

// TransportFailureMessage is shown for every failure to reach the backend.
const TransportFailureMessage = "Could not reach the server. Check the connection and try again."

// Notifier keeps the latest transient notification and fans it out to listeners.
type Notifier struct {
	mu        sync.RWMutex
	last      *models.Notification
	listeners map[int]func(models.Notification)
	nextID    int
	logger    *zap.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger}
}

// Success records a success message.
func (n *Notifier) Success(message string) models.Notification {
	return n.set(models.Notification{Level: models.NotificationSuccess, Message: message})
}

// Error turns err into an error notification. Validation, precondition and
// backend messages are shown verbatim; transport and internal failures are
// replaced by a generic message.
func (n *Notifier) Error(err error) models.Notification {
	appErr := appErrors.FromError(err)
	message := appErr.Message
	switch appErr.Code {
	case appErrors.ErrTransportFailure.Code:
		message = TransportFailureMessage
	case appErrors.ErrInternal.Code:
		message = "Something went wrong: " + appErr.Message
	}
	n.logger.Info("command failed", zap.String("code", appErr.Code), zap.Error(err))
	return n.set(models.Notification{Level: models.NotificationError, Message: message})
}

// Last returns the latest notification, if any.
func (n *Notifier) Last() *models.Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.last == nil {
		return nil
	}
	out := *n.last
	return &out
}

// Subscribe registers fn for every later notification and returns a func that
// removes it. fn runs on the goroutine that raised the notification.
func (n *Notifier) Subscribe(fn func(models.Notification)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	if n.listeners == nil {
		n.listeners = make(map[int]func(models.Notification))
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *Notifier) set(note models.Notification) models.Notification {
	n.mu.Lock()
	n.last = &note
	listeners := make([]func(models.Notification), 0, len(n.listeners))
	for _, fn := range n.listeners {
		listeners = append(listeners, fn)
	}
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(note)
	}
	return note
}
