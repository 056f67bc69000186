package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of a user-visible notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient message for the shopper, the server-side
// equivalent of a toast
type Notification struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	ProductID string    `json:"product_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Buffer collects notifications until they are drained into a response.
// It also logs every notification it receives.
type Buffer struct {
	mu      sync.Mutex
	pending []Notification
	limit   int
	logger  *zap.Logger
}

// DefaultLimit bounds how many undrained notifications a session keeps
const DefaultLimit = 50

// NewBuffer creates a Buffer. The oldest entries are dropped past limit.
func NewBuffer(limit int, logger *zap.Logger) *Buffer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Buffer{limit: limit, logger: logger}
}

// Notify records n
func (b *Buffer) Notify(ctx context.Context, n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	b.logger.Info("Notification",
		zap.String("level", string(n.Level)),
		zap.String("message", n.Message),
		zap.String("product_id", n.ProductID),
	)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, n)
	if over := len(b.pending) - b.limit; over > 0 {
		b.pending = append([]Notification(nil), b.pending[over:]...)
	}
}

// Drain returns and clears pending notifications
func (b *Buffer) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.pending
	b.pending = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Len returns the number of pending notifications
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Warning is shorthand for a warning notification about a product
func Warning(message, productID string) Notification {
	return Notification{Level: LevelWarning, Message: message, ProductID: productID}
}

// Info is shorthand for an info notification
func Info(message string) Notification {
	return Notification{Level: LevelInfo, Message: message}
}

// Error is shorthand for an error notification
func Error(message string) Notification {
	return Notification{Level: LevelError, Message: message}
}
