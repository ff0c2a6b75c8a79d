package audit

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventType represents the type of audit event
type EventType string

const (
	// Order events
	EventTypeOrderPlaced   EventType = "ORDER_PLACED"
	EventTypeOrderRejected EventType = "ORDER_REJECTED"
	EventTypeOrderCanceled EventType = "ORDER_CANCELED"
	EventTypeOrderFailed   EventType = "ORDER_FAILED"

	// Strategy events
	EventTypeStrategyStarted   EventType = "STRATEGY_STARTED"
	EventTypeStrategyCompleted EventType = "STRATEGY_COMPLETED"
	EventTypeStrategyPartial   EventType = "STRATEGY_PARTIAL_FAILURE"

	// Session events
	EventTypeSessionStarted EventType = "SESSION_STARTED"
	EventTypeClockSynced    EventType = "CLOCK_SYNCED"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Event is a single audit record: one per order attempt or strategy
// transition, success or failure.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	EventType EventType              `json:"event_type"`
	Severity  Severity               `json:"severity"`
	OrderKind string                 `json:"order_kind,omitempty"`
	Symbol    string                 `json:"symbol,omitempty"`
	OrderID   int64                  `json:"order_id,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error_message,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// Logger appends audit events to a JSON line stream. The stream is the
// only persistence in the system; order state itself is not stored
// across sessions.
type Logger struct {
	sink    zerolog.Logger
	file    *os.File
	enabled bool
}

// NewLogger opens (appending) the audit file. A disabled logger swallows
// events silently.
func NewLogger(path string, enabled bool) (*Logger, error) {
	if !enabled {
		return &Logger{enabled: false}, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}

	sink := zerolog.New(file).With().Timestamp().Logger()
	return &Logger{sink: sink, file: file, enabled: true}, nil
}

// Log records an audit event and mirrors it to the process log
func (l *Logger) Log(event *Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	if l.enabled {
		// Level-less events: the audit stream records every attempt and
		// must not be filtered by the process log level.
		l.sink.Log().
			Str("severity", string(event.Severity)).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.EventType)).
			Str("order_kind", event.OrderKind).
			Str("symbol", event.Symbol).
			Int64("order_id", event.OrderID).
			Bool("success", event.Success).
			Str("error", event.ErrorMsg).
			Interface("detail", event.Detail).
			Msg("audit")
	}

	log.Debug().
		Str("event_type", string(event.EventType)).
		Str("symbol", event.Symbol).
		Bool("success", event.Success).
		Msg("Audit event recorded")
}

// Close flushes and closes the underlying file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
