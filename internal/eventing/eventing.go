// Package eventing publishes run events to NATS for external observers.
// Publishing is notification-only: failures are logged and never feed back
// into the run.
package eventing

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sonnylabs/sonny/internal/logging"
)

// Publisher is the sink the driver emits run events into.
type Publisher interface {
	Publish(runID, eventType string, payload interface{})
	Close()
}

// envelope is the wire format for published events.
type envelope struct {
	RunID     string      `json:"run_id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NATSPublisher publishes events on "<subject>.<event type>".
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *logging.Logger
}

// NewNATS connects to a NATS server. The caller should Close when the run
// ends so buffered messages flush.
func NewNATS(url, subject string, logger *logging.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = logging.New()
	}
	conn, err := nats.Connect(url,
		nats.Name("sonny"),
		nats.MaxReconnects(3),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.WithComponent("eventing"),
	}, nil
}

func (p *NATSPublisher) Publish(runID, eventType string, payload interface{}) {
	data, err := json.Marshal(envelope{
		RunID:     runID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		p.logger.Warn("event encode failed", map[string]interface{}{"type": eventType, "error": err.Error()})
		return
	}
	if err := p.conn.Publish(p.subject+"."+eventType, data); err != nil {
		p.logger.Warn("event publish failed", map[string]interface{}{"type": eventType, "error": err.Error()})
	}
}

func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Debug("drain failed", map[string]interface{}{"error": err.Error()})
	}
}

// Noop discards all events. Used when no NATS URL is configured.
type Noop struct{}

func (Noop) Publish(string, string, interface{}) {}
func (Noop) Close()                              {}
