package ingress

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/printrelay/printrelay/internal/logger"
)

// DefaultSubject is where the backend publishes purchase payloads when a
// message bus sits between it and the gateway instead of the websocket.
const DefaultSubject = "print.purchases"

// NATSConsumer is an alternate ingress for deployments that route
// purchases through NATS. Messages carry the bare purchase payload, no
// envelope.
type NATSConsumer struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	intake  *Intake
}

func NewNATSConsumer(url, subject string, intake *Intake) (*NATSConsumer, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSConsumer{conn: conn, subject: subject, intake: intake}, nil
}

func (c *NATSConsumer) Subscribe() error {
	sub, err := c.conn.Subscribe(c.subject, func(msg *nats.Msg) {
		c.intake.Accept("nats", msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.subject, err)
	}

	c.sub = sub
	logger.WithComponent("ingress").Info().Str("subject", c.subject).Msg("NATS consumer started")
	return nil
}

func (c *NATSConsumer) Close() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
