package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/traceveil/forensics-portal/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// NoopEventBus is used when no broker is configured (file-backend deployments).
type NoopEventBus struct{}

func NewNoopEventBus() *NoopEventBus { return &NoopEventBus{} }

func (NoopEventBus) Publish(context.Context, string, interface{}) error { return nil }
func (NoopEventBus) Subscribe(string, func(msg *Message)) error         { return nil }
func (NoopEventBus) QueueSubscribe(string, string, func(msg *Message)) error {
	return nil
}
func (NoopEventBus) Close() error { return nil }

// Authentication event subjects
const (
	UserRegistered      = "auth.user.registered"
	UserLoggedIn        = "auth.user.login"
	UserLoginFailed     = "auth.user.login_failed"
	UserOAuthLogin      = "auth.user.oauth_login"
	TokenRefreshed      = "auth.token.refreshed"
	ResetRequested      = "auth.password.reset_requested"
	ResetConfirmed      = "auth.password.reset_confirmed"
	AdminResetGenerated = "auth.password.admin_reset_code"
)

// Event payloads
type UserRegisteredEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type UserLoggedInEvent struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	OAuth    bool      `json:"oauth"`
	LoggedAt time.Time `json:"logged_at"`
}

type ResetRequestedEvent struct {
	Email       string    `json:"email"`
	AdminIssued bool      `json:"admin_issued"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ResetConfirmedEvent struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	IP          string    `json:"ip"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
