package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectChatCompleted carries finished chat transcripts from the chat front end.
	SubjectChatCompleted = "study.chat.completed"
	// SubjectFeedbackRecorded is emitted after a participant's feedback is stored.
	SubjectFeedbackRecorded = "study.feedback.recorded"
	// SubjectExperienceRecorded is emitted after the experience survey is stored.
	SubjectExperienceRecorded = "study.experience.recorded"
)

// ChatCompleted is the payload of SubjectChatCompleted. Transcript is the raw chat log.
type ChatCompleted struct {
	ParticipantID string `json:"prolific_id"`
	Transcript    string `json:"transcript"`
}

// FeedbackRecorded is the payload of SubjectFeedbackRecorded.
type FeedbackRecorded struct {
	ParticipantID string    `json:"prolific_id"`
	SubmissionID  string    `json:"submission_id"`
	Items         int       `json:"items"`
	Selected      int       `json:"selected"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// ExperienceRecorded is the payload of SubjectExperienceRecorded.
type ExperienceRecorded struct {
	ParticipantID string `json:"prolific_id"`
	Answers       int    `json:"answers"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("confide"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

// Publish marshals data as JSON. Publishing on a nil client is a no-op so callers
// can run without a bus.
func (c *Client) Publish(subject string, data any) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Connected() bool {
	return c != nil && c.conn.IsConnected()
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
