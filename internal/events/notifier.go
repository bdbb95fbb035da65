// Package events publishes build notifications over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/pxbuild/internal/build"
	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
)

// BuildEvent is the JSON payload of a build notification.
type BuildEvent struct {
	BuildID       string    `json:"build_id"`
	Mode          string    `json:"mode"`
	Status        string    `json:"status"`
	Revision      string    `json:"revision,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	CodeBytes     int       `json:"code_bytes"`
	MapBytes      int       `json:"map_bytes"`
	Published     bool      `json:"published"`
	Stage         string    `json:"stage,omitempty"`
	ErrorCategory string    `json:"error_category,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewBuildEvent converts a build result into its notification payload.
func NewBuildEvent(res *build.Result) BuildEvent {
	return BuildEvent{
		BuildID:       res.BuildID,
		Mode:          string(res.Mode),
		Status:        string(res.Status),
		Revision:      res.Revision,
		DurationMS:    res.Duration.Milliseconds(),
		CodeBytes:     res.CodeBytes,
		MapBytes:      res.MapBytes,
		Published:     res.Published(),
		Stage:         res.Stage,
		ErrorCategory: res.ErrorCategory,
		Error:         res.ErrorMessage,
		Timestamp:     res.EndTime,
	}
}

// Publisher is the subset of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier implements build.Notifier by publishing to
// <subject>.completed, <subject>.failed or <subject>.canceled.
type Notifier struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
}

// NewNotifier wraps an existing publisher.
func NewNotifier(pub Publisher, subject string) *Notifier {
	return &Notifier{pub: pub, subject: subject}
}

// Connect dials the NATS server at url.
func Connect(url, subject string) (*Notifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("pxbuild"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, pxerrors.NetworkFailed(url, fmt.Errorf("failed to connect to NATS: %w", err))
	}
	slog.Info("NATS notifier connected", "url", url, "subject", subject)
	n := NewNotifier(conn, subject)
	n.conn = conn
	return n, nil
}

// Subject returns the subject a result is published on.
func (n *Notifier) Subject(status build.Status) string {
	switch status {
	case build.StatusSuccess:
		return n.subject + ".completed"
	case build.StatusCanceled:
		return n.subject + ".canceled"
	default:
		return n.subject + ".failed"
	}
}

// Notify publishes res.
func (n *Notifier) Notify(_ context.Context, res *build.Result) error {
	data, err := json.Marshal(NewBuildEvent(res))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := n.Subject(res.Status)
	if err := n.pub.Publish(subject, data); err != nil {
		return pxerrors.NetworkFailed(subject, fmt.Errorf("failed to publish event: %w", err))
	}
	slog.Debug("Published build event", "subject", subject, "build_id", res.BuildID)
	return nil
}

// Close drains and closes the connection when the notifier owns one.
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
