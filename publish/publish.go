// Package publish sends finished validation reports to NATS.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/wfvalidate/workflow/validation"
)

// DefaultSubject is the subject reports are published on.
const DefaultSubject = "workflow.validation.report"

// flushTimeout bounds the flush when ctx carries no deadline; nats.go
// rejects flushes without one.
const flushTimeout = 5 * time.Second

// ReportMessage is the payload published for each run.
type ReportMessage struct {
	ID          string             `json:"id"`
	Status      validation.Status  `json:"status"`
	Report      *validation.Report `json:"report"`
	PublishedAt time.Time          `json:"published_at"`
}

// Conn is the subset of *nats.Conn used by the publisher.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Publisher publishes reports on a fixed subject. A nil *Publisher skips
// publishing.
type Publisher struct {
	conn    Conn
	subject string
	logger  *slog.Logger
	closer  func()
}

// New wraps an existing connection.
func New(conn Conn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, subject: subject, logger: logger}
}

// Connect dials the NATS server at url.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("wfvalidate"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := New(nc, subject, logger)
	p.closer = func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return p, nil
}

// Subject returns the subject reports are published on.
func (p *Publisher) Subject() string {
	if p == nil {
		return ""
	}
	return p.subject
}

// Publish sends r and waits for the server to acknowledge the flush.
func (p *Publisher) Publish(ctx context.Context, r *validation.Report) error {
	if p == nil || r == nil {
		return nil
	}

	msg := ReportMessage{
		ID:          r.RunID,
		Status:      r.Summary.OverallStatus,
		Report:      r,
		PublishedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal report message: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	p.logger.Debug("Published validation report", "subject", p.subject, "run_id", r.RunID, "bytes", len(data))
	return nil
}

// Close drains the connection opened by Connect.
func (p *Publisher) Close() {
	if p == nil || p.closer == nil {
		return
	}
	p.closer()
}
