// Package notify publishes run-completion events to NATS. It backs the
// `publish` hook action and the daemon's external visibility; a pipeline
// without a notify config never touches it.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/buildpipe/internal/logfields"
)

const defaultSubject = "buildpipe.runs"

// RunEvent is the payload published when a run reaches TERMINAL.
type RunEvent struct {
	Pipeline    string    `json:"pipeline"`
	RunID       string    `json:"run_id"`
	BuildNumber int64     `json:"build_number"`
	Result      string    `json:"result"`
	Cause       string    `json:"cause,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Publisher manages the NATS connection for run events.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the NATS server. subject falls back to the default when empty.
func Connect(url, subject string) (*Publisher, error) {
	if subject == "" {
		subject = defaultSubject
	}
	conn, err := nats.Connect(url,
		nats.Name("buildpipe"),
		nats.MaxReconnects(3),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	slog.Info("NATS publisher connected", "url", url, "subject", subject)
	return &Publisher{conn: conn, subject: subject}, nil
}

// PublishRun publishes a run event. Marshal or publish failures are returned
// to the caller (the dispatcher logs them; they never affect the run result).
func (p *Publisher) PublishRun(ev RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("flush run event: %w", err)
	}
	slog.Debug("Published run event",
		logfields.Pipeline(ev.Pipeline),
		logfields.RunID(ev.RunID),
		logfields.Result(ev.Result))
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
