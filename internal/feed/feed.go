// Package feed pushes controller events to a websocket hub so a UI
// (status dot, transcript pane) can follow the session live. The feed
// is best effort: events emitted while disconnected are dropped.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"jarvis/internal/session"
)

// Event is one feed frame.
type Event struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"` // state | transcript | reply | error
	State  string `json:"state,omitempty"`
	Reason string `json:"reason,omitempty"`
	Text   string `json:"text,omitempty"`
	Code   string `json:"code,omitempty"`
	At     int64  `json:"at"` // unix milliseconds
}

// Publisher implements session.EventSink over a websocket connection.
type Publisher struct {
	url     string
	reconn  time.Duration
	pending chan Event
}

func NewPublisher(url string) *Publisher {
	return &Publisher{
		url:     url,
		reconn:  2 * time.Second,
		pending: make(chan Event, 64),
	}
}

// Run dials the hub and writes queued events until ctx is done,
// redialing after connection loss.
func (p *Publisher) Run(ctx context.Context) {
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.url, nil)
		if err != nil {
			slog.Warn("feed dial failed", "url", p.url, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.reconn):
				continue
			}
		}

		slog.Info("feed connected", "url", p.url)
		if err := p.pump(ctx, conn); err != nil {
			slog.Warn("feed connection lost", "err", err)
		}
		conn.Close()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (p *Publisher) pump(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case ev := <-p.pending:
			if err := conn.WriteJSON(ev); err != nil {
				return err
			}
		}
	}
}

// emit queues an event, dropping it if the queue is full or the hub
// is away. The feed never blocks the controller.
func (p *Publisher) emit(ev Event) {
	ev.ID = uuid.NewString()
	ev.At = time.Now().UnixMilli()
	select {
	case p.pending <- ev:
	default:
		slog.Debug("feed queue full, dropping event", "kind", ev.Kind)
	}
}

func (p *Publisher) StateChanged(s session.State, reason session.Reason) {
	p.emit(Event{Kind: "state", State: s.String(), Reason: string(reason)})
}

func (p *Publisher) Transcript(text string) {
	p.emit(Event{Kind: "transcript", Text: text})
}

func (p *Publisher) Reply(text string) {
	p.emit(Event{Kind: "reply", Text: text})
}

func (p *Publisher) Error(code session.ErrCode, detail string) {
	p.emit(Event{Kind: "error", Code: string(code), Text: detail})
}
