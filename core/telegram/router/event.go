// Package router turns telebot updates into transport-free events and hands
// them to a single Handler from the dispatch loop.
package router

import (
	"context"
	"strings"

	"github.com/m3rciful/relaybot/core/telegram/middleware"
	"github.com/m3rciful/relaybot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Kind classifies an inbound event.
type Kind int

const (
	KindText Kind = iota + 1
	KindCommand
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCommand:
		return "command"
	case KindCallback:
		return "callback"
	}
	return "unknown"
}

// Sender is the author of an event.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Event is one inbound text message, command or button press.
type Event struct {
	Kind     Kind
	UpdateID int
	Sender   Sender
	// Text holds the message text for text and command events.
	Text string
	// Data holds the raw callback payload for callback events.
	Data string
	// Message references the message that carried the event; for callbacks
	// it is the message the pressed button belongs to.
	Message sender.MessageRef
}

// Command returns the command name without the leading slash and bot
// mention, or "" when the event is not a command.
func (e Event) Command() string {
	if e.Kind != KindCommand {
		return ""
	}
	fields := strings.Fields(e.Text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

// IsCommand reports whether the event is the named command.
func (e Event) IsCommand(name string) bool {
	return e.Command() == strings.TrimPrefix(strings.ToLower(name), "/")
}

// Handler consumes events.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// EventFromContext converts a telebot context. It reports false for updates
// that carry neither text nor a callback.
func EventFromContext(c tele.Context) (Event, bool) {
	upd := c.Update()
	ev := Event{UpdateID: upd.ID}
	if u := c.Sender(); u != nil {
		ev.Sender = Sender{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
	}

	if cb := c.Callback(); cb != nil {
		ev.Kind = KindCallback
		ev.Data = middleware.CallbackData(cb)
		if cb.Message != nil && cb.Message.Chat != nil {
			ev.Message = sender.MessageRef{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.ID}
		}
		return ev, ev.Sender.ID != 0
	}

	msg := c.Message()
	if msg == nil || msg.Text == "" || ev.Sender.ID == 0 {
		return Event{}, false
	}
	ev.Text = msg.Text
	ev.Kind = KindText
	if strings.HasPrefix(msg.Text, "/") {
		ev.Kind = KindCommand
	}
	if msg.Chat != nil {
		ev.Message = sender.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID}
	}
	return ev, true
}
