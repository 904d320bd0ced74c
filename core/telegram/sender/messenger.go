package sender

import (
	"bytes"
	"context"
	"errors"
	"strconv"

	"github.com/m3rciful/relaybot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// MessageRef identifies a sent message so it can be edited later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Document is an in-memory file sent as a Telegram document.
type Document struct {
	Name    string
	Caption string
	Content []byte
}

// Messenger is the outbound surface used by the bot services.
type Messenger interface {
	// Send delivers text and waits for the result.
	Send(ctx context.Context, to int64, text string, rows [][]keyboard.InlineBtn) (MessageRef, error)
	// Post queues text for delivery and returns immediately.
	Post(ctx context.Context, to int64, text string, rows [][]keyboard.InlineBtn) error
	Edit(ctx context.Context, ref MessageRef, text string, rows [][]keyboard.InlineBtn) error
	SendDocument(ctx context.Context, to int64, doc Document) error
}

// API is the subset of *tele.Bot used by BotMessenger.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// BotMessenger implements Messenger over telebot, routing every call
// through the dispatcher retry policy.
type BotMessenger struct {
	api  API
	d    *Dispatcher
	mode tele.ParseMode
}

// NewBotMessenger builds a messenger that renders text with parse mode.
func NewBotMessenger(api API, d *Dispatcher, mode tele.ParseMode) *BotMessenger {
	return &BotMessenger{api: api, d: d, mode: mode}
}

func (m *BotMessenger) options(rows [][]keyboard.InlineBtn) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: m.mode}
	if len(rows) > 0 {
		opts.ReplyMarkup = keyboard.InlineButtonsRows(rows...)
	}
	return opts
}

// Send implements Messenger.
func (m *BotMessenger) Send(ctx context.Context, to int64, text string, rows [][]keyboard.InlineBtn) (MessageRef, error) {
	var ref MessageRef
	err := m.d.Do(ctx, "send", "sendMessage", func() error {
		msg, err := m.api.Send(tele.ChatID(to), text, m.options(rows))
		if err != nil {
			return err
		}
		ref = MessageRef{ChatID: to, MessageID: msg.ID}
		return nil
	})
	return ref, err
}

// Post implements Messenger.
func (m *BotMessenger) Post(ctx context.Context, to int64, text string, rows [][]keyboard.InlineBtn) error {
	return m.d.Enqueue(ctx, "post", "sendMessage", func() error {
		_, err := m.api.Send(tele.ChatID(to), text, m.options(rows))
		return err
	})
}

// Edit implements Messenger.
func (m *BotMessenger) Edit(ctx context.Context, ref MessageRef, text string, rows [][]keyboard.InlineBtn) error {
	if ref.MessageID == 0 {
		return errors.New("telegram sender: edit without message id")
	}
	stored := tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
	return m.d.Do(ctx, "edit", "editMessageText", func() error {
		_, err := m.api.Edit(stored, text, m.options(rows))
		return err
	})
}

// SendDocument implements Messenger.
func (m *BotMessenger) SendDocument(ctx context.Context, to int64, doc Document) error {
	return m.d.Do(ctx, "document", "sendDocument", func() error {
		file := &tele.Document{
			File:     tele.FromReader(bytes.NewReader(doc.Content)),
			FileName: doc.Name,
			Caption:  doc.Caption,
		}
		_, err := m.api.Send(tele.ChatID(to), file)
		return err
	})
}
