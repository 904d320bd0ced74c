package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/telegram/keyboard"
)

type fakeAPI struct {
	mu     sync.Mutex
	sent   []interface{}
	opts   []*tele.SendOptions
	edits  []tele.StoredMessage
	failN  int
	nextID int
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	f.nextID++
	f.sent = append(f.sent, what)
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			f.opts = append(f.opts, so)
		}
	}
	return &tele.Message{ID: f.nextID}, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, msg.(tele.StoredMessage))
	f.sent = append(f.sent, what)
	return &tele.Message{}, nil
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond, MaxDuration: time.Second})
	t.Cleanup(d.Close)
	return d
}

func TestSendReturnsMessageRef(t *testing.T) {
	api := &fakeAPI{}
	m := NewBotMessenger(api, newTestDispatcher(t), tele.ModeMarkdown)

	rows := [][]keyboard.InlineBtn{{{Text: "Reply", Data: "reply_7"}}}
	ref, err := m.Send(context.Background(), 42, "hello", rows)
	require.NoError(t, err)
	assert.Equal(t, MessageRef{ChatID: 42, MessageID: 1}, ref)

	require.Len(t, api.opts, 1)
	assert.Equal(t, tele.ModeMarkdown, api.opts[0].ParseMode)
	markup := api.opts[0].ReplyMarkup
	require.NotNil(t, markup)
	assert.Equal(t, "reply_7", markup.InlineKeyboard[0][0].Data)
}

func TestSendRetriesDialErrors(t *testing.T) {
	api := &fakeAPI{failN: 2}
	m := NewBotMessenger(api, newTestDispatcher(t), tele.ModeMarkdown)

	_, err := m.Send(context.Background(), 1, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count())
}

func TestEditUsesStoredMessage(t *testing.T) {
	api := &fakeAPI{}
	m := NewBotMessenger(api, newTestDispatcher(t), tele.ModeMarkdown)

	require.NoError(t, m.Edit(context.Background(), MessageRef{ChatID: 9, MessageID: 15}, "edited", nil))
	require.Len(t, api.edits, 1)
	assert.Equal(t, tele.StoredMessage{MessageID: "15", ChatID: 9}, api.edits[0])

	assert.Error(t, m.Edit(context.Background(), MessageRef{ChatID: 9}, "edited", nil))
}

func TestSendDocument(t *testing.T) {
	api := &fakeAPI{}
	m := NewBotMessenger(api, newTestDispatcher(t), tele.ModeMarkdown)

	err := m.SendDocument(context.Background(), 3, Document{Name: "r.csv", Caption: "report", Content: []byte("a,b\n")})
	require.NoError(t, err)
	doc, ok := api.sent[0].(*tele.Document)
	require.True(t, ok)
	assert.Equal(t, "r.csv", doc.FileName)
	assert.Equal(t, "report", doc.Caption)
}

func TestPostIsQueued(t *testing.T) {
	api := &fakeAPI{}
	m := NewBotMessenger(api, newTestDispatcher(t), tele.ModeMarkdown)

	require.NoError(t, m.Post(context.Background(), 1, "queued", nil))
	assert.Eventually(t, func() bool { return api.count() == 1 }, time.Second, time.Millisecond)
}

func TestDoAfterCloseFails(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	err := d.Do(context.Background(), "send", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}
