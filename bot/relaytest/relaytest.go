// Package relaytest provides in-memory collaborators for testing the bot
// services without Telegram.
package relaytest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/bot/store"
	coredatabase "github.com/m3rciful/relaybot/core/database"
	"github.com/m3rciful/relaybot/core/telegram/keyboard"
	"github.com/m3rciful/relaybot/core/telegram/sender"
	"github.com/m3rciful/relaybot/migrations"
)

// Sent records one outbound call.
type Sent struct {
	To     int64
	Text   string
	Rows   [][]keyboard.InlineBtn
	Edited *sender.MessageRef
	Doc    *sender.Document
	Queued bool
}

// Messenger records outbound calls and can be told to fail for recipients.
type Messenger struct {
	mu     sync.Mutex
	sent   []Sent
	fail   map[int64]bool
	nextID int
	notify chan struct{}
}

// NewMessenger returns an empty recording messenger.
func NewMessenger() *Messenger {
	return &Messenger{fail: make(map[int64]bool), notify: make(chan struct{}, 1)}
}

// FailFor makes every send to id fail.
func (m *Messenger) FailFor(ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.fail[id] = true
	}
}

func (m *Messenger) record(s Sent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[s.To] {
		return fmt.Errorf("relaytest: send to %d rejected", s.To)
	}
	m.sent = append(m.sent, s)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Send implements sender.Messenger.
func (m *Messenger) Send(_ context.Context, to int64, text string, rows [][]keyboard.InlineBtn) (sender.MessageRef, error) {
	if err := m.record(Sent{To: to, Text: text, Rows: rows}); err != nil {
		return sender.MessageRef{}, err
	}
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()
	return sender.MessageRef{ChatID: to, MessageID: id}, nil
}

// Post implements sender.Messenger.
func (m *Messenger) Post(_ context.Context, to int64, text string, rows [][]keyboard.InlineBtn) error {
	return m.record(Sent{To: to, Text: text, Rows: rows, Queued: true})
}

// Edit implements sender.Messenger.
func (m *Messenger) Edit(_ context.Context, ref sender.MessageRef, text string, rows [][]keyboard.InlineBtn) error {
	return m.record(Sent{To: ref.ChatID, Text: text, Rows: rows, Edited: &ref})
}

// SendDocument implements sender.Messenger.
func (m *Messenger) SendDocument(_ context.Context, to int64, doc sender.Document) error {
	return m.record(Sent{To: to, Text: doc.Caption, Doc: &doc})
}

// All returns a copy of every recorded call.
func (m *Messenger) All() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// To returns the calls addressed to id.
func (m *Messenger) To(id int64) []Sent {
	var out []Sent
	for _, s := range m.All() {
		if s.To == id {
			out = append(out, s)
		}
	}
	return out
}

// WaitText blocks until a call to id containing substr is recorded.
func (m *Messenger) WaitText(t *testing.T, id int64, substr string) Sent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for _, s := range m.To(id) {
			if strings.Contains(s.Text, substr) {
				return s
			}
		}
		select {
		case <-m.notify:
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatalf("no message to %d containing %q; got %+v", id, substr, m.To(id))
		}
	}
}

// NewStore opens a migrated SQLite store in a temp directory.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(t.TempDir(), "relay.db")}
	require.NoError(t, cfg.Normalize())
	require.NoError(t, coredatabase.RunMigrations(cfg, migrations.FS))
	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return store.New(db)
}
