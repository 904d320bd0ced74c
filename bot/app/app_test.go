package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/bot/config"
	"github.com/m3rciful/relaybot/bot/messages"
	"github.com/m3rciful/relaybot/bot/relaytest"
	"github.com/m3rciful/relaybot/bot/store"
	coreconfig "github.com/m3rciful/relaybot/core/config"
	coredatabase "github.com/m3rciful/relaybot/core/database"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/conversation"
	"github.com/m3rciful/relaybot/core/telegram/middleware"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/core/telegram/sender"
	"github.com/m3rciful/relaybot/migrations"
)

const operatorID = 1000

func newTestApp(t *testing.T, seed func(*store.Store)) *App {
	t.Helper()
	dbCfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(t.TempDir(), "app.db")}
	require.NoError(t, dbCfg.Normalize())
	require.NoError(t, coredatabase.RunMigrations(dbCfg, migrations.FS))
	db, err := coredatabase.Connect(dbCfg)
	require.NoError(t, err)
	if seed != nil {
		seed(store.New(db))
	}

	cfg := &config.AppConfig{
		Config:   coreconfig.Config{Telegram: coreconfig.TelegramConfig{AdminID: operatorID}},
		Database: dbCfg,
		Relay: config.RelayConfig{
			Questions:          []string{"Name?"},
			WelcomeMessage:     "hi",
			FinalMessage:       "bye",
			StepTimeoutSeconds: 60,
		},
	}
	a, err := newApp(context.Background(), cfg, db)
	require.NoError(t, err)
	return a
}

func TestHandlerRoutesOperatorAndUsers(t *testing.T) {
	a := newTestApp(t, func(s *store.Store) {
		require.NoError(t, s.SetBlocked(context.Background(), 66, true))
	})
	ctx, cancel := context.WithCancel(context.Background())
	msg := relaytest.NewMessenger()
	h := a.Handler(ctx, msg)
	t.Cleanup(func() {
		cancel()
		require.NoError(t, a.Close())
	})

	require.NoError(t, h.Handle(ctx, router.Event{Kind: router.KindCommand, Sender: router.Sender{ID: operatorID}, Text: "/start"}))
	require.NoError(t, h.Handle(ctx, router.Event{Kind: router.KindText, Sender: router.Sender{ID: 66}, Text: "blocked at startup"}))
	require.NoError(t, h.Handle(ctx, router.Event{Kind: router.KindText, Sender: router.Sender{ID: 5}, Text: "hello"}))

	sent := msg.To(operatorID)
	require.Len(t, sent, 2)
	assert.Equal(t, messages.AdminPanel, sent[0].Text)
	assert.Contains(t, sent[1].Text, "hello")
	assert.Contains(t, sent[1].Text, "*ID:* 5")
}

func TestQuestionnaireThroughHandler(t *testing.T) {
	a := newTestApp(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	msg := relaytest.NewMessenger()
	h := a.Handler(ctx, msg)
	t.Cleanup(func() {
		cancel()
		require.NoError(t, a.Close())
	})

	require.NoError(t, h.Handle(ctx, router.Event{Kind: router.KindCommand, Sender: router.Sender{ID: 5, FirstName: "Alice"}, Text: "/start"}))
	msg.WaitText(t, 5, "Question 1/1")
	require.Eventually(t, func() bool { return a.exchanges.Pending(5) }, time.Second, 5*time.Millisecond)
	require.True(t, a.exchanges.Deliver(5, conversation.Reply{Text: "Alice"}))
	msg.WaitText(t, 5, "bye")
	got := msg.WaitText(t, operatorID, "New feedback")
	assert.Contains(t, got.Text, "1. Name?\nAnswer: Alice")
	require.Eventually(t, func() bool { return a.blocks.Contains(5) }, time.Second, 5*time.Millisecond)
}

// apiStub answers every Bot API call with ok and records method and body.
type apiStub struct {
	mu    sync.Mutex
	calls []string
}

func (s *apiStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.calls = append(s.calls, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]+" "+string(body))
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
}

func (s *apiStub) called(method, fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if strings.HasPrefix(c, method+" ") && strings.Contains(c, fragment) {
			return true
		}
	}
	return false
}

// newWiredBot binds the production middlewares and routes onto an offline bot.
func newWiredBot(t *testing.T, ctx context.Context, a *App, msg sender.Messenger) (*tele.Bot, *apiStub) {
	t.Helper()
	api := &apiStub{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	bot, err := tele.NewBot(tele.Settings{URL: srv.URL, Token: "1:test", Offline: true, Synchronous: true})
	require.NoError(t, err)

	a.messenger = func(coretelegram.Runtime) sender.Messenger { return msg }
	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	require.NoError(t, coretelegram.Bind(ctx, coretelegram.Runtime{Bot: bot, Registry: coretelegram.NewRegistry()}, opts))
	return bot, api
}

func userText(id int, from int64, text string) tele.Update {
	return tele.Update{ID: id, Message: &tele.Message{
		ID:     id,
		Sender: &tele.User{ID: from, FirstName: "U"},
		Chat:   &tele.Chat{ID: from, Type: tele.ChatPrivate},
		Text:   text,
	}}
}

func press(id int, from int64, data string) tele.Update {
	return tele.Update{ID: id, Callback: &tele.Callback{
		ID:      "cb" + data,
		Sender:  &tele.User{ID: from},
		Data:    data,
		Message: &tele.Message{ID: 900, Chat: &tele.Chat{ID: from, Type: tele.ChatPrivate}},
	}}
}

func TestUpdatesThroughMiddlewareChain(t *testing.T) {
	a := newTestApp(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	msg := relaytest.NewMessenger()
	bot, api := newWiredBot(t, ctx, a, msg)
	t.Cleanup(func() {
		cancel()
		require.NoError(t, a.Close())
	})

	bot.ProcessUpdate(userText(1, 5, "/start"))
	msg.WaitText(t, 5, "Question 1/1")
	require.Eventually(t, func() bool { return a.exchanges.Pending(5) }, time.Second, 5*time.Millisecond)

	bot.ProcessUpdate(userText(2, 5, "Alice"))
	msg.WaitText(t, 5, "bye")
	got := msg.WaitText(t, operatorID, "New feedback")
	assert.Contains(t, got.Text, "Answer: Alice")
	require.Eventually(t, func() bool { return a.blocks.Contains(5) }, time.Second, 5*time.Millisecond)

	bot.ProcessUpdate(userText(3, 7, "hello operator"))
	msg.WaitText(t, operatorID, "hello operator")

	bot.ProcessUpdate(press(4, operatorID, "block_7"))
	assert.True(t, a.blocks.Contains(7))
	assert.True(t, api.called("answerCallbackQuery", "cbblock_7"))

	bot.ProcessUpdate(press(5, 8, "block_9"))
	assert.False(t, a.blocks.Contains(9))
	assert.True(t, api.called("answerCallbackQuery", middleware.AccessDeniedText))
}
