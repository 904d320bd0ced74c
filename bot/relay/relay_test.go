package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/bot/blocklist"
	"github.com/m3rciful/relaybot/bot/messages"
	"github.com/m3rciful/relaybot/bot/questionnaire"
	"github.com/m3rciful/relaybot/bot/relaytest"
	"github.com/m3rciful/relaybot/bot/store"
	"github.com/m3rciful/relaybot/core/telegram/conversation"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/core/telegram/state"
	"github.com/m3rciful/relaybot/core/telegram/tasks"
)

const operatorID = 1000

type harness struct {
	r         *Router
	store     *store.Store
	blocks    *blocklist.List
	exchanges *conversation.Table
	engine    *questionnaire.Engine
	tasks     *tasks.Group
	msg       *relaytest.Messenger

	mu    sync.Mutex
	admin []router.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	st := relaytest.NewStore(t)
	h := &harness{
		store:     st,
		blocks:    blocklist.New(st),
		exchanges: conversation.NewTable(),
		tasks:     tasks.NewGroup(ctx),
		msg:       relaytest.NewMessenger(),
	}
	t.Cleanup(func() {
		cancel()
		h.tasks.Wait()
	})
	h.engine = questionnaire.New(questionnaire.Config{
		OperatorID:  operatorID,
		Questions:   []string{"Name?", "Issue?"},
		Welcome:     "welcome",
		Final:       "thanks",
		StepTimeout: time.Minute,
	}, state.NewRegistry(), h.exchanges, st, h.blocks, h.msg)
	h.r = New(Deps{
		OperatorID: operatorID,
		Admin: router.HandlerFunc(func(_ context.Context, ev router.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.admin = append(h.admin, ev)
			return nil
		}),
		Blocks:        h.blocks,
		Users:         st,
		Questionnaire: h.engine,
		Tasks:         h.tasks,
		Messenger:     h.msg,
	})
	return h
}

func user(id int64) router.Sender {
	return router.Sender{ID: id, Username: "u" + string(rune('a'+id%26)), FirstName: "User"}
}

func text(id int64, s string) router.Event {
	return router.Event{Kind: router.KindText, Sender: user(id), Text: s}
}

func start(id int64) router.Event {
	return router.Event{Kind: router.KindCommand, Sender: user(id), Text: "/start"}
}

func (h *harness) handle(t *testing.T, ev router.Event) {
	t.Helper()
	require.NoError(t, h.r.Handle(context.Background(), ev))
}

func TestOperatorGoesToAdmin(t *testing.T) {
	h := newHarness(t)
	h.handle(t, router.Event{Kind: router.KindCommand, Sender: router.Sender{ID: operatorID}, Text: "/start"})
	h.handle(t, router.Event{Kind: router.KindCallback, Sender: router.Sender{ID: operatorID}, Data: "block_1"})

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.admin, 2)
	assert.Equal(t, router.KindCallback, h.admin[1].Kind)
	assert.Empty(t, h.msg.All())
}

func TestRelayForwardsWithActions(t *testing.T) {
	h := newHarness(t)
	h.handle(t, text(7, "hello_world"))

	sent := h.msg.To(operatorID)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Queued)
	assert.Contains(t, sent[0].Text, `hello\_world`)
	assert.Contains(t, sent[0].Text, "*ID:* 7")
	assert.Equal(t, messages.UserActions(7), sent[0].Rows)

	u, err := h.store.GetUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "User", u.FirstName)
}

func TestBlockedUserNeverReachesOperator(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.blocks.Block(context.Background(), 7))

	h.handle(t, text(7, "spam"))
	h.handle(t, start(7))
	h.handle(t, router.Event{Kind: router.KindCallback, Sender: user(7), Data: "reply_7"})
	h.tasks.Wait()

	assert.Empty(t, h.msg.All())
	assert.False(t, h.engine.Active(7))
}

func TestCallbackFromUserDropped(t *testing.T) {
	h := newHarness(t)
	h.handle(t, router.Event{Kind: router.KindCallback, Sender: user(7), Data: "mass_broadcast"})
	assert.Empty(t, h.msg.All())
}

func TestStartRunsQuestionnaireOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.handle(t, start(7))
	h.handle(t, start(7))
	h.msg.WaitText(t, 7, "Question 1/2")
	require.True(t, h.engine.Active(7))

	// Text from a user in the questionnaire without a pending prompt is dropped.
	h.handle(t, text(7, "early"))
	assert.Empty(t, h.msg.To(operatorID))

	require.True(t, h.exchanges.Deliver(7, conversation.Reply{Text: "Alice"}))
	h.msg.WaitText(t, 7, "Question 2/2")
	require.True(t, h.exchanges.Deliver(7, conversation.Reply{Text: "Login bug"}))
	h.msg.WaitText(t, 7, "thanks")
	h.tasks.Wait()

	assert.Len(t, h.msg.To(7), 4, "welcome, two questions and the closing text")
	fb, err := h.store.ListFeedback(ctx, 7)
	require.NoError(t, err)
	require.Len(t, fb, 1)

	// Served users are blocked and never re-admitted.
	require.NoError(t, h.blocks.Unblock(ctx, 7))
	before := len(h.msg.All())
	h.handle(t, start(7))
	h.tasks.Wait()
	assert.Len(t, h.msg.All(), before)
	assert.False(t, h.engine.Active(7))
}
