package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/bot/blocklist"
	"github.com/m3rciful/relaybot/bot/broadcast"
	"github.com/m3rciful/relaybot/bot/messages"
	"github.com/m3rciful/relaybot/bot/relaytest"
	"github.com/m3rciful/relaybot/bot/report"
	"github.com/m3rciful/relaybot/bot/store"
	"github.com/m3rciful/relaybot/core/telegram/conversation"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/core/telegram/sender"
	"github.com/m3rciful/relaybot/core/telegram/tasks"
)

const operatorID = 1000

type harness struct {
	d         *Dispatcher
	store     *store.Store
	blocks    *blocklist.List
	exchanges *conversation.Table
	tasks     *tasks.Group
	msg       *relaytest.Messenger
}

func newHarness(t *testing.T, timeout time.Duration) *harness {
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
	h.d = New(Deps{
		OperatorID:  operatorID,
		Timeout:     timeout,
		Exchanges:   h.exchanges,
		Users:       st,
		Blocks:      h.blocks,
		Broadcaster: broadcast.New(st, h.msg),
		Reporter:    report.New(st),
		Tasks:       h.tasks,
		Messenger:   h.msg,
	})
	return h
}

func press(t *testing.T, h *harness, data string, panel sender.MessageRef) {
	t.Helper()
	require.NoError(t, h.d.Handle(context.Background(), router.Event{
		Kind:    router.KindCallback,
		Sender:  router.Sender{ID: operatorID},
		Data:    data,
		Message: panel,
	}))
}

func TestStartShowsPanel(t *testing.T) {
	h := newHarness(t, time.Minute)
	require.NoError(t, h.d.Handle(context.Background(), router.Event{Kind: router.KindCommand, Text: "/start"}))

	sent := h.msg.To(operatorID)
	require.Len(t, sent, 1)
	assert.Equal(t, messages.AdminPanel, sent[0].Text)
	assert.Equal(t, messages.AdminPanelRows(), sent[0].Rows)
}

func TestBlockThenUnblock(t *testing.T) {
	h := newHarness(t, time.Minute)
	ctx := context.Background()

	press(t, h, "block_555", sender.MessageRef{})
	assert.True(t, h.blocks.Contains(555))
	press(t, h, "block_555", sender.MessageRef{})
	press(t, h, "unblock_555", sender.MessageRef{})

	assert.False(t, h.blocks.Contains(555))
	u, err := h.store.GetUser(ctx, 555)
	require.NoError(t, err)
	assert.False(t, u.Blocked)

	sent := h.msg.To(operatorID)
	require.Len(t, sent, 3)
	assert.Equal(t, messages.Blocked, sent[0].Text)
	assert.Equal(t, messages.Blocked, sent[1].Text)
	assert.Equal(t, messages.Unblocked, sent[2].Text)
}

func TestMalformedPayloadIgnored(t *testing.T) {
	h := newHarness(t, time.Minute)
	for _, data := range []string{"", "bogus", "reply_", "block_abc", "unblock_-1"} {
		press(t, h, data, sender.MessageRef{})
	}
	require.NoError(t, h.d.Handle(context.Background(), router.Event{Kind: router.KindText, Text: "stray"}))
	h.tasks.Wait()
	assert.Empty(t, h.msg.All())
}

func TestReplyDeliversOperatorText(t *testing.T) {
	h := newHarness(t, time.Minute)
	press(t, h, "reply_42", sender.MessageRef{})

	h.msg.WaitText(t, operatorID, messages.ReplyPrompt(42))
	require.True(t, h.exchanges.Deliver(operatorID, conversation.Reply{Text: "we fixed *it*"}))

	got := h.msg.WaitText(t, 42, "Reply from the operator")
	assert.Contains(t, got.Text, `we fixed \*it\*`)
	h.msg.WaitText(t, operatorID, messages.ReplySent)
}

func TestReplyTimeoutNotifiesOperatorOnly(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	press(t, h, "reply_42", sender.MessageRef{})

	h.msg.WaitText(t, operatorID, messages.ReplyTimeout)
	h.tasks.Wait()
	assert.Empty(t, h.msg.To(42))
	assert.Zero(t, h.exchanges.Len())
}

func TestReplyWhileExchangeOpen(t *testing.T) {
	h := newHarness(t, time.Minute)
	ex, err := h.exchanges.Open(operatorID, time.Minute)
	require.NoError(t, err)
	defer ex.Close()

	press(t, h, "reply_42", sender.MessageRef{})
	h.msg.WaitText(t, operatorID, messages.ExchangeBusy)
}

func TestReplySendFailure(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.msg.FailFor(42)
	press(t, h, "reply_42", sender.MessageRef{})

	h.msg.WaitText(t, operatorID, messages.ReplyPrompt(42))
	require.True(t, h.exchanges.Deliver(operatorID, conversation.Reply{Text: "hello"}))
	h.msg.WaitText(t, operatorID, messages.OperatorFailure)
}

func TestBroadcastReportsTally(t *testing.T) {
	h := newHarness(t, time.Minute)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3, 4} {
		require.NoError(t, h.store.SaveUser(ctx, store.User{ID: id}))
	}
	require.NoError(t, h.blocks.Block(ctx, 4))
	h.msg.FailFor(2)

	press(t, h, "mass_broadcast", sender.MessageRef{})
	h.msg.WaitText(t, operatorID, messages.BroadcastPrompt)
	require.True(t, h.exchanges.Deliver(operatorID, conversation.Reply{Text: "news"}))

	h.msg.WaitText(t, operatorID, messages.BroadcastDone(2, 1))
	assert.Len(t, h.msg.To(1), 1)
	assert.Len(t, h.msg.To(3), 1)
	assert.Empty(t, h.msg.To(4))
}

func TestReportSendsBothExports(t *testing.T) {
	h := newHarness(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, h.store.SaveUser(ctx, store.User{ID: 7, Username: "alice"}))
	require.NoError(t, h.store.AddFeedback(ctx, 7, "1. Name?\nAnswer: Alice"))

	panel := sender.MessageRef{ChatID: operatorID, MessageID: 9}
	press(t, h, "generate_report", panel)
	h.tasks.Wait()

	sent := h.msg.To(operatorID)
	require.Len(t, sent, 4)
	assert.Equal(t, messages.ReportGenerating, sent[0].Text)
	require.NotNil(t, sent[0].Edited)
	assert.Equal(t, panel, *sent[0].Edited)
	require.NotNil(t, sent[1].Doc)
	assert.Regexp(t, `^feedback_report_\d{8}_\d{6}\.xlsx$`, sent[1].Doc.Name)
	assert.Equal(t, messages.ReportCaptionXLS, sent[1].Doc.Caption)
	require.NotNil(t, sent[2].Doc)
	assert.Regexp(t, `^feedback_report_\d{8}_\d{6}\.csv$`, sent[2].Doc.Name)
	assert.Contains(t, string(sent[2].Doc.Content), "alice")
	assert.Equal(t, messages.ReportSent, sent[3].Text)
	assert.NotNil(t, sent[3].Edited)
}

func TestUserManagementAndBack(t *testing.T) {
	h := newHarness(t, time.Minute)
	ctx := context.Background()
	panel := sender.MessageRef{ChatID: operatorID, MessageID: 3}

	press(t, h, "user_management", panel)
	require.NoError(t, h.store.SaveUser(ctx, store.User{ID: 5, FirstName: "Eve"}))
	require.NoError(t, h.blocks.Block(ctx, 5))
	press(t, h, "user_management", panel)
	press(t, h, "back_to_admin", panel)

	sent := h.msg.To(operatorID)
	require.Len(t, sent, 3)
	assert.Equal(t, messages.NoUsers, sent[0].Text)
	assert.Contains(t, sent[1].Text, "🚫 Eve")
	assert.Equal(t, "unblock_5", sent[1].Rows[0][0].Data)
	assert.Equal(t, messages.AdminPanel, sent[2].Text)
	for _, s := range sent {
		require.NotNil(t, s.Edited)
		assert.Equal(t, panel, *s.Edited)
	}
}
