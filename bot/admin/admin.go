// Package admin executes operator commands: the panel, button actions and
// the prompt-response exchanges opened by reply and broadcast.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/relaybot/bot/broadcast"
	"github.com/m3rciful/relaybot/bot/command"
	"github.com/m3rciful/relaybot/bot/messages"
	"github.com/m3rciful/relaybot/bot/report"
	"github.com/m3rciful/relaybot/bot/store"
	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/conversation"
	"github.com/m3rciful/relaybot/core/telegram/keyboard"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/core/telegram/sender"
)

const component = "admin"

var commands = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "admin",
	Name:      "commands_total",
	Help:      "Operator commands by action.",
}, []string{"action"})

// Directory lists known users.
type Directory interface {
	ListUsers(ctx context.Context) ([]store.User, error)
}

// Blocker mutates the block set.
type Blocker interface {
	Block(ctx context.Context, userID int64) error
	Unblock(ctx context.Context, userID int64) error
}

// Broadcaster delivers one message to every recipient.
type Broadcaster interface {
	Send(ctx context.Context, text string) (broadcast.Tally, error)
}

// Reporter builds the feedback exports.
type Reporter interface {
	Generate(ctx context.Context) (report.Report, error)
}

// Spawner runs work outside the dispatch loop.
type Spawner interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

// Deps are the collaborators of the dispatcher.
type Deps struct {
	OperatorID  int64
	Timeout     time.Duration
	Exchanges   *conversation.Table
	Users       Directory
	Blocks      Blocker
	Broadcaster Broadcaster
	Reporter    Reporter
	Tasks       Spawner
	Messenger   sender.Messenger
}

// Dispatcher handles every event sent by the operator.
type Dispatcher struct {
	Deps
}

// New returns a dispatcher.
func New(d Deps) *Dispatcher {
	return &Dispatcher{Deps: d}
}

// Handle implements router.Handler. Malformed payloads and stray operator
// text are ignored.
func (d *Dispatcher) Handle(ctx context.Context, ev router.Event) error {
	switch ev.Kind {
	case router.KindCommand:
		if ev.IsCommand("start") {
			commands.WithLabelValues("start").Inc()
			return d.Messenger.Post(ctx, d.OperatorID, messages.AdminPanel, messages.AdminPanelRows())
		}
		return nil
	case router.KindCallback:
		cmd, err := command.Parse(ev.Data)
		if err != nil {
			logger.Debug(ctx, component, "admin.ignored", slog.String("cause", "malformed"), slog.String("payload", logger.SanitizeLimit(ev.Data, 64)))
			return nil
		}
		commands.WithLabelValues(cmd.Action.String()).Inc()
		return d.execute(ctx, cmd, ev.Message)
	default:
		logger.Debug(ctx, component, "admin.ignored", slog.String("cause", "no_exchange"))
		return nil
	}
}

func (d *Dispatcher) execute(ctx context.Context, cmd command.Command, panel sender.MessageRef) error {
	switch cmd.Action {
	case command.Reply:
		d.Tasks.Go(ctx, "admin.reply", func(ctx context.Context) error { return d.reply(ctx, cmd.UserID) })
	case command.Broadcast:
		d.Tasks.Go(ctx, "admin.broadcast", d.broadcast)
	case command.Report:
		d.Tasks.Go(ctx, "admin.report", func(ctx context.Context) error { return d.report(ctx, panel) })
	case command.Block:
		return d.setBlocked(ctx, cmd.UserID, true)
	case command.Unblock:
		return d.setBlocked(ctx, cmd.UserID, false)
	case command.UserManagement:
		return d.userManagement(ctx, panel)
	case command.BackToAdmin:
		return d.render(ctx, panel, messages.AdminPanel, messages.AdminPanelRows())
	}
	return nil
}

func (d *Dispatcher) setBlocked(ctx context.Context, userID int64, blocked bool) error {
	apply, ack := d.Blocks.Block, messages.Blocked
	if !blocked {
		apply, ack = d.Blocks.Unblock, messages.Unblocked
	}
	if err := apply(ctx, userID); err != nil {
		logger.Error(ctx, component, "admin.block_failed", slog.Int64("target_id", userID), slog.Bool("blocked", blocked), logger.Err(err))
		return d.Messenger.Post(ctx, d.OperatorID, messages.OperatorFailure, nil)
	}
	return d.Messenger.Post(ctx, d.OperatorID, ack, nil)
}

// ask opens an exchange with the operator. It reports false when the
// operator has already been told about a timeout or a busy exchange.
func (d *Dispatcher) ask(ctx context.Context, prompt, timedOut string) (conversation.Reply, bool, error) {
	reply, err := d.Exchanges.Ask(ctx, d.OperatorID, d.Timeout, func() error {
		_, err := d.Messenger.Send(ctx, d.OperatorID, prompt, nil)
		return err
	})
	switch {
	case err == nil:
		return reply, true, nil
	case errors.Is(err, conversation.ErrTimeout):
		logger.Info(ctx, component, "admin.exchange_timeout", slog.Duration("timeout", d.Timeout))
		return reply, false, d.notify(ctx, timedOut)
	case errors.Is(err, conversation.ErrBusy):
		return reply, false, d.notify(ctx, messages.ExchangeBusy)
	default:
		return reply, false, d.fail(ctx, err)
	}
}

func (d *Dispatcher) reply(ctx context.Context, userID int64) error {
	answer, ok, err := d.ask(ctx, messages.ReplyPrompt(userID), messages.ReplyTimeout)
	if !ok {
		return err
	}
	if _, err := d.Messenger.Send(ctx, userID, messages.ReplyToUser(answer.Text), nil); err != nil {
		return d.fail(ctx, fmt.Errorf("admin: reply to %d: %w", userID, err))
	}
	logger.Info(ctx, component, "admin.replied", slog.Int64("target_id", userID))
	return d.notify(ctx, messages.ReplySent)
}

func (d *Dispatcher) broadcast(ctx context.Context) error {
	answer, ok, err := d.ask(ctx, messages.BroadcastPrompt, messages.BroadcastTimeout)
	if !ok {
		return err
	}
	tally, err := d.Broadcaster.Send(ctx, answer.Text)
	if err != nil {
		return d.fail(ctx, err)
	}
	return d.notify(ctx, messages.BroadcastDone(tally.Sent, tally.Failed))
}

func (d *Dispatcher) report(ctx context.Context, panel sender.MessageRef) error {
	panel, err := d.show(ctx, panel, messages.ReportGenerating, nil)
	if err != nil {
		logger.Warn(ctx, component, "admin.edit_failed", logger.Err(err))
	}
	if err := d.sendReport(ctx); err != nil {
		logger.Error(ctx, component, "admin.report_failed", logger.Err(err))
		if _, editErr := d.show(ctx, panel, messages.ReportFailed, nil); editErr != nil {
			logger.Warn(ctx, component, "admin.edit_failed", logger.Err(editErr))
		}
		return err
	}
	_, err = d.show(ctx, panel, messages.ReportSent, nil)
	return err
}

func (d *Dispatcher) sendReport(ctx context.Context) error {
	rep, err := d.Reporter.Generate(ctx)
	if err != nil {
		return err
	}
	for _, doc := range rep.Documents(messages.ReportCaptionXLS, messages.ReportCaptionCSV) {
		if err := d.Messenger.SendDocument(ctx, d.OperatorID, doc); err != nil {
			return fmt.Errorf("admin: send %s: %w", doc.Name, err)
		}
	}
	logger.Info(ctx, component, "admin.report_sent", slog.Int("rows", rep.Rows))
	return nil
}

func (d *Dispatcher) userManagement(ctx context.Context, panel sender.MessageRef) error {
	users, err := d.Users.ListUsers(ctx)
	if err != nil {
		logger.Error(ctx, component, "admin.list_failed", logger.Err(err))
		return d.Messenger.Post(ctx, d.OperatorID, messages.OperatorFailure, nil)
	}
	entries := make([]messages.UserEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, messages.UserEntry{
			Profile: messages.Profile{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName},
			Blocked: u.Blocked,
		})
	}
	text, rows := messages.UserManagement(entries)
	return d.render(ctx, panel, text, rows)
}

func (d *Dispatcher) render(ctx context.Context, panel sender.MessageRef, text string, rows [][]keyboard.InlineBtn) error {
	_, err := d.show(ctx, panel, text, rows)
	return err
}

// show edits the panel message in place, or sends a new one when there is
// nothing to edit.
func (d *Dispatcher) show(ctx context.Context, panel sender.MessageRef, text string, rows [][]keyboard.InlineBtn) (sender.MessageRef, error) {
	if panel.MessageID == 0 {
		return d.Messenger.Send(ctx, d.OperatorID, text, rows)
	}
	return panel, d.Messenger.Edit(ctx, panel, text, rows)
}

func (d *Dispatcher) notify(ctx context.Context, text string) error {
	_, err := d.Messenger.Send(ctx, d.OperatorID, text, nil)
	return err
}

func (d *Dispatcher) fail(ctx context.Context, cause error) error {
	if ctx.Err() != nil {
		return cause
	}
	logger.Error(ctx, component, "admin.failed", logger.Err(cause))
	if err := d.notify(ctx, messages.OperatorFailure); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
