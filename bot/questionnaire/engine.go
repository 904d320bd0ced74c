// Package questionnaire runs the guided first-contact flow: a welcome, one
// prompt per configured question with a bounded wait for each reply, then
// the stored transcript and the operator notification.
package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/looplab/fsm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/relaybot/bot/messages"
	"github.com/m3rciful/relaybot/bot/store"
	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/conversation"
	"github.com/m3rciful/relaybot/core/telegram/sender"
	"github.com/m3rciful/relaybot/core/telegram/state"
)

var finished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "questionnaire",
	Name:      "finished_total",
	Help:      "Questionnaire runs by outcome.",
}, []string{"outcome"})

// Store persists the questionnaire results.
type Store interface {
	SaveUser(ctx context.Context, u store.User) error
	AddFeedback(ctx context.Context, userID int64, transcript string) error
}

// Blocker retires a user once the questionnaire is complete.
type Blocker interface {
	Block(ctx context.Context, userID int64) error
}

// Config is the fixed questionnaire content.
type Config struct {
	OperatorID  int64
	Questions   []string
	Welcome     string
	Final       string
	StepTimeout time.Duration
}

// Engine runs questionnaires. One engine serves every user; per-user state
// lives in the session registry.
type Engine struct {
	cfg       Config
	sessions  *state.Registry
	exchanges *conversation.Table
	store     Store
	blocker   Blocker
	msg       sender.Messenger
}

// New wires an engine.
func New(cfg Config, sessions *state.Registry, exchanges *conversation.Table, st Store, blocker Blocker, msg sender.Messenger) *Engine {
	return &Engine{cfg: cfg, sessions: sessions, exchanges: exchanges, store: st, blocker: blocker, msg: msg}
}

// Admit reserves the session for userID. The caller must follow a true
// result with Run; false means a questionnaire is already in progress.
func (e *Engine) Admit(userID int64) bool {
	return e.sessions.Admit(userID)
}

// Active reports whether userID has a questionnaire in progress.
func (e *Engine) Active(userID int64) bool {
	return e.sessions.Contains(userID)
}

// Run executes the admitted questionnaire of p to its end. The session is
// released on every return path.
func (e *Engine) Run(ctx context.Context, p messages.Profile) (Outcome, error) {
	defer e.sessions.Release(p.ID)

	start := time.Now()
	machine := newMachine(p.ID)
	if err := machine.Event(ctx, evStart); err != nil {
		return e.abort(ctx, machine, p, fmt.Errorf("questionnaire: start: %w", err))
	}

	user := store.User{ID: p.ID, Username: p.Username, FirstName: p.FirstName, LastName: p.LastName}
	if err := e.store.SaveUser(ctx, user); err != nil {
		return e.abort(ctx, machine, p, err)
	}
	if _, err := e.msg.Send(ctx, p.ID, messages.Plain(e.cfg.Welcome), nil); err != nil {
		return e.abort(ctx, machine, p, fmt.Errorf("questionnaire: welcome: %w", err))
	}

	n := len(e.cfg.Questions)
	for i, q := range e.cfg.Questions {
		reply, err := e.exchanges.Ask(ctx, p.ID, e.cfg.StepTimeout, func() error {
			_, err := e.msg.Send(ctx, p.ID, messages.Question(i, n, q), nil)
			return err
		})
		if errors.Is(err, conversation.ErrTimeout) {
			return e.timeout(ctx, machine, p, i)
		}
		if err != nil {
			return e.abort(ctx, machine, p, fmt.Errorf("questionnaire: step %d: %w", i+1, err))
		}
		e.sessions.Record(p.ID, reply.Text)
		logger.Debug(ctx, "questionnaire", "questionnaire.answer",
			slog.Int64("user_id", p.ID),
			slog.Int("step", i+1),
			slog.Int("steps", n),
		)
	}

	sess, ok := e.sessions.Get(p.ID)
	if !ok {
		return e.abort(ctx, machine, p, errors.New("questionnaire: session lost"))
	}
	transcript := messages.Transcript(e.cfg.Questions, sess.Answers)
	if err := e.store.AddFeedback(ctx, p.ID, transcript); err != nil {
		return e.abort(ctx, machine, p, err)
	}

	// Feedback is stored from here on; delivery problems are logged only.
	if _, err := e.msg.Send(ctx, e.cfg.OperatorID, messages.NewFeedback(p, transcript), messages.UserActions(p.ID)); err != nil {
		logger.Error(ctx, "questionnaire", "questionnaire.notify_failed", slog.Int64("user_id", p.ID), logger.Err(err))
	}
	if _, err := e.msg.Send(ctx, p.ID, messages.Plain(e.cfg.Final), nil); err != nil {
		logger.Warn(ctx, "questionnaire", "questionnaire.final_failed", slog.Int64("user_id", p.ID), logger.Err(err))
	}
	if err := e.blocker.Block(ctx, p.ID); err != nil {
		logger.Error(ctx, "questionnaire", "questionnaire.block_failed", slog.Int64("user_id", p.ID), logger.Err(err))
	}

	_ = machine.Event(ctx, evComplete)
	finished.WithLabelValues(string(Completed)).Inc()
	logger.Info(ctx, "questionnaire", "questionnaire.completed",
		slog.Int64("user_id", p.ID),
		slog.Int("steps", n),
		slog.Duration("duration", logger.Took(start)),
	)
	return Completed, nil
}

func (e *Engine) timeout(ctx context.Context, machine *fsm.FSM, p messages.Profile, step int) (Outcome, error) {
	_ = machine.Event(ctx, evTimeout)
	finished.WithLabelValues(string(TimedOut)).Inc()
	logger.Info(ctx, "questionnaire", "questionnaire.timed_out",
		slog.Int64("user_id", p.ID),
		slog.Int("step", step+1),
		slog.Duration("step_timeout", e.cfg.StepTimeout),
	)
	if _, err := e.msg.Send(ctx, p.ID, messages.TimedOut, nil); err != nil {
		logger.Warn(ctx, "questionnaire", "questionnaire.notify_failed", slog.Int64("user_id", p.ID), logger.Err(err))
	}
	return TimedOut, nil
}

func (e *Engine) abort(ctx context.Context, machine *fsm.FSM, p messages.Profile, cause error) (Outcome, error) {
	_ = machine.Event(ctx, evAbort)
	finished.WithLabelValues(string(Aborted)).Inc()
	if ctx.Err() != nil {
		// Shutting down: nothing can be sent anymore.
		logger.Info(ctx, "questionnaire", "questionnaire.cancelled", slog.Int64("user_id", p.ID))
		return Aborted, cause
	}
	logger.Error(ctx, "questionnaire", "questionnaire.aborted", slog.Int64("user_id", p.ID), logger.Err(cause))
	if _, err := e.msg.Send(ctx, p.ID, messages.Failure, nil); err != nil {
		logger.Warn(ctx, "questionnaire", "questionnaire.notify_failed", slog.Int64("user_id", p.ID), logger.Err(err))
	}
	return Aborted, cause
}
