// Package tasks runs long-lived work spawned from update handlers outside the
// dispatch loop. Every task inherits the logging metadata of the update that
// started it and is cancelled with the root context.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
)

// Group tracks background tasks bound to a root context.
type Group struct {
	root context.Context
	wg   sync.WaitGroup
}

// NewGroup returns a group whose tasks are cancelled when root is done.
func NewGroup(root context.Context) *Group {
	if root == nil {
		root = context.Background()
	}
	return &Group{root: root}
}

// Go starts fn in its own goroutine. Errors and panics are logged and never
// escape the task.
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	taskCtx := logger.Detach(g.root, ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		start := time.Now()
		err := g.run(taskCtx, name, fn)
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.String("task", name),
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
		}
		if err != nil {
			attrs = append(attrs, logger.Err(err))
		}
		logger.LogEvent(taskCtx, logger.Component("tasks"), level, "task.done", attrs...)
	}()
}

func (g *Group) run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "tasks", "task.panic",
				slog.String("task", name),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every started task has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
