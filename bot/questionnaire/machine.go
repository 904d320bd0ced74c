package questionnaire

import (
	"context"
	"log/slog"

	"github.com/looplab/fsm"

	"github.com/m3rciful/relaybot/core/logger"
)

// Outcome is the terminal state of a questionnaire run.
type Outcome string

const (
	stateIdle      = "idle"
	statePrompting = "prompting"

	Completed Outcome = "completed"
	TimedOut  Outcome = "timed_out"
	Aborted   Outcome = "aborted"
)

const (
	evStart    = "start"
	evComplete = "complete"
	evTimeout  = "timeout"
	evAbort    = "abort"
)

// newMachine builds the lifecycle of one run. Steps inside prompting are
// tracked by the session, not by the machine.
func newMachine(userID int64) *fsm.FSM {
	return fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: evStart, Src: []string{stateIdle}, Dst: statePrompting},
			{Name: evComplete, Src: []string{statePrompting}, Dst: string(Completed)},
			{Name: evTimeout, Src: []string{statePrompting}, Dst: string(TimedOut)},
			{Name: evAbort, Src: []string{stateIdle, statePrompting}, Dst: string(Aborted)},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				logger.Debug(ctx, "questionnaire", "questionnaire.transition",
					slog.Int64("user_id", userID),
					slog.String("from", e.Src),
					slog.String("to", e.Dst),
				)
			},
		},
	)
}
