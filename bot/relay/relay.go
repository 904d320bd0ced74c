// Package relay classifies every inbound event and routes it to the
// operator dispatcher, the questionnaire or the operator inbox.
package relay

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/relaybot/bot/messages"
	"github.com/m3rciful/relaybot/bot/questionnaire"
	"github.com/m3rciful/relaybot/bot/store"
	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/core/telegram/sender"
)

const component = "relay"

// Routes as reported in logs and metrics.
const (
	RouteAdmin         = "admin"
	RouteBlocked       = "blocked"
	RouteQuestionnaire = "questionnaire"
	RouteServed        = "served"
	RouteActive        = "active"
	RouteCallback      = "callback"
	RouteRelay         = "relay"
)

var routed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "relay",
	Name:      "routed_total",
	Help:      "Inbound events by route.",
}, []string{"route"})

// Users is the user directory used for relays and the served check.
type Users interface {
	SaveUser(ctx context.Context, u store.User) error
	HasFeedback(ctx context.Context, userID int64) (bool, error)
}

// BlockSet answers membership of blocked users.
type BlockSet interface {
	Contains(userID int64) bool
}

// Questionnaire admits and runs first-contact flows.
type Questionnaire interface {
	Admit(userID int64) bool
	Active(userID int64) bool
	Run(ctx context.Context, p messages.Profile) (questionnaire.Outcome, error)
}

// Spawner runs work outside the dispatch loop.
type Spawner interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

// Deps are the collaborators of the router.
type Deps struct {
	OperatorID    int64
	Admin         router.Handler
	Blocks        BlockSet
	Users         Users
	Questionnaire Questionnaire
	Tasks         Spawner
	Messenger     sender.Messenger
}

// Router decides the route of each event; the first matching rule wins.
type Router struct {
	Deps
}

// New returns a router.
func New(d Deps) *Router {
	return &Router{Deps: d}
}

// Handle implements router.Handler.
func (r *Router) Handle(ctx context.Context, ev router.Event) error {
	route, err := r.route(ctx, ev)
	routed.WithLabelValues(route).Inc()
	logger.Debug(ctx, component, "relay.routed",
		slog.String("route", route),
		slog.String("kind", ev.Kind.String()),
	)
	return err
}

func (r *Router) route(ctx context.Context, ev router.Event) (string, error) {
	id := ev.Sender.ID
	if id == r.OperatorID {
		return RouteAdmin, r.Admin.Handle(ctx, ev)
	}
	if r.Blocks.Contains(id) {
		return RouteBlocked, nil
	}
	if ev.IsCommand("start") {
		return r.start(ctx, ev)
	}
	if r.Questionnaire.Active(id) {
		return RouteActive, nil
	}
	if ev.Kind == router.KindCallback {
		return RouteCallback, nil
	}
	return RouteRelay, r.relay(ctx, ev)
}

func (r *Router) start(ctx context.Context, ev router.Event) (string, error) {
	id := ev.Sender.ID
	served, err := r.Users.HasFeedback(ctx, id)
	if err != nil {
		logger.Error(ctx, component, "relay.lookup_failed", slog.Int64("user_id", id), logger.Err(err))
		if postErr := r.Messenger.Post(ctx, id, messages.Failure, nil); postErr != nil {
			logger.Warn(ctx, component, "relay.notify_failed", slog.Int64("user_id", id), logger.Err(postErr))
		}
		return RouteQuestionnaire, err
	}
	if served {
		return RouteServed, nil
	}
	if !r.Questionnaire.Admit(id) {
		return RouteActive, nil
	}
	p := profile(ev.Sender)
	r.Tasks.Go(ctx, "questionnaire", func(ctx context.Context) error {
		_, err := r.Questionnaire.Run(ctx, p)
		return err
	})
	return RouteQuestionnaire, nil
}

func (r *Router) relay(ctx context.Context, ev router.Event) error {
	p := profile(ev.Sender)
	if err := r.Users.SaveUser(ctx, store.User{ID: p.ID, Username: p.Username, FirstName: p.FirstName, LastName: p.LastName}); err != nil {
		logger.Warn(ctx, component, "relay.save_failed", slog.Int64("user_id", p.ID), logger.Err(err))
	}
	return r.Messenger.Post(ctx, r.OperatorID, messages.Forward(p, ev.Text), messages.UserActions(p.ID))
}

func profile(s router.Sender) messages.Profile {
	return messages.Profile{ID: s.ID, Username: s.Username, FirstName: s.FirstName, LastName: s.LastName}
}
