// Package app assembles the relay bot from configuration: storage, the
// block set, the services and their Telegram routes.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/relaybot/bot/admin"
	"github.com/m3rciful/relaybot/bot/blocklist"
	"github.com/m3rciful/relaybot/bot/broadcast"
	"github.com/m3rciful/relaybot/bot/config"
	"github.com/m3rciful/relaybot/bot/questionnaire"
	"github.com/m3rciful/relaybot/bot/relay"
	"github.com/m3rciful/relaybot/bot/report"
	"github.com/m3rciful/relaybot/bot/store"
	"github.com/m3rciful/relaybot/core/bootstrap"
	"github.com/m3rciful/relaybot/core/logger"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/conversation"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/core/telegram/sender"
	"github.com/m3rciful/relaybot/core/telegram/state"
	"github.com/m3rciful/relaybot/core/telegram/tasks"
	"github.com/m3rciful/relaybot/migrations"

	tele "gopkg.in/telebot.v4"
)

// App owns the long-lived state shared by every handler.
type App struct {
	cfg       *config.AppConfig
	db        *sqlx.DB
	store     *store.Store
	blocks    *blocklist.List
	sessions  *state.Registry
	exchanges *conversation.Table
	tasks     *tasks.Group
	messenger func(coretelegram.Runtime) sender.Messenger
}

// New bootstraps logging and storage and loads the block set.
func New(cfg *config.AppConfig) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	a, err := newApp(context.Background(), cfg, res.DB)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return a, nil
}

func newApp(ctx context.Context, cfg *config.AppConfig, db *sqlx.DB) (*App, error) {
	st := store.New(db)
	blocks := blocklist.New(st)
	if err := blocks.Load(ctx); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return &App{
		cfg:       cfg,
		db:        db,
		store:     st,
		blocks:    blocks,
		sessions:  state.NewRegistry(),
		exchanges: conversation.NewTable(),
		tasks:     tasks.NewGroup(ctx),
		messenger: botMessenger,
	}, nil
}

// Store exposes the repository for the CLI.
func (a *App) Store() *store.Store {
	return a.store
}

// Handler wires the services around msg. Background work runs in the
// task group bound to root.
func (a *App) Handler(root context.Context, msg sender.Messenger) router.Handler {
	a.tasks = tasks.NewGroup(root)
	operator := a.cfg.Telegram.AdminID
	engine := questionnaire.New(questionnaire.Config{
		OperatorID:  operator,
		Questions:   a.cfg.Relay.Questions,
		Welcome:     a.cfg.Relay.WelcomeMessage,
		Final:       a.cfg.Relay.FinalMessage,
		StepTimeout: a.cfg.Relay.StepTimeout(),
	}, a.sessions, a.exchanges, a.store, a.blocks, msg)

	dispatcher := admin.New(admin.Deps{
		OperatorID:  operator,
		Timeout:     a.cfg.Relay.StepTimeout(),
		Exchanges:   a.exchanges,
		Users:       a.store,
		Blocks:      a.blocks,
		Broadcaster: broadcast.New(a.store, msg),
		Reporter:    report.New(a.store),
		Tasks:       a.tasks,
		Messenger:   msg,
	})

	return relay.New(relay.Deps{
		OperatorID:    operator,
		Admin:         dispatcher,
		Blocks:        a.blocks,
		Users:         a.store,
		Questionnaire: engine,
		Tasks:         a.tasks,
		Messenger:     msg,
	})
}

// TelegramRunOptions implements the runner contract.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		Config: a.cfg.CoreConfig(),
		Middlewares: coretelegram.DefaultMiddlewares(coretelegram.MiddlewareOptions{
			AdminID:   a.cfg.Telegram.AdminID,
			Exchanges: a.exchanges,
		}),
		BuildRoutes: a.buildRoutes,
		OnStop:      a.stop,
	}, nil
}

func botMessenger(rt coretelegram.Runtime) sender.Messenger {
	return sender.NewBotMessenger(rt.Bot, rt.Dispatcher, tele.ModeMarkdown)
}

func (a *App) buildRoutes(ctx context.Context, rt coretelegram.Runtime) ([]coretelegram.Route, error) {
	h := a.Handler(ctx, a.messenger(rt))

	rt.Registry.RegisterCommand("/start", coretelegram.Command{
		Handler:     router.Bridge(h),
		Description: "Start",
	})
	routes := router.CommandRoutes(rt.Registry, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	routes = append(routes, router.EventRoutes(h)...)

	logger.Info(ctx, "app", "app.wired",
		slog.Int("questions", len(a.cfg.Relay.Questions)),
		slog.Int("blocked", a.blocks.Len()),
		slog.Int("routes", len(routes)),
	)
	return routes, nil
}

func (a *App) stop(context.Context, coretelegram.Runtime) error {
	return a.Close()
}

// Close waits for background tasks and closes the database.
func (a *App) Close() error {
	a.tasks.Wait()
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("app: close db: %w", err)
	}
	return nil
}
