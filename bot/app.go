// Package bot assembles the application: storage, scraper, flows, and the
// Telegram wiring on top of the reusable core.
package bot

import (
	"context"
	"fmt"

	"github.com/m3rciful/appleidbot/bot/config"
	"github.com/m3rciful/appleidbot/bot/flow"
	"github.com/m3rciful/appleidbot/bot/handlers"
	"github.com/m3rciful/appleidbot/bot/scraper"
	"github.com/m3rciful/appleidbot/bot/storage"
	"github.com/m3rciful/appleidbot/core/bootstrap"
	corecmd "github.com/m3rciful/appleidbot/core/cmd"
	coretelegram "github.com/m3rciful/appleidbot/core/telegram"
	"github.com/m3rciful/appleidbot/core/telegram/middleware"
	"github.com/m3rciful/appleidbot/core/telegram/router"
	"github.com/m3rciful/appleidbot/core/telegram/state"
	"github.com/m3rciful/appleidbot/core/telegram/ui"

	"github.com/jmoiron/sqlx"
)

// App holds the assembled application.
type App struct {
	cfg *config.Config
	db  *sqlx.DB

	store         storage.PairStore
	userSessions  state.Manager
	adminSessions state.Manager
	handlers      *handlers.Handlers
	access        middleware.AdminOptions
}

// LoadConfig adapts config.Load to the runner's carrier interface.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	return config.Load(path)
}

// Bootstrap initializes infrastructure and wires the application graph.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	store := storage.NewPostgresStore(res.DB)

	access := middleware.NewAdminOptions(
		cfg.Core.Telegram.AdminHandles,
		cfg.Core.Telegram.AdminIDs,
		handlers.AccessDenied,
	)

	// Admin dialogues are keyed by sender, user dialogues by chat. In
	// private chats the two ids coincide, so each flow gets its own manager.
	userSessions := state.NewMemoryManager()
	adminSessions := state.NewMemoryManager()

	fetcher := scraper.NewClient(scraper.ClientConfig{
		BaseURL: cfg.Scraper.BaseURL,
	})
	orch := scraper.NewOrchestrator(
		fetcher,
		scraper.NewExtractor(cfg.Scraper.Authority),
		orchestratorConfig(cfg.Scraper),
	)

	users := flow.NewUserFlow(userSessions, store, orch)
	admins := flow.NewAdminFlow(adminSessions, store)

	return &App{
		cfg:           cfg,
		db:            res.DB,
		store:         store,
		userSessions:  userSessions,
		adminSessions: adminSessions,
		handlers:      handlers.New(users, admins, store, access),
		access:        access,
	}, nil
}

// orchestratorConfig overlays the configured knobs onto the defaults.
func orchestratorConfig(sc config.ScraperConfig) scraper.OrchestratorConfig {
	oc := scraper.DefaultOrchestratorConfig()
	if sc.MaxRetries > 0 {
		oc.MaxRetries = sc.MaxRetries
	}
	if d := config.Delay(sc.PreFetchDelayMinMS); d > 0 {
		oc.PreFetchDelayMin = d
	}
	if d := config.Delay(sc.PreFetchDelayMaxMS); d > 0 {
		oc.PreFetchDelayMax = d
	}
	if d := config.Delay(sc.PreParseDelayMinMS); d > 0 {
		oc.PreParseDelayMin = d
	}
	if d := config.Delay(sc.PreParseDelayMaxMS); d > 0 {
		oc.PreParseDelayMax = d
	}
	if d := config.Delay(sc.RetryBackoffMinMS); d > 0 {
		oc.RetryBackoffMin = d
	}
	if d := config.Delay(sc.RetryBackoffMaxMS); d > 0 {
		oc.RetryBackoffMax = d
	}
	return oc
}

// TelegramRunOptions builds the registry, routes, and middleware chain.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.handlers.Register(reg)

	var fallbacks ui.FallbackProvider = a.handlers

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{Admin: a.access})
	routes = append(routes, router.TextRoutes(
		a.handlers.SessionBindings(a.adminSessions),
		reg,
		router.TextOptions{
			UnknownText:     fallbacks.UnknownText(),
			UnknownDocument: fallbacks.UnknownDocument(),
		},
	)...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: fallbacks.UnknownCallback(),
	}))

	middlewares := coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil)
	middlewares = append(middlewares, coretelegram.Middleware{
		Name: "admin_session",
		Use:  state.WithSession(a.adminSessions),
	})

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: middlewares,
		Routes:      routes,
		OnStop: func(context.Context, coretelegram.Runtime) error {
			return a.db.Close()
		},
	}, nil
}
