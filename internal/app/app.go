// Package app wires configuration, storage, the AI gateway and the Telegram
// transport into a runnable bot.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/m3rciful/dreambot/core/bootstrap"
	"github.com/m3rciful/dreambot/core/cmd"
	coredatabase "github.com/m3rciful/dreambot/core/database"
	"github.com/m3rciful/dreambot/core/logger"
	tg "github.com/m3rciful/dreambot/core/telegram"
	"github.com/m3rciful/dreambot/core/telegram/commands"
	tghelpers "github.com/m3rciful/dreambot/core/telegram/helpers"
	"github.com/m3rciful/dreambot/core/telegram/router"
	tgsender "github.com/m3rciful/dreambot/core/telegram/sender"
	"github.com/m3rciful/dreambot/internal/bot"
	"github.com/m3rciful/dreambot/internal/config"
	"github.com/m3rciful/dreambot/internal/feedback"
	"github.com/m3rciful/dreambot/internal/feedback/dynamo"
	fbpostgres "github.com/m3rciful/dreambot/internal/feedback/postgres"
	"github.com/m3rciful/dreambot/internal/locale"
	"github.com/m3rciful/dreambot/internal/ops"
	"github.com/m3rciful/dreambot/internal/reading"
	"github.com/m3rciful/dreambot/internal/secrets"
	"github.com/m3rciful/dreambot/internal/session"
	"github.com/m3rciful/dreambot/internal/tarot"
)

// App owns every long-lived component of the bot.
type App struct {
	cfg      *config.Config
	infra    *bootstrap.Result
	sessions *session.Manager
	feedback *feedback.Collector
	notifier *bot.AdminNotifier
	bot      *bot.Bot
	registry *tg.Registry
	ops      *ops.Server
}

// Snapshot is the payload of the ops /stats endpoint and the admin /stats command.
type Snapshot struct {
	Sessions session.Stats   `json:"sessions"`
	Feedback feedback.Stats  `json:"feedback"`
	Sender   *tgsender.Stats `json:"sender,omitempty"`
}

// Load satisfies cmd.Options.LoadConfig.
func Load(path string) (cmd.ConfigCarrier, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap satisfies cmd.Options.Bootstrap.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(ctx, cfg)
}

// New builds the app. Secrets are resolved before anything uses them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	awsCfg, err := newAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.NeedsSSM() {
		client, err := secrets.New(awsssm.NewFromConfig(*awsCfg))
		if err != nil {
			return nil, err
		}
		if err := cfg.ResolveSecrets(ctx, client); err != nil {
			return nil, err
		}
	}

	var db *coredatabase.Config
	if cfg.Feedback.Journal == config.JournalPostgres {
		db = &cfg.Database
	}
	infra, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg.CoreConfig(), Database: db})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, infra: infra}
	if err := a.build(ctx, awsCfg); err != nil {
		_ = infra.Close()
		return nil, err
	}
	logger.Info(ctx, logger.CompApp, "wired",
		slog.String("text_provider", cfg.AI.Text.Provider),
		slog.String("vision_provider", cfg.AI.Vision.Provider),
		slog.Bool("speech", cfg.AI.Speech.Model != ""),
		slog.String("journal", cfg.Feedback.Journal),
		slog.String("assets", cfg.Tarot.AssetsDir),
		slog.String("ops", cfg.Ops.Listen),
	)
	return a, nil
}

func (a *App) build(ctx context.Context, awsCfg *aws.Config) error {
	cfg := a.cfg

	gw, err := buildGateway(ctx, cfg.AI)
	if err != nil {
		return err
	}

	assets := tarot.NewFSStore(os.DirFS(cfg.Tarot.AssetsDir), cfg.Tarot.AssetExt)
	if cfg.Tarot.ValidateAssets {
		if err := tarot.ValidateDeck(ctx, assets); err != nil {
			return fmt.Errorf("app: tarot deck: %w", err)
		}
	}
	reader := reading.New(gw, assets, reading.WithInvalidMarkers(cfg.AI.InvalidMarkers))

	a.notifier = bot.NewAdminNotifier(cfg.Feedback.AdminChatID)
	fbOpts := []feedback.Option{feedback.WithNotifier(a.notifier)}
	journal, err := a.journal(awsCfg)
	if err != nil {
		return err
	}
	if journal != nil {
		fbOpts = append(fbOpts, feedback.WithJournal(journal))
	}
	a.feedback = feedback.NewCollector(fbOpts...)

	cat, err := locale.Default()
	if err != nil {
		return err
	}
	a.sessions = session.NewManager(session.NewMemoryStore(), reader, a.feedback,
		session.WithProgress(bot.Progress(cat)),
	)

	a.bot = bot.New(a.sessions, cat)
	a.registry = tg.NewRegistry()
	if err := a.bot.Register(a.registry); err != nil {
		return err
	}
	if err := a.registry.RegisterCommand("/stats", commands.Command{
		Handler:     bot.StatsCommand(a.Stats),
		Description: "Bot statistics",
		AdminOnly:   true,
		Hidden:      true,
	}); err != nil {
		return err
	}
	// Buttons from a keyboard this build no longer knows repeat the current prompt.
	a.registry.SetCallbackNotFound(a.bot.HandleOther)

	a.ops = &ops.Server{Addr: cfg.Ops.Listen, Stats: a.Stats}
	return nil
}

func (a *App) journal(awsCfg *aws.Config) (feedback.Journal, error) {
	switch a.cfg.Feedback.Journal {
	case config.JournalPostgres:
		return fbpostgres.New(a.infra.DB)
	case config.JournalDynamoDB:
		return dynamo.New(awsdynamodb.NewFromConfig(*awsCfg), a.cfg.Feedback.DynamoDBTable)
	}
	return nil, nil
}

// TelegramRunOptions satisfies cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	admin := router.CommandRouteOptions{AdminID: core.Telegram.AdminID}
	routes := router.CommandRoutes(a.registry, admin)
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{ClearStale: true}))
	routes = append(routes, router.MessageRoutes(a.bot, a.registry, router.MessageOptions{
		Commands:        admin,
		UnknownDocument: a.bot.HandleOther,
	})...)

	return tg.RunOptions{
		Config:   core,
		Registry: a.registry,
		DispatcherOptions: tgsender.Options{
			QueueSize:  a.cfg.Sender.QueueSize,
			Workers:    a.cfg.Sender.Workers,
			MaxRetries: a.cfg.Sender.MaxRetries,
		},
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.notifier.Attach(rt.Bot)
			return a.ops.Start(ctx)
		},
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			return a.ops.Shutdown(ctx)
		},
	}, nil
}

// Stats gathers the live counters.
func (a *App) Stats(ctx context.Context) (any, error) {
	st, err := a.sessions.Stats(ctx)
	if err != nil {
		return nil, err
	}
	snap := Snapshot{Sessions: st, Feedback: a.feedback.Stats()}
	if d := tghelpers.Dispatcher(); d != nil {
		ds := d.Stats()
		snap.Sender = &ds
	}
	return snap, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.infra.Close()
}

// newAWS loads the shared AWS config only when SSM or DynamoDB is in use.
func newAWS(ctx context.Context, cfg *config.Config) (*aws.Config, error) {
	if !cfg.NeedsSSM() && cfg.Feedback.Journal != config.JournalDynamoDB {
		return nil, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Secrets.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Secrets.Region))
	}
	c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: load aws config: %w", err)
	}
	return &c, nil
}
