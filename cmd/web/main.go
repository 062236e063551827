package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/donseba/go-htmx"
	"github.com/joho/godotenv"
	"github.com/normicyte/normicyte/internal/broker"
	"github.com/normicyte/normicyte/internal/catalog"
	"github.com/normicyte/normicyte/internal/envstruct"
	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/investigation"
	"github.com/normicyte/normicyte/internal/logging"
	"github.com/normicyte/normicyte/internal/mentor"
	"github.com/normicyte/normicyte/internal/pprofserver"
	"github.com/normicyte/normicyte/internal/repositories"
	"github.com/normicyte/normicyte/internal/sqlite"
	"github.com/normicyte/normicyte/internal/webauthnhandler"
)

type application struct {
	logger          *slog.Logger
	baseContext     context.Context
	catalog         *catalog.Catalog
	investigations  *investigation.Service
	profiles        *repositories.ProfileRepository
	activities      *repositories.ActivityRepository
	mentorAdvisor   mentor.Advisor
	mentorBroker    *broker.ChannelBroker[string, string]
	webAuthnHandler *webauthnhandler.WebAuthnHandler
	sessionManager  *scs.SessionManager
	htmx            *htmx.HTMX
}

type configuration struct {
	Addr      string `env:"NORMICYTE_ADDR" envDefault:"localhost:4000"`
	SQLiteURL string `env:"NORMICYTE_SQLITE_URL" envDefault:":memory:"`
	PprofPort string `env:"NORMICYTE_PPROF_PORT" envDefault:""`
	OpenAIKey string `env:"OPENAI_API_KEY" envDefault:""`
}

func main() {
	ctx := context.Background()

	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		AddSource:   true,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)

	// Missing .env is fine, the defaults cover local development.
	_ = godotenv.Load()

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "application crash", errors.SlogError(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var config configuration
	if err := envstruct.Populate(&config, lookupEnv); err != nil {
		return errors.Wrap(err, "parse environment")
	}

	if config.PprofPort != "" {
		// Listens on localhost only so profiling stays off the public surface.
		pprofserver.Launch(config.PprofPort, logger)
	}

	dbs, err := sqlite.NewDatabase(ctx, config.SQLiteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open database", slog.String("url", config.SQLiteURL))
	}
	defer func() {
		if err := dbs.Close(); err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(err))
		}
	}()
	go dbs.StartDatabaseOptimizer(ctx)

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(dbs.ReadWrite.DB, 24*time.Hour)
	sessionManager.Lifetime = 12 * time.Hour
	sessionManager.Cookie.Secure = true

	users := repositories.NewUserRepository(dbs, logger)
	progress := repositories.NewProgressRepository(dbs, logger)
	profiles := repositories.NewProfileRepository(dbs, logger)
	activities := repositories.NewActivityRepository(dbs, logger)
	caseCatalog := catalog.NewCatalog(dbs, logger)

	fqdn := strings.Split(config.Addr, ":")[0]
	webAuthnHandler, err := webauthnhandler.New(
		fqdn,
		[]string{fmt.Sprintf("http://%s", config.Addr)},
		logger,
		sessionManager,
		users,
	)
	if err != nil {
		return errors.Wrap(err, "initialise webauthn")
	}

	var advisor mentor.Advisor
	if config.OpenAIKey != "" {
		advisor = mentor.NewClient(config.OpenAIKey, logger)
	} else {
		logger.LogAttrs(ctx, slog.LevelInfo, "no OpenAI API key, mentor uses rule-based advice")
		advisor = mentor.NewRuleBased()
	}

	mentorBroker := broker.NewChannelBroker[string, string]()
	go mentorBroker.Start()
	defer mentorBroker.Stop()

	app := application{
		logger:          logger,
		baseContext:     ctx,
		catalog:         caseCatalog,
		investigations:  investigation.NewService(caseCatalog, progress, profiles, activities, logger),
		profiles:        profiles,
		activities:      activities,
		mentorAdvisor:   advisor,
		mentorBroker:    mentorBroker,
		webAuthnHandler: webAuthnHandler,
		sessionManager:  sessionManager,
		htmx:            htmx.New(),
	}

	return app.configureAndStartServer(ctx, config.Addr)
}
