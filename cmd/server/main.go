package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"banquet_crm/internal/app"
	"banquet_crm/internal/infra/config"
	idb "banquet_crm/internal/infra/database"
	"banquet_crm/internal/infra/http/handlers"
	"banquet_crm/internal/infra/integration/aisensy"
	"banquet_crm/internal/infra/integration/graph"
	"banquet_crm/internal/infra/integration/twilio"
	"banquet_crm/internal/infra/integration/wati"
	"banquet_crm/internal/infra/logger"
	"banquet_crm/internal/infra/phone"
	"banquet_crm/internal/infra/queue"
	"banquet_crm/internal/infra/realtime"
	"banquet_crm/internal/infra/scheduler"
	"banquet_crm/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"timezone":    cfg.Timezone,
		"http_addr":   cfg.HTTPAddr,
	}).Info("Banquet CRM starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := idb.EnsureSchema(ctx, db); err != nil {
		mainLogger.WithError(err).Fatal("Could not apply database schema")
	}
	mainLogger.Info("Database connection established")

	// Repositories
	leadRepo := idb.NewPostgresLeadRepository(db)
	messageRepo := idb.NewPostgresMessageRepository(db)
	employeeRepo := idb.NewPostgresEmployeeRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)
	settingsRepo := idb.NewPostgresSettingsRepository(db)

	// Provider clients
	phones := phone.New(cfg.PhoneRegion)
	twilioClient := twilio.NewClient("", logger.Component("twilio"))
	watiClient := wati.NewClient(logger.Component("wati"))
	aisensyClient := aisensy.NewClient("", logger.Component("aisensy"))
	graphClient := graph.NewClient(cfg.MetaGraphBaseURL, logger.Component("graph"))

	// Fanout targets
	hub := realtime.NewHub(cfg.CORSAllowedOrigins, logger.Component("realtime"))
	defer hub.Close()
	fanouts := []app.Fanout{hub}
	if cfg.AMQPURL != "" {
		rabbitMQ, err := queue.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			mainLogger.WithError(err).Warn("RabbitMQ unavailable, lead events will not be mirrored")
		} else {
			defer rabbitMQ.Close()
			fanouts = append(fanouts, queue.NewProducer(rabbitMQ.Ch))
			mainLogger.Info("Lead events mirrored to RabbitMQ")
		}
	}

	// Telegram bot (optional)
	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telegram")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				logCtx := botLogger.WithError(err)
				if c != nil && c.Sender() != nil {
					logCtx = logCtx.WithField("sender_id", c.Sender().ID)
				}
				logCtx.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
	}

	// Services
	dispatcher := app.NewDispatcher(notificationRepo, employeeRepo, twilioClient, phones, logger.Component("dispatcher"))
	if bot != nil && cfg.TelegramAlertChatID != 0 {
		dispatcher.WithTelegramAlerts(telegram.NewTelebotAdapter(bot), cfg.TelegramAlertChatID)
	}
	greeter := app.NewGreeter(twilioClient, watiClient, aisensyClient, leadRepo, messageRepo, phones, logger.Component("greeter"))
	engine := app.NewAssignmentEngine(employeeRepo, leadRepo)
	leadService := app.NewLeadService(leadRepo, settingsRepo, engine, dispatcher, greeter, phones, cfg.Location,
		logger.Component("leads"), fanouts...)
	scanner := app.NewScanner(leadRepo, settingsRepo, dispatcher, cfg.Location, logger.Component("scanner"))
	inboundService := app.NewInboundService(leadRepo, messageRepo, leadService, phones, logger.Component("inbound"))
	metaService := app.NewMetaLeadService(settingsRepo, graphClient, leadService, logger.Component("meta"))
	adminService := app.NewAdminService(scanner, cfg.AdminTelegramID)

	// Scheduler
	sweepScheduler := scheduler.NewSweepScheduler(
		scanner,
		scheduler.DefaultJobs(cfg.CronSpecStale, cfg.CronSpecSiteVisit, cfg.CronSpecQuote),
		cfg.Location,
		logger.Component("scheduler"),
	)
	if err := sweepScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start sweep scheduler")
	}

	// HTTP
	httpLogger := logger.Component("http")
	router := handlers.NewRouter(handlers.RouterDeps{
		Leads:          handlers.NewLeadHandler(leadService, handlers.NewValidator(), cfg.Location, httpLogger),
		Notifications:  handlers.NewNotificationHandler(dispatcher, httpLogger),
		WhatsApp:       handlers.NewWhatsAppWebhookHandler(inboundService, settingsRepo, httpLogger),
		Meta:           handlers.NewMetaWebhookHandler(metaService, httpLogger),
		Sweeps:         handlers.NewSweepHandler(scanner, cfg.SweepSecret, httpLogger),
		WebSocket:      hub.ServeWS,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Log:            httpLogger,
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if bot != nil {
		botLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(bot, adminService, botLogger)
		telegram.RegisterAdminHandlers(gctx, bot, adminService, botLogger)
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	mainLogger.Info("Application setup complete")
	if err := g.Wait(); err != nil {
		mainLogger.WithError(err).Error("Server stopped with error")
	}

	mainLogger.Info("Shutting down application...")
	sweepScheduler.Stop()
	if bot != nil {
		bot.Stop()
	}
	mainLogger.Info("Application shut down gracefully")
}
