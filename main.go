package main

import (
	"context"
	"expvar"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"deploybell/internal"
	"deploybell/pkg/notify"
	"deploybell/pkg/relay"
	"deploybell/pkg/render"
	"deploybell/pkg/worker"
	"deploybell/webhook"

	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

func main() {
	logger := internal.NewLogger("server")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ruleEngine, err := internal.NewRuleEngine(internal.RulesConfig{
		Rules:  cfg.Rules,
		Strict: cfg.RulesStrict,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("compile rules: %v", err)
	}

	pubsub, err := internal.NewPubSub(cfg.Watermill)
	if err != nil {
		logger.Fatalf("pubsub: %v", err)
	}
	defer pubsub.Close()

	verifier, err := webhook.NewVerifier(
		cfg.Render.WebhookSecret,
		webhook.WithTolerance(time.Duration(cfg.Render.SignatureToleranceMS)*time.Millisecond),
	)
	if err != nil {
		logger.Fatalf("verifier: %v", err)
	}

	apiClient, err := render.NewClient(render.Config{
		BaseURL: cfg.Render.APIBase,
		APIKey:  cfg.Render.APIKey,
	})
	if err != nil {
		logger.Fatalf("render client: %v", err)
	}

	notifier, err := notify.NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelID)
	if err != nil {
		logger.Fatalf("discord: %v", err)
	}
	if err := notifier.Connect(); err != nil {
		logger.Fatalf("discord connect: %v", err)
	}
	defer notifier.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerLogger := internal.NewLogger("worker")
	wk := worker.New(
		worker.WithSubscriber(pubsub.Subscriber()),
		worker.WithTopics(ruleTopics(cfg.Rules)...),
		worker.WithConcurrency(cfg.Worker.Concurrency),
		worker.WithLogger(workerLogger),
		worker.WithMiddleware(worker.MiddlewareFromWatermill(middleware.Recoverer)),
		worker.WithListener(worker.Listener{
			OnStart: func(ctx context.Context) { workerLogger.Printf("worker started") },
			OnExit:  func(ctx context.Context) { workerLogger.Printf("worker stopped") },
			OnError: func(ctx context.Context, evt *worker.Event, err error) {
				topic := ""
				if evt != nil {
					topic = evt.Topic
				}
				internal.IncNotifyError(topic)
				workerLogger.Printf("chain failed topic=%s: %v", topic, err)
			},
		}),
	)
	wk.HandleTopic(internal.TopicServerFailed, relay.NewServerFailed(apiClient, notifier, workerLogger).Handle)

	go func() {
		if err := wk.Run(ctx); err != nil {
			workerLogger.Printf("worker: %v", err)
		}
	}()

	mux := http.NewServeMux()
	webhookHandler := webhook.NewRenderHandler(verifier, ruleEngine, pubsub, logger, cfg.Server.MaxBodyBytes)
	mux.Handle(cfg.Server.WebhookPath, internal.NewRateLimitHandler(
		webhookHandler,
		cfg.Server.RateLimitRPS,
		cfg.Server.RateLimitBurst,
		time.Minute,
	))
	if cfg.Server.MetricsEnabled {
		mux.Handle(cfg.Server.MetricsPath, expvar.Handler())
	}

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderMS) * time.Millisecond,
	}

	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	if err := wk.Close(); err != nil {
		logger.Printf("worker close: %v", err)
	}
}

func ruleTopics(rules []internal.Rule) []string {
	topics := make([]string, 0, len(rules))
	for _, rule := range rules {
		topics = append(topics, rule.Emit)
	}
	return topics
}
