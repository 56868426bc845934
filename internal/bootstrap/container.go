package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"support-chatbot-be/internal/config"
	"support-chatbot-be/internal/controller"
	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/internal/pkg/metrics"
	"support-chatbot-be/internal/repository/cache"
	"support-chatbot-be/internal/repository/memory"
	"support-chatbot-be/internal/repository/unitofwork"
	"support-chatbot-be/internal/service"
	"support-chatbot-be/pkg/classifier"
	"support-chatbot-be/pkg/escalation"
	"support-chatbot-be/pkg/llm/factory"
	pktNats "support-chatbot-be/pkg/nats"
	"support-chatbot-be/pkg/orchestrator"
	"support-chatbot-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const ticketTopic = "support.tickets"

type Container struct {
	Logger   logger.ILogger
	Registry *prometheus.Registry

	// Controllers
	ChatbotController controller.IChatbotController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService // nil when tickets go to NATS
	Publisher       *escalation.Publisher

	stopBackground context.CancelFunc
	closers        []func() error
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	publishLogger := logger.NewIsolatedLogger(cfg.App.PublishLogFilePath)
	uowFactory := unitofwork.NewRepositoryFactory(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	c := &Container{Logger: sysLogger, Registry: registry}
	// stdout sync errors are expected on some terminals
	c.closers = append(c.closers,
		func() error { _ = publishLogger.Sync(); return nil },
		func() error { _ = sysLogger.Sync(); return nil },
	)

	// 2. Session/History Store
	policy := store.HistoryPolicy{TTL: cfg.Session.HistoryTTL, MaxMessages: cfg.Session.HistoryMaxMessages}
	var sessions store.SessionStore
	if cfg.Session.Backend == "memory" {
		sessions = memory.NewSessionRepository(policy)
		sysLogger.Info("SESSION", "Using in-memory session store", nil)
	} else {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("SESSION", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Session.StoreTimeout)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// turns fail with 503 until redis is reachable
			sysLogger.Warn("SESSION", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		cancel()
		sessions = cache.NewRedisSessionStore(rdb, policy, cfg.Session.StoreTimeout)
		c.closers = append([]func() error{rdb.Close}, c.closers...)
	}

	// 3. Ticket Sink
	var sink escalation.Sink
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, cfg.App.TicketStream, cfg.App.TicketSubjectPrefix, sysLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect ticket publisher: %w", err)
		}
		sink = natsPub
		c.closers = append([]func() error{func() error { natsPub.Close(); return nil }}, c.closers...)
	} else {
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: int64(cfg.Escalation.PublishQueueSize)}, watermill.NewStdLogger(false, false))
		sink = escalation.NewWatermillSink(pubSub, ticketTopic)
		c.ConsumerService = service.NewConsumerService(pubSub, ticketTopic, service.LogHandoff(sysLogger), 0, sysLogger)
		c.closers = append([]func() error{pubSub.Close}, c.closers...)
		sysLogger.Info("PUBLISHER", "NATS_URL not set, tickets stay in process", nil)
	}

	c.Publisher = escalation.NewPublisher(sink, escalation.PublisherConfig{
		Workers:     cfg.Escalation.PublishWorkers,
		QueueSize:   cfg.Escalation.PublishQueueSize,
		Timeout:     cfg.Escalation.PublishTimeout,
		MaxAttempts: uint(max(cfg.Escalation.PublishMaxAttempt, 1)),
	}, publishLogger, m)

	// 4. Decision Pipeline
	intent := classifier.New(
		classifier.NewHTTPClassifier(cfg.Classifier.URL, cfg.Classifier.APIKey),
		classifier.Config{Threshold: cfg.Classifier.Threshold, Timeout: cfg.Classifier.Timeout},
		sysLogger,
		m,
	)

	engine, err := factory.NewReasoningEngine(cfg.Ai)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reasoning engine: %w", err)
	}
	sysLogger.Info("ORCHESTRATOR", "Using reasoning engine", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	ledger := escalation.NewLedger(uowFactory, cfg.Database.Timeout, sysLogger)

	orch := orchestrator.New(intent, engine, ledger, c.Publisher, orchestrator.Config{
		Cooldown:     cfg.Escalation.Cooldown,
		StrictDedupe: cfg.Escalation.StrictDedupe,
		Temperature:  cfg.Ai.Temperature,
		Timeout:      cfg.Ai.Timeout,
	}, sysLogger, m)

	// 5. Services & Controllers
	chatbotService := service.NewChatbotService(
		sessions,
		orch,
		ledger,
		cfg.Session.TTL,
		cfg.Session.StoreTimeout,
		sysLogger,
	)
	c.ChatbotController = controller.NewChatbotController(chatbotService, sysLogger)

	return c, nil
}

// Start launches the background workers. They outlive ctx and stop only in
// Shutdown, after the publish queue has drained.
func (c *Container) Start(ctx context.Context) error {
	bg, stop := context.WithCancel(context.WithoutCancel(ctx))
	c.stopBackground = stop

	c.Publisher.Start(bg)
	if c.ConsumerService != nil {
		if err := c.ConsumerService.Consume(bg); err != nil {
			return fmt.Errorf("failed to start ticket consumer: %w", err)
		}
	}
	return nil
}

// Shutdown drains the publish queue until ctx expires and then releases
// connections in reverse order of creation.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error
	if err := c.Publisher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	if c.stopBackground != nil {
		c.stopBackground()
	}
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
