package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"support-chatbot-be/internal/config"
	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/internal/service"
	"support-chatbot-be/pkg/events"
	pktNats "support-chatbot-be/pkg/nats"

	"github.com/fatih/color"
)

const durableName = "ticket-consumer"

// ticket-consumer is a downstream example: it reads escalation tickets from
// JetStream, drops redeliveries by ticket id and prints the rest.
func main() {
	cfg := config.Load()
	if cfg.App.NatsURL == "" {
		log.Fatal("Error: NATS_URL is not set")
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer func() { _ = sysLogger.Sync() }()

	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Fatalf("Error: Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	consumer := service.NewConsumerService(nil, "", printTicket, 0, sysLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subject := cfg.App.TicketSubjectPrefix + ".>"
	cc, err := sub.Subscribe(ctx, cfg.App.TicketStream, subject, durableName, func(ctx context.Context, msg pktNats.Message) error {
		if msg.EventType != "" && msg.EventType != events.TicketRecordedType {
			return nil
		}
		duplicate, err := consumer.Handle(ctx, msg.MsgID, msg.Data)
		if duplicate {
			color.HiBlack("skip  %s (delivery %d)", msg.MsgID, msg.NumDelivered)
		}
		return err
	})
	if err != nil {
		log.Fatalf("Error: Failed to subscribe: %v", err)
	}
	defer cc.Stop()

	color.Cyan("Listening for tickets on %s (stream %s)", subject, cfg.App.TicketStream)
	<-ctx.Done()
	color.Yellow("Stopping ticket consumer")
}

func printTicket(_ context.Context, t events.TicketPayload) error {
	label := "-"
	if t.Label != nil {
		label = *t.Label
	}
	if t.Escalated {
		color.Red("ESCALATED #%d user=%s reason=%s label=%s", t.ID, t.UserID, t.Reason, label)
	} else {
		color.Green("audit     #%d user=%s label=%s", t.ID, t.UserID, label)
	}
	color.White("  %s", t.Message)
	return nil
}
