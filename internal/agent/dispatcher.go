package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"estatebot/internal/domain"
	"estatebot/internal/metrics"
)

const (
	defaultConcurrency = 3
	historyLimit       = 10
)

// Dispatcher consumes the inbound bus and fans messages out to the
// orchestrator with bounded concurrency. Replies go back out on the bus;
// the conversation log is written around each exchange.
type Dispatcher struct {
	orchestrator *Orchestrator
	bus          domain.MessageBus
	store        domain.RecordStore
	logger       *slog.Logger
	concurrency  int
}

// DispatcherConfig holds the dispatcher's collaborators.
type DispatcherConfig struct {
	Orchestrator *Orchestrator
	Bus          domain.MessageBus
	Store        domain.RecordStore
	Logger       *slog.Logger
	Concurrency  int
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		orchestrator: cfg.Orchestrator,
		bus:          cfg.Bus,
		store:        cfg.Store,
		logger:       cfg.Logger,
		concurrency:  cfg.Concurrency,
	}
}

// Run consumes inbound messages until the context ends or the bus closes.
// Each message is processed on its own goroutine; the semaphore caps how many
// run at once.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started", "concurrency", d.concurrency)

	sem := make(chan struct{}, d.concurrency)
	inbound := d.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				d.logger.Info("inbound channel closed, dispatcher stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				metrics.ActiveWorkers.Inc()
				defer metrics.ActiveWorkers.Dec()
				d.handle(ctx, m)
			}(msg)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg domain.InboundMessage) {
	metrics.MessagesTotal.Inc()
	d.logger.Info("processing message",
		"channel", msg.Channel,
		"sender", msg.SenderID,
		"content_len", len(msg.Content),
		"attachments", len(msg.Attachments),
	)

	if reply, ok := d.command(ctx, msg); ok {
		d.bus.SendOutbound(domain.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: reply,
		})
		metrics.RepliesTotal.Inc()
		return
	}

	d.logConversation(ctx, msg.SenderID, "user", msg.Content)

	reply := d.orchestrator.Process(ctx, msg)

	d.logConversation(ctx, msg.SenderID, "assistant", reply)

	d.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	})
	metrics.RepliesTotal.Inc()
}

// command handles the bot's slash commands, which bypass intent
// classification and never enter the conversation history.
func (d *Dispatcher) command(ctx context.Context, msg domain.InboundMessage) (string, bool) {
	if d.store == nil {
		return "", false
	}
	switch strings.ToLower(strings.TrimSpace(msg.Content)) {
	case "/reset":
		if err := d.store.ClearConversation(ctx, msg.SenderID); err != nil {
			d.logger.Warn("failed to clear conversation", "sender", msg.SenderID, "err", err)
			return "Couldn't clear our conversation history, please try again.", true
		}
		return "Done, I've cleared our conversation history. Fresh start! 🧹", true
	case "/history":
		n, err := d.store.ConversationCount(ctx, msg.SenderID)
		if err != nil {
			d.logger.Warn("failed to count conversation", "sender", msg.SenderID, "err", err)
			return "Couldn't look up our conversation history right now.", true
		}
		return fmt.Sprintf("We have %d message(s) on record. Send /reset to start over.", n), true
	}
	return "", false
}

// logConversation is best-effort: the reply still goes out if the history
// write fails.
func (d *Dispatcher) logConversation(ctx context.Context, phone, role, content string) {
	if d.store == nil || content == "" {
		return
	}
	err := d.store.AppendConversation(ctx, &domain.ConversationEntry{
		Phone:     phone,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		d.logger.Warn("failed to record conversation entry", "role", role, "err", err)
	}
}

// ProcessDirect runs a message synchronously and returns the reply. Used by
// the CLI channel and the chat command.
func (d *Dispatcher) ProcessDirect(ctx context.Context, content, channel, chatID string) string {
	msg := domain.InboundMessage{
		Channel:   channel,
		ChatID:    chatID,
		SenderID:  chatID,
		Content:   content,
		Timestamp: time.Now(),
	}
	metrics.MessagesTotal.Inc()
	if reply, ok := d.command(ctx, msg); ok {
		metrics.RepliesTotal.Inc()
		return reply
	}
	d.logConversation(ctx, msg.SenderID, "user", msg.Content)
	reply := d.orchestrator.Process(ctx, msg)
	d.logConversation(ctx, msg.SenderID, "assistant", reply)
	metrics.RepliesTotal.Inc()
	return reply
}
