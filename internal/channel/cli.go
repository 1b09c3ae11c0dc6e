package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"estatebot/internal/domain"
)

// CLI implements domain.Channel for interactive terminal chat. Useful for
// trying the bot without wiring up Twilio or Telegram.
type CLI struct {
	bus    domain.MessageBus
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
}

type CLIChannelConfig struct {
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
}

func NewCLI(cfg CLIChannelConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &CLI{
		logger: cfg.Logger,
		in:     cfg.In,
		out:    cfg.Out,
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the REPL and blocks until EOF, /quit, or context cancellation.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus

	bus.OnOutbound("cli", func(msg domain.OutboundMessage) {
		_, _ = fmt.Fprintln(c.out, "\n--- EstateBot ---")
		_, _ = fmt.Fprintln(c.out, msg.Content)
		_, _ = fmt.Fprintln(c.out, "-----------------")
		_, _ = fmt.Fprint(c.out, "You> ")
	})

	_, _ = fmt.Fprintln(c.out, "EstateBot CLI. Describe a property, a seeker, or a search. /quit to exit.")
	_, _ = fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			return nil
		}

		c.bus.Publish(domain.InboundMessage{
			Channel:  "cli",
			ChatID:   "direct",
			SenderID: "cli-user",
			Content:  line,
		})
	}
}

func (c *CLI) Stop() error { return nil }

func (c *CLI) Send(ctx context.Context, chatID string, content string) error {
	_, err := fmt.Fprintln(c.out, content)
	return err
}
