// Package channel holds the transports that feed the message bus: the Twilio
// WhatsApp webhook, Telegram polling, and a terminal REPL.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"estatebot/internal/config"
	"estatebot/internal/domain"
	"estatebot/internal/metrics"
)

const (
	twilioAPIBase = "https://api.twilio.com/2010-04-01"

	// WhatsApp caps a single message body at 1600 characters.
	whatsappMaxMsgLen = 1600
)

// WhatsApp implements domain.Channel over Twilio's WhatsApp API: inbound
// messages arrive as form-encoded webhooks, outbound ones go through the
// Messages REST endpoint. The webhook handler acknowledges immediately and
// lets the bus deliver the reply later.
type WhatsApp struct {
	cfg     config.WhatsAppConfig
	bus     domain.MessageBus
	logger  *slog.Logger
	client  *http.Client
	server  *http.Server
	metrics bool
}

type WhatsAppChannelConfig struct {
	Config       config.WhatsAppConfig
	Logger       *slog.Logger
	ServeMetrics bool
}

func NewWhatsApp(cfg WhatsAppChannelConfig) *WhatsApp {
	return &WhatsApp{
		cfg:     cfg.Config,
		logger:  cfg.Logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		metrics: cfg.ServeMetrics,
	}
}

func (w *WhatsApp) Name() string { return "whatsapp" }

// Start registers the outbound handler and serves the webhook until the
// context ends.
func (w *WhatsApp) Start(ctx context.Context, bus domain.MessageBus) error {
	w.bus = bus

	bus.OnOutbound("whatsapp", func(msg domain.OutboundMessage) {
		if err := w.sendMessage(ctx, msg.ChatID, msg.Content); err != nil {
			w.logger.Error("whatsapp send failed", "err", err, "chat", msg.ChatID)
		}
	})

	webhookPath := w.cfg.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhook"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+webhookPath, w.handleIncoming)
	mux.HandleFunc("GET /health", w.handleHealth)
	if w.metrics {
		mux.Handle("GET /metrics", metrics.Collector.Handler())
	}

	addr := fmt.Sprintf("%s:%d", w.cfg.Host, w.cfg.Port)
	w.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	w.logger.Info("whatsapp webhook listening", "addr", addr, "path", webhookPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("whatsapp webhook server: %w", err)
	}
}

func (w *WhatsApp) Stop() error { return nil }

func (w *WhatsApp) Send(ctx context.Context, chatID string, content string) error {
	return w.sendMessage(ctx, chatID, content)
}

// handleIncoming parses a Twilio form webhook, publishes the message, and
// acknowledges with 200 right away. Delivery and status callbacks carry no
// body or media and are ignored.
func (w *WhatsApp) handleIncoming(rw http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.logger.Warn("whatsapp bad webhook form", "err", err)
		http.Error(rw, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := strings.TrimSpace(r.FormValue("Body"))
	attachments := parseMediaParams(r.Form)

	if from == "" || (body == "" && len(attachments) == 0) {
		rw.WriteHeader(http.StatusOK)
		return
	}

	w.logger.Info("whatsapp message received",
		"from", stripWhatsAppPrefix(from),
		"text_len", len(body),
		"media", len(attachments),
	)

	msg := domain.InboundMessage{
		Channel:     "whatsapp",
		ChatID:      from,
		SenderID:    stripWhatsAppPrefix(from),
		Content:     body,
		Attachments: attachments,
		Timestamp:   time.Now(),
	}
	// Publish off the request goroutine: a saturated bus blocks its publisher
	// until the bus timeout, and the ack must not wait on that.
	go w.bus.Publish(msg)

	// Empty TwiML: nothing to say yet, the reply is sent asynchronously.
	rw.Header().Set("Content-Type", "text/xml")
	rw.WriteHeader(http.StatusOK)
	fmt.Fprint(rw, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
}

func (w *WhatsApp) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(rw, `{"status":"ok","uptime_seconds":%d}`, int64(metrics.Collector.Uptime().Seconds()))
}

// parseMediaParams collects MediaUrl0..N / MediaContentType0..N pairs.
func parseMediaParams(form url.Values) []domain.Attachment {
	n, err := strconv.Atoi(form.Get("NumMedia"))
	if err != nil || n <= 0 {
		return nil
	}
	attachments := make([]domain.Attachment, 0, n)
	for i := 0; i < n; i++ {
		u := form.Get("MediaUrl" + strconv.Itoa(i))
		if u == "" {
			continue
		}
		attachments = append(attachments, domain.Attachment{
			URL:         u,
			ContentType: form.Get("MediaContentType" + strconv.Itoa(i)),
		})
	}
	return attachments
}

func stripWhatsAppPrefix(s string) string {
	return strings.TrimPrefix(s, "whatsapp:")
}

// sendMessage posts to the Twilio Messages endpoint, splitting long replies
// at newline boundaries to stay under the WhatsApp length cap.
func (w *WhatsApp) sendMessage(ctx context.Context, to, content string) error {
	if !strings.HasPrefix(to, "whatsapp:") {
		to = "whatsapp:" + to
	}

	for _, chunk := range splitMessage(content, whatsappMaxMsgLen) {
		if err := w.sendChunk(ctx, to, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (w *WhatsApp) sendChunk(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", twilioAPIBase, w.cfg.AccountSID)

	form := url.Values{}
	form.Set("From", w.cfg.FromNumber)
	form.Set("To", to)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	req.SetBasicAuth(w.cfg.AccountSID, w.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("twilio send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
