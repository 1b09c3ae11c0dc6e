// Package intent maps raw message text to one of the bot's fixed intents.
// Classification goes through the language-model provider but enforces a
// strict output contract and fails closed: whatever goes wrong, the caller
// gets a valid intent, never an error.
package intent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"estatebot/internal/domain"
)

const classifyTimeout = 15 * time.Second

const systemPrompt = `You classify a real-estate agent's chat message.
The message may be in Hebrew or English. Reply with EXACTLY ONE of these
labels and nothing else:
- ADD_LISTING: the agent is describing a property to list (for rent or sale)
- ADD_SEEKER: the agent is registering a person looking for a property
- QUERY_LISTING: the agent wants to see existing listings
- QUERY_SEEKER: the agent wants to see registered seekers
- FIND_MATCHES: the agent wants matches for a specific listing or seeker
- GENERAL: greetings, thanks, help requests, or anything else`

// Classifier assigns an Intent to each inbound message.
type Classifier struct {
	provider domain.Provider
	model    string
	logger   *slog.Logger
}

func NewClassifier(provider domain.Provider, model string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{provider: provider, model: model, logger: logger}
}

// Classify returns the intent for the given text. Empty or whitespace-only
// text is GENERAL without touching the provider. Provider failures and
// out-of-contract labels also come back as GENERAL; classification must never
// abort message handling.
func (c *Classifier) Classify(ctx context.Context, text string, hasAttachments bool) domain.Intent {
	if strings.TrimSpace(text) == "" {
		return domain.IntentGeneral
	}

	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	user := text
	if hasAttachments {
		user += "\n\n[the message includes photo attachments]"
	}

	resp, err := c.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Model:     c.model,
		MaxTokens: 16,
	})
	if err != nil {
		c.logger.Warn("intent classification failed, defaulting to GENERAL", "err", err)
		return domain.IntentGeneral
	}

	it, ok := domain.ParseIntent(resp.Content)
	if !ok {
		c.logger.Warn("provider returned unknown intent label, defaulting to GENERAL",
			"label", strings.TrimSpace(resp.Content),
		)
		return domain.IntentGeneral
	}
	return it
}
