package pipeline

import (
	"context"
	"strings"

	"estatebot/internal/domain"
)

const generalSystemPrompt = `You are a friendly assistant for a real-estate
agent's WhatsApp workflow. You help the agent add listings, register seekers,
search records, and find matches. Answer briefly (a few sentences), in the
language the agent writes in, and when in doubt point them at what you can
do: add a listing, add a seeker, search, find matches.`

// General is the single-step conversational pipeline. Greetings, thanks, and
// help requests get canned replies; anything else goes to the provider with
// recent history for context. It persists nothing, and it never fails: if the
// provider is down the fallback text still answers.
func (p *Pipelines) General(msg domain.InboundMessage) []Step {
	d := p.deps
	return []Step{
		{
			ID: StepReply,
			Run: func(ctx context.Context, pc *Context) (any, error) {
				if reply, ok := cannedReply(msg.Content); ok {
					return reply, nil
				}

				messages := []domain.ChatMessage{{Role: "system", Content: generalSystemPrompt}}
				if history, err := d.Store.RecentConversation(ctx, msg.SenderID, 10); err == nil {
					for _, h := range history {
						messages = append(messages, domain.ChatMessage{Role: h.Role, Content: h.Content})
					}
				}
				messages = append(messages, domain.ChatMessage{Role: "user", Content: msg.Content})

				resp, err := d.Provider.Chat(ctx, domain.ChatRequest{
					Messages:    messages,
					Model:       d.Model,
					MaxTokens:   512,
					Temperature: 0.7,
				})
				if err != nil || strings.TrimSpace(resp.Content) == "" {
					if err != nil {
						d.Logger.Warn("general reply provider failed, using fallback", "err", err)
					}
					return fallbackReply, nil
				}
				return resp.Content, nil
			},
		},
	}
}

const helpReply = `I'm your real-estate assistant. I can:
🏠 add a listing - "3-room apartment in Tel Aviv, Dizengoff 102, 5000 for rent"
📝 register a seeker - "new client Yaniv, looking for 2-3 rooms up to 6000 in Tel Aviv"
🔍 search - "show me listings on Dizengoff"
✨ find matches - "what fits Yaniv" or "who fits listing 12"

Send /reset to clear our conversation history.`

const greetingReply = "Hi! 👋 I'm your real-estate assistant.\n\n" + helpReply

const thanksReply = "Happy to help! 😊 I'm here whenever you need to add a listing, register a seeker, search, or find matches."

const ackReply = `Glad to! To continue, tell me what you'd like:
🔍 search listings - "show me listings in [city/street]"
📝 see a record - "show me listing [number]"
✨ find matches - "who fits listing [number]"`

const fallbackReply = "I didn't quite catch that. 🤔\n\n" + helpReply

var (
	greetingWords = []string{"hello", "hi", "hey", "shalom", "good morning", "good evening", "שלום", "היי", "בוקר טוב", "ערב טוב"}
	helpWords     = []string{"help", "what can you", "how do", "עזרה", "מה אתה יכול", "איך"}
	thanksWords   = []string{"thanks", "thank you", "great", "awesome", "תודה", "מעולה", "אחלה"}
	ackWords      = []string{"yes", "no", "ok", "okay", "sure", "fine", "כן", "לא", "אוקי", "בסדר", "טוב", "יאללה"}
)

// cannedReply answers the short conversational messages that don't warrant a
// provider round-trip. Exact-match acknowledgements first so "ok" is not
// hijacked by a substring match.
func cannedReply(text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return fallbackReply, true
	}
	for _, w := range ackWords {
		if lower == w {
			return ackReply, true
		}
	}
	for _, w := range greetingWords {
		if strings.Contains(lower, w) {
			return greetingReply, true
		}
	}
	for _, w := range helpWords {
		if strings.Contains(lower, w) {
			return helpReply, true
		}
	}
	for _, w := range thanksWords {
		if strings.Contains(lower, w) {
			return thanksReply, true
		}
	}
	return "", false
}
