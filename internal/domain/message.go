package domain

import "time"

// Attachment is a media reference delivered with an inbound message.
type Attachment struct {
	URL         string
	ContentType string
}

// InboundMessage is one message received from a chat channel. It is built by
// the channel adapter and never mutated after that.
type InboundMessage struct {
	Channel     string // source channel name ("whatsapp", "telegram", "cli")
	ChatID      string // conversation/reply target on that channel
	SenderID    string // opaque sender handle (phone number for whatsapp)
	Content     string
	Attachments []Attachment
	Timestamp   time.Time
}

// HasAttachments reports whether the message carried any media.
func (m InboundMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// OutboundMessage is a reply on its way back to a channel. Channels are
// responsible for splitting Content into transport-sized chunks.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}
