package domain

// MessageBus decouples the channel adapters from message processing. Inbound
// publishing must return quickly so channel acknowledgments are never held up
// by pipeline work.
type MessageBus interface {
	Publish(msg InboundMessage)
	Subscribe() <-chan InboundMessage
	SendOutbound(msg OutboundMessage)
	OnOutbound(channelName string, handler func(OutboundMessage))
	Close()
}
