package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"estatebot/internal/domain"
)

func newTestBus(size int) *InMemoryBus {
	return New(size, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishSubscribe(t *testing.T) {
	b := newTestBus(10)
	defer b.Close()

	b.Publish(domain.InboundMessage{Channel: "whatsapp", Content: "hello"})

	select {
	case msg := <-b.Subscribe():
		if msg.Content != "hello" {
			t.Errorf("Content = %q, want hello", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestPublishIsNonBlockingWithBuffer(t *testing.T) {
	b := newTestBus(5)
	defer b.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			b.Publish(domain.InboundMessage{Content: "m"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with free buffer space")
	}
}

func TestSendOutboundRoutesToHandler(t *testing.T) {
	b := newTestBus(1)
	defer b.Close()

	got := make(chan domain.OutboundMessage, 1)
	b.OnOutbound("telegram", func(msg domain.OutboundMessage) {
		got <- msg
	})

	b.SendOutbound(domain.OutboundMessage{Channel: "telegram", ChatID: "42", Content: "reply"})

	select {
	case msg := <-got:
		if msg.ChatID != "42" {
			t.Errorf("ChatID = %q, want 42", msg.ChatID)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound handler not invoked")
	}

	// Unknown channel is dropped without panic.
	b.SendOutbound(domain.OutboundMessage{Channel: "nowhere", Content: "lost"})
}

func TestPublishAfterCloseDoesNotPanic(t *testing.T) {
	b := newTestBus(1)
	b.Close()
	b.Publish(domain.InboundMessage{Content: "late"})
	b.Close() // double close is safe
}

func TestSubscribeChannelClosesOnClose(t *testing.T) {
	b := newTestBus(1)
	inbound := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-inbound:
		if ok {
			t.Fatal("received a message from a closed bus")
		}
	case <-time.After(time.Second):
		t.Fatal("subscribe channel not closed")
	}
}
