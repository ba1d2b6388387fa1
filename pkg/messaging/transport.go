package messaging

import (
	"context"
	"log"
	"strings"
	"sync"
)

// Transport delivers a text message to a phone address.
type Transport interface {
	// Send delivers body to the bare phone number to. Any error means the
	// message was not delivered.
	Send(ctx context.Context, to, body string) error
}

// WhatsAppPrefix is the channel prefix Twilio puts on WhatsApp addresses.
const WhatsAppPrefix = "whatsapp:"

// StripChannel removes a channel prefix such as "whatsapp:" from an address.
func StripChannel(address string) string {
	return strings.TrimPrefix(strings.TrimSpace(address), WhatsAppPrefix)
}

// LogTransport writes messages to the log instead of sending them. Used when
// no Twilio credentials are configured.
type LogTransport struct{}

func NewLogTransport() *LogTransport {
	return &LogTransport{}
}

func (t *LogTransport) Send(ctx context.Context, to, body string) error {
	log.Printf("[Messaging] (log) to=%s body=%q", to, body)
	return nil
}

// Message is a send captured by a Recorder.
type Message struct {
	To   string
	Body string
}

// Recorder keeps every message in memory. Fail, when set, decides per
// recipient whether the send returns an error.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Fail     func(to string) error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(ctx context.Context, to, body string) error {
	if r.Fail != nil {
		if err := r.Fail(to); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{To: to, Body: body})
	return nil
}

// Messages returns a copy of the delivered messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// To returns the bodies delivered to one recipient.
func (r *Recorder) To(phone string) []string {
	var bodies []string
	for _, m := range r.Messages() {
		if m.To == phone {
			bodies = append(bodies, m.Body)
		}
	}
	return bodies
}
