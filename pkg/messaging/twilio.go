package messaging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("messaging: transport temporarily unavailable")

// messageCreator is the part of the Twilio REST API the transport uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioConfig configures the WhatsApp transport.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string  // bare sender number
	RatePerSec float64 // outbound sends per second, 0 for the default
}

// TwilioTransport sends WhatsApp messages through the Twilio API. Sends are
// throttled and guarded by a circuit breaker so a Twilio outage fails fast
// during a sweep.
type TwilioTransport struct {
	api     messageCreator
	from    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
}

// NewTwilioTransport creates a transport using the given credentials.
func NewTwilioTransport(cfg TwilioConfig) *TwilioTransport {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioTransport(client.Api, cfg.From, cfg.RatePerSec)
}

func newTwilioTransport(api messageCreator, from string, ratePerSec float64) *TwilioTransport {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}

	settings := gobreaker.Settings{
		Name:        "twilio",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[Messaging] Circuit %s: %s -> %s", name, from, to)
		},
	}

	return &TwilioTransport{
		api:     api,
		from:    StripChannel(from),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		breaker: gobreaker.NewCircuitBreaker[string](settings),
	}
}

func (t *TwilioTransport) Send(ctx context.Context, to, body string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(WhatsAppPrefix + t.from)
	params.SetTo(WhatsAppPrefix + StripChannel(to))
	params.SetBody(body)

	sid, err := t.breaker.Execute(func() (string, error) {
		resp, err := t.api.CreateMessage(params)
		if err != nil {
			return "", err
		}
		if resp.Sid == nil {
			return "", nil
		}
		return *resp.Sid, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("send to %s: %w", to, ErrUnavailable)
		}
		return fmt.Errorf("send to %s: %w", to, err)
	}

	log.Printf("[Messaging] Sent to %s (sid=%s)", to, sid)
	return nil
}
