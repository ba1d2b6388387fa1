package handler

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"
)

// Interpreter turns an inbound message into a reply.
type Interpreter interface {
	Handle(ctx context.Context, sender, body string) string
}

// WebhookHandler receives Twilio WhatsApp webhooks and answers with TwiML.
type WebhookHandler struct {
	bot       Interpreter
	validator *client.RequestValidator // nil disables signature checks
	baseURL   string
}

// NewWebhookHandler creates a WebhookHandler. When authToken is non-empty
// every request must carry a valid X-Twilio-Signature computed over
// baseURL plus the request URI.
func NewWebhookHandler(bot Interpreter, authToken, baseURL string) *WebhookHandler {
	h := &WebhookHandler{bot: bot, baseURL: strings.TrimRight(baseURL, "/")}
	if authToken != "" {
		v := client.NewRequestValidator(authToken)
		h.validator = &v
	}
	return h
}

// HandleWhatsApp handles POST /webhooks/whatsapp.
func (h *WebhookHandler) HandleWhatsApp(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}

	if h.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		if !h.validator.Validate(h.baseURL+r.URL.RequestURI(), params, r.Header.Get("X-Twilio-Signature")) {
			log.Printf("[Webhook] Rejected request with invalid signature (request=%s)", requestID(r))
			http.Error(w, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	from := r.PostForm.Get("From")
	if from == "" {
		http.Error(w, "Missing From", http.StatusBadRequest)
		return
	}

	reply := h.bot.Handle(r.Context(), from, r.PostForm.Get("Body"))

	doc, err := twiml.Messages([]twiml.Element{&twiml.MessagingMessage{Body: reply}})
	if err != nil {
		log.Printf("[Webhook] Failed to render TwiML: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
