package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/chamahub/backend/internal/app"
	"github.com/chamahub/backend/internal/config"
	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/repository/memory"
	"github.com/chamahub/backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@chama.test"
	adminPassword = "s3cret"
	twilioToken   = "twilio-token"
	publicURL     = "https://chama.example"
)

type fixture struct {
	t         *testing.T
	router    *Router
	transport *messaging.Recorder
	token     string
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{
		StoreDriver:   config.DriverMemory,
		StoreTimeout:  time.Second,
		JWTSecret:     "test-secret",
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
		CORSOrigins:   []string{"http://localhost:3000"},
		ReportsDir:    t.TempDir(),
		BackupDir:     t.TempDir(),
		Timezone:      time.UTC,
		Twilio:        config.TwilioConfig{PublicBaseURL: publicURL},
	}
	if mutate != nil {
		mutate(cfg)
	}

	rec := messaging.NewRecorder()
	a, err := app.New(context.Background(), cfg, memory.New(), app.WithTransport(rec))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	rt := New(a)
	t.Cleanup(rt.Close)
	return &fixture{t: t, router: rt, transport: rec}
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) login() {
	f.t.Helper()
	rr := f.do(http.MethodPost, "/api/auth/login", map[string]string{"email": adminEmail, "password": adminPassword})
	require.Equal(f.t, http.StatusOK, rr.Code, rr.Body.String())
	var resp domain.LoginResponse
	require.NoError(f.t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(f.t, resp.Token)
	f.token = resp.Token
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func TestPublicRoutes(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = f.do(http.MethodGet, "/api/plans", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "premium")

	rr = f.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "chama_http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(http.MethodGet, "/api/members", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(http.MethodPost, "/api/auth/login", map[string]string{"email": adminEmail, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	f.login()
	rr = f.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var me domain.JWTClaims
	decode(t, rr, &me)
	assert.Equal(t, adminEmail, me.Sub)
}

func TestMemberLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.login()

	rr := f.do(http.MethodPost, "/api/members", map[string]interface{}{"phone": "254700000001", "name": "Alice", "balance": "1000"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(http.MethodPost, "/api/members", map[string]interface{}{"phone": "254700000001", "name": "Alice"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(http.MethodPatch, "/api/members/254700000001", map[string]interface{}{"name": "Alice W"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var m domain.Member
	decode(t, rr, &m)
	assert.Equal(t, "Alice W", m.Name)
	assert.Equal(t, "1000", m.Balance.String())

	rr = f.do(http.MethodPatch, "/api/members/254700000001", map[string]interface{}{"phone": "254799999999"})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "phone is not an updatable field")

	rr = f.do(http.MethodPost, "/api/payments", map[string]interface{}{"phone": "254700000001", "amount": 500})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		Balance string `json:"balance"`
	}
	decode(t, rr, &created)
	assert.Equal(t, "1500", created.Balance)

	rr = f.do(http.MethodGet, "/api/payments?phone=254700000001", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var payments []domain.PaymentView
	decode(t, rr, &payments)
	assert.NotEmpty(t, payments)

	rr = f.do(http.MethodGet, "/api/members/254700000001/verify", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var verify struct {
		Consistent bool `json:"consistent"`
	}
	decode(t, rr, &verify)
	assert.True(t, verify.Consistent)

	rr = f.do(http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodDelete, "/api/members/254700000001", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(http.MethodGet, "/api/members/254700000001", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPaymentForUnknownMember(t *testing.T) {
	f := newFixture(t, nil)
	f.login()

	rr := f.do(http.MethodPost, "/api/payments", map[string]interface{}{"phone": "254700000009", "amount": 100})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestJobsAndBroadcast(t *testing.T) {
	f := newFixture(t, nil)
	f.login()

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/members", map[string]interface{}{"phone": "254700000001", "name": "Alice", "balance": 1000}).Code)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/subscriptions", map[string]string{"phone": "254700000001", "plan": "basic"}).Code)

	rr := f.do(http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var jobs []domain.JobStatus
	decode(t, rr, &jobs)
	assert.Len(t, jobs, 4)

	rr = f.do(http.MethodPost, "/api/jobs/billing_sweep/run", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var run domain.JobRunResponse
	decode(t, rr, &run)
	assert.Equal(t, 1, run.Count)

	rr = f.do(http.MethodGet, "/api/members/254700000001", nil)
	var m domain.Member
	decode(t, rr, &m)
	assert.Equal(t, "900", m.Balance.String())

	rr = f.do(http.MethodPost, "/api/jobs/nope/run", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodPost, "/api/messages/broadcast", map[string]string{"message": "Meeting on Saturday"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var sent domain.BroadcastResponse
	decode(t, rr, &sent)
	assert.Equal(t, 1, sent.Sent)
	assert.Contains(t, f.transport.To("254700000001"), "Meeting on Saturday")
}

func TestReportsRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	f.login()
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/members", map[string]interface{}{"phone": "254700000001", "name": "Alice"}).Code)

	rr := f.do(http.MethodPost, "/api/reports", map[string]string{"type": "csv"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "csv needs a data kind")

	rr = f.do(http.MethodPost, "/api/reports", map[string]string{"type": "csv", "data": "members"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp domain.ReportResponse
	decode(t, rr, &resp)
	assert.True(t, strings.HasPrefix(resp.Filename, "members_export_"))

	rr = f.do(http.MethodGet, "/api/reports/"+resp.Filename, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), resp.Filename)
	assert.Contains(t, rr.Body.String(), "254700000001")

	rr = f.do(http.MethodGet, "/api/reports/missing.pdf", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func postForm(f *fixture, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

// sign computes X-Twilio-Signature: HMAC-SHA1 over the URL followed by the
// sorted form keys and values.
func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWhatsAppWebhook(t *testing.T) {
	f := newFixture(t, nil)

	rr := postForm(f, url.Values{"From": {"whatsapp:+254700000001"}, "Body": {"BALANCE"}}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/xml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<Response>")
	assert.Contains(t, rr.Body.String(), "<Message>")
	assert.Contains(t, rr.Body.String(), "Please subscribe to use this service.")

	rr = postForm(f, url.Values{"Body": {"HELP"}}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWhatsAppWebhookSignature(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Twilio.AuthToken = twilioToken
		cfg.Twilio.ValidateSignature = true
	})
	form := url.Values{"From": {"whatsapp:+254700000001"}, "Body": {"SUBSCRIBE"}}

	rr := postForm(f, form, "bogus")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = postForm(f, form, sign(twilioToken, publicURL+"/webhooks/whatsapp", form))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "<Message>")
}
