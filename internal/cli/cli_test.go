package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chamahub/backend/internal/app"
	"github.com/chamahub/backend/internal/bot"
	"github.com/chamahub/backend/internal/config"
	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/internal/repository/memory"
	"github.com/chamahub/backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t         *testing.T
	app       *app.App
	transport *messaging.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		StoreDriver:   config.DriverMemory,
		StoreTimeout:  time.Second,
		JWTSecret:     "test-secret",
		AdminEmail:    "admin@chama.test",
		AdminPassword: "pw",
		ReportsDir:    t.TempDir(),
		BackupDir:     t.TempDir(),
		Timezone:      time.UTC,
	}
	rec := messaging.NewRecorder()
	a, err := app.New(context.Background(), cfg, memory.New(), app.WithTransport(rec))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return &harness{t: t, app: a, transport: rec}
}

// run executes one chamactl invocation and returns its stdout.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root := NewRootCmd(func(context.Context) (*app.App, error) { return h.app, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func TestMemberCommands(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("member", "add", "254700000001", "Jane", "Wanjiku", "--balance", "1500")
	assert.Contains(t, out, "Member added: Jane Wanjiku (254700000001), balance KES 1,500")

	_, err := h.run("member", "add", "254700000001", "Jane")
	assert.True(t, domain.IsKind(err, domain.KindAlreadyExists))

	_, err = h.run("member", "add", "254700000002", "Bob", "--balance", "lots")
	assert.EqualError(t, err, `invalid balance "lots"`)

	h.mustRun("member", "rename", "254700000001", "Jane", "W.")
	h.mustRun("member", "status", "254700000001", "inactive")

	out = h.mustRun("member", "list")
	assert.Contains(t, out, "PHONE")
	assert.Contains(t, out, "Jane W.")
	assert.Contains(t, out, "inactive")
	assert.Contains(t, out, "Never")

	h.mustRun("member", "delete", "254700000001")
	out = h.mustRun("member", "list")
	assert.Contains(t, out, "No members found")

	_, err = h.run("member", "delete", "254700000001")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestPaymentCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("member", "add", "254700000001", "Jane", "--balance", "1000")

	out := h.mustRun("pay", "254700000001", "500")
	assert.Contains(t, out, "New balance: KES 1,500")

	out = h.mustRun("pay", "254700000001", "200", "--type", "fine", "--description", "Late")
	assert.Contains(t, out, "(fine)")
	assert.Contains(t, out, "New balance: KES 1,500", "non-contributions do not move the balance")

	_, err := h.run("pay", "254700000001", "abc")
	assert.Error(t, err)

	_, err = h.run("pay", "254700000009", "100")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	out = h.mustRun("payments", "--phone", "254700000001")
	assert.Contains(t, out, "Late")
	assert.Contains(t, out, "500.00")

	out = h.mustRun("summary")
	assert.Contains(t, out, "Total contributions:   KES 500.00")
	assert.Contains(t, out, "Contribution payments: 1")

	out = h.mustRun("verify", "254700000001")
	assert.Contains(t, out, "Balance is consistent")
}

func TestSubscribeAndBillingJob(t *testing.T) {
	h := newHarness(t)
	h.mustRun("member", "add", "254700000001", "Jane", "--balance", "1000")

	out := h.mustRun("subscribe", "254700000001", "PREMIUM")
	assert.Contains(t, out, "set to premium")

	_, err := h.run("subscribe", "254700000001", "gold")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	out = h.mustRun("job", "list")
	for _, name := range []string{"billing_sweep", "daily_backup", "reminder_sweep", "weekly_reports"} {
		assert.Contains(t, out, name)
	}

	out = h.mustRun("job", "run", "billing_sweep")
	assert.Contains(t, out, "billing_sweep finished: 1")

	m, err := h.app.Ledger.GetMember(context.Background(), "254700000001")
	require.NoError(t, err)
	assert.Equal(t, "700", m.Balance.String())
	assert.Len(t, h.transport.To("254700000001"), 1)

	_, err = h.run("job", "run", "nope")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestReportCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("member", "add", "254700000001", "Jane", "--balance", "1000")
	h.mustRun("pay", "254700000001", "250")

	for _, args := range [][]string{
		{"report", "statement", "254700000001"},
		{"report", "monthly", "--year", "2025", "--month", "6"},
		{"report", "overview"},
		{"report", "csv", "payments"},
	} {
		out := h.mustRun(args...)
		require.True(t, strings.HasPrefix(out, "Report generated: "), out)
		path := strings.TrimSpace(strings.TrimPrefix(out, "Report generated: "))
		assert.Equal(t, h.app.Reports.Dir(), filepath.Dir(path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}

	_, err := h.run("report", "monthly", "--month", "13")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = h.run("report", "csv", "loans")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestMessageAndBotCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("member", "add", "254700000001", "Jane")
	h.mustRun("member", "add", "254700000002", "Bob")

	out := h.mustRun("message", "Meeting", "on", "Saturday")
	assert.Contains(t, out, "Sent: 2, failed: 0")
	assert.Equal(t, []string{"Meeting on Saturday"}, h.transport.To("254700000002"))

	out = h.mustRun("message", "--phone", "254700000001", "Hi")
	assert.Contains(t, out, "Sent: 1")

	out = h.mustRun("bot", "254700000001", "BALANCE")
	assert.Equal(t, bot.ReplySubscribeFirst+"\n", out)

	h.mustRun("subscribe", "254700000001", "basic")
	out = h.mustRun("bot", "254700000001", "PAY", "300")
	assert.Equal(t, "Payment of KES 300 recorded. New balance: KES 300\n", out)
}

func TestOpenerFailure(t *testing.T) {
	root := NewRootCmd(func(context.Context) (*app.App, error) { return nil, errors.New("store unavailable") })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"member", "list"})
	assert.EqualError(t, root.ExecuteContext(context.Background()), "store unavailable")
}
