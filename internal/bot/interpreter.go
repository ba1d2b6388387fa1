// Package bot interprets inbound WhatsApp text commands against the ledger.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/chamahub/backend/internal/domain"
	"github.com/chamahub/backend/pkg/messaging"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ReplySubscribeFirst = "Please subscribe to use this service. Reply 'SUBSCRIBE' to join for KES 100/month."
	ReplyNotRegistered  = "You're not registered. Reply 'REGISTER <name>' to join."
	ReplyUnknown        = "Unknown command. Reply 'HELP' for available commands."
	ReplyInternal       = "Sorry, something went wrong. Please try again later."

	ReplyPayFormat  = "Invalid format. Use 'PAY <amount>' (e.g., PAY 500)"
	ReplyPayAmount  = "Invalid amount. Use 'PAY <amount>' (e.g., PAY 500)"
	ReplyPayNonPos  = "Amount must be greater than 0"
	ReplyPayFailed  = "Failed to record payment. Please try again."
	ReplyPayError   = "Error processing payment. Please try again."
	ReplyNameNeeded = "Please provide your name. Use 'REGISTER <name>' (e.g., REGISTER John Doe)"
	ReplyRegistered = "You're already registered. Reply 'BALANCE' to check your balance."
	ReplyRegError   = "Error during registration. Please try again."
	ReplySubscribed = "Subscribed to basic plan (KES 100/month). Reply 'REGISTER <name>' to start."
	ReplySubError   = "Error creating subscription. Please try again."
	ReplyPremium    = "You already have a premium subscription!"
	ReplyUpgrade    = "Upgrade to premium for PDF reports and advanced features. Premium plan: KES 300/month. Contact admin for upgrade."
	ReplyReportOK   = "PDF report generated and available on the dashboard."
	ReplyReportFail = "Failed to generate your report. Please try again later."
	ReplyReportUp   = "Upgrade to premium for PDF reports. Reply 'UPGRADE' to learn more."

	ReplyHelp = "Available commands:\n" +
		"• PAY <amount> - Record payment\n" +
		"• BALANCE - Check balance\n" +
		"• REGISTER <name> - Register as member\n" +
		"• SUBSCRIBE - Subscribe to basic plan\n" +
		"• UPGRADE - Learn about premium\n" +
		"• REPORT - Generate report (Premium)\n" +
		"• HELP - Show this message"
)

// Command keywords.
const (
	CmdPay       = "PAY"
	CmdBalance   = "BALANCE"
	CmdRegister  = "REGISTER"
	CmdSubscribe = "SUBSCRIBE"
	CmdUpgrade   = "UPGRADE"
	CmdReport    = "REPORT"
	CmdHelp      = "HELP"
	CmdUnknown   = "UNKNOWN"
	CmdGated     = "GATED"
)

// Ledger is the subset of the ledger operations the interpreter drives.
type Ledger interface {
	GetMember(ctx context.Context, phone string) (*domain.Member, error)
	CreateMember(ctx context.Context, phone, name string, initialBalance decimal.Decimal) (*domain.Member, error)
	AddPayment(ctx context.Context, phone string, amount decimal.Decimal, paymentType, description string) (*domain.Payment, decimal.Decimal, error)
	GetSubscription(ctx context.Context, phone string) (*domain.Subscription, error)
	CreateSubscription(ctx context.Context, phone, plan string) (*domain.Subscription, error)
}

// Reporter generates member statements for REPORT.
type Reporter interface {
	MemberStatement(ctx context.Context, phone string) (string, error)
}

// CommandRecorder observes handled commands.
type CommandRecorder interface {
	ObserveCommand(command string)
}

// Interpreter turns a sender and message body into a reply. Handle never
// fails; every error becomes a reply string.
type Interpreter struct {
	ledger   Ledger
	reports  Reporter
	recorder CommandRecorder
}

// NewInterpreter creates an Interpreter. reports may be nil.
func NewInterpreter(ledger Ledger, reports Reporter) *Interpreter {
	return &Interpreter{ledger: ledger, reports: reports}
}

// WithRecorder attaches a command observer.
func (i *Interpreter) WithRecorder(r CommandRecorder) *Interpreter {
	i.recorder = r
	return i
}

// Handle processes one inbound message.
func (i *Interpreter) Handle(ctx context.Context, sender, body string) (reply string) {
	phone := messaging.StripChannel(strings.TrimSpace(sender))
	command := CmdUnknown
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Bot] Panic handling message from %s: %v", phone, r)
			reply = ReplyInternal
		}
		if i.recorder != nil {
			i.recorder.ObserveCommand(command)
		}
	}()

	keyword, arg := parse(body)

	if _, err := i.ledger.GetSubscription(ctx, phone); err != nil {
		if !domain.IsKind(err, domain.KindNotFound) {
			log.Printf("[Bot] Subscription lookup for %s failed: %v", phone, err)
			return ReplyInternal
		}
		if keyword != CmdSubscribe || arg != "" {
			command = CmdGated
			return ReplySubscribeFirst
		}
	}

	switch keyword {
	case CmdPay:
		command = CmdPay
		return i.pay(ctx, phone, arg)
	case CmdBalance:
		if arg != "" {
			break
		}
		command = CmdBalance
		return i.balance(ctx, phone)
	case CmdRegister:
		command = CmdRegister
		return i.register(ctx, phone, arg)
	case CmdSubscribe:
		if arg != "" {
			break
		}
		command = CmdSubscribe
		return i.subscribe(ctx, phone)
	case CmdUpgrade:
		if arg != "" {
			break
		}
		command = CmdUpgrade
		return i.upgrade(ctx, phone)
	case CmdReport:
		if arg != "" {
			break
		}
		command = CmdReport
		return i.report(ctx, phone)
	case CmdHelp:
		if arg != "" {
			break
		}
		command = CmdHelp
		return ReplyHelp
	}
	return ReplyUnknown
}

// parse upper-cases the first token as the keyword and returns the trimmed
// remainder in its original case.
func parse(body string) (keyword, arg string) {
	body = strings.TrimSpace(body)
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", ""
	}
	keyword = strings.ToUpper(fields[0])
	arg = strings.TrimSpace(body[len(fields[0]):])
	return keyword, arg
}

func (i *Interpreter) pay(ctx context.Context, phone, arg string) string {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return ReplyPayFormat
	}
	amount, err := decimal.NewFromString(fields[0])
	if err != nil || !domain.AmountInRange(amount) {
		return ReplyPayAmount
	}
	if !amount.IsPositive() {
		return ReplyPayNonPos
	}

	if _, err := i.ledger.GetMember(ctx, phone); err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return ReplyNotRegistered
		}
		log.Printf("[Bot] Member lookup for %s failed: %v", phone, err)
		return ReplyPayError
	}

	_, balance, err := i.ledger.AddPayment(ctx, phone, amount, domain.PaymentContribution, "")
	if err != nil {
		log.Printf("[Bot] Payment from %s failed: %v", phone, err)
		return ReplyPayFailed
	}
	log.Printf("[Bot] Recorded KES %s from %s", amount, phone)
	return fmt.Sprintf("Payment of KES %s recorded. New balance: KES %s", domain.Shillings(amount), domain.Shillings(balance))
}

func (i *Interpreter) balance(ctx context.Context, phone string) string {
	m, err := i.ledger.GetMember(ctx, phone)
	if err != nil {
		if !domain.IsKind(err, domain.KindNotFound) {
			log.Printf("[Bot] Member lookup for %s failed: %v", phone, err)
			return ReplyInternal
		}
		return ReplyNotRegistered
	}
	return fmt.Sprintf("Hi %s, your current balance is KES %s", m.Name, domain.Shillings(m.Balance))
}

func (i *Interpreter) register(ctx context.Context, phone, arg string) string {
	if arg == "" {
		return ReplyNameNeeded
	}
	name := cases.Title(language.English).String(arg)

	_, err := i.ledger.CreateMember(ctx, phone, name, decimal.Zero)
	switch {
	case err == nil:
		log.Printf("[Bot] Registered %s as %q", phone, name)
		return fmt.Sprintf("Welcome %s! You're registered. Reply 'PAY <amount>' to contribute.", name)
	case domain.IsKind(err, domain.KindAlreadyExists):
		return ReplyRegistered
	default:
		log.Printf("[Bot] Registration for %s failed: %v", phone, err)
		return ReplyRegError
	}
}

func (i *Interpreter) subscribe(ctx context.Context, phone string) string {
	if _, err := i.ledger.CreateSubscription(ctx, phone, domain.PlanBasic); err != nil {
		log.Printf("[Bot] Subscription for %s failed: %v", phone, err)
		return ReplySubError
	}
	return ReplySubscribed
}

func (i *Interpreter) isPremium(ctx context.Context, phone string) bool {
	sub, err := i.ledger.GetSubscription(ctx, phone)
	return err == nil && sub.IsPremium()
}

func (i *Interpreter) upgrade(ctx context.Context, phone string) string {
	if i.isPremium(ctx, phone) {
		return ReplyPremium
	}
	return ReplyUpgrade
}

func (i *Interpreter) report(ctx context.Context, phone string) string {
	if !i.isPremium(ctx, phone) {
		return ReplyReportUp
	}
	if i.reports != nil {
		path, err := i.reports.MemberStatement(ctx, phone)
		if err != nil {
			log.Printf("[Bot] Statement for %s failed: %v", phone, err)
			return ReplyReportFail
		}
		log.Printf("[Bot] Statement for %s written to %s", phone, path)
	}
	return ReplyReportOK
}
