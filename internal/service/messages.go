package service

import (
	"fmt"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func planTitle(plan string) string {
	return cases.Title(language.English).String(plan)
}

// ReminderMessage is the weekly balance reminder.
func ReminderMessage(m *domain.Member) string {
	last := "Never"
	if m.LastPayment != nil {
		last = m.LastPayment.Format("2006-01-02")
	}
	return fmt.Sprintf("Hi %s! 🏦\n\n"+
		"Weekly Chama reminder:\n"+
		"💰 Current balance: KES %s\n"+
		"📅 Last payment: %s\n\n"+
		"Reply 'PAY <amount>' to contribute.\n"+
		"Reply 'BALANCE' to check your balance.",
		m.Name, domain.Shillings(m.Balance), last)
}

// BillingConfirmation tells a member their subscription fee was charged.
func BillingConfirmation(name, plan string, fee, balance decimal.Decimal) string {
	return fmt.Sprintf("Hi %s! 📋\n\n"+
		"Monthly subscription processed:\n"+
		"💳 Plan: %s\n"+
		"💰 Fee: KES %s\n"+
		"💰 New balance: KES %s\n\n"+
		"Thank you for your continued membership!",
		name, planTitle(plan), domain.Shillings(fee), domain.Shillings(balance))
}

// BillingWarning tells a member their balance does not cover the fee.
func BillingWarning(name, plan string, fee, balance decimal.Decimal) string {
	return fmt.Sprintf("Hi %s! ⚠️\n\n"+
		"Insufficient balance for monthly subscription:\n"+
		"💳 Plan: %s\n"+
		"💰 Required: KES %s\n"+
		"💰 Current balance: KES %s\n\n"+
		"Please top up your balance to continue your subscription.",
		name, planTitle(plan), domain.Shillings(fee), domain.Shillings(balance))
}

// WeeklyReportMessage announces a generated premium statement.
func WeeklyReportMessage(m *domain.Member, at time.Time) string {
	return fmt.Sprintf("Hi %s! 📊\n\n"+
		"Your weekly Chama report is ready!\n"+
		"💰 Current balance: KES %s\n"+
		"📄 Report generated: %s\n\n"+
		"Access your detailed report on the dashboard.",
		m.Name, domain.Shillings(m.Balance), at.Format("2006-01-02"))
}
