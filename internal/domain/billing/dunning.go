package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// DunningLevel is the escalation stage of an overdue invoice.
// The level is a pure function of days overdue, recomputed on every read;
// no transitions are stored.
type DunningLevel int

const (
	DunningLevelNone         DunningLevel = 0 // 0-13 days, no action
	DunningLevelReminder     DunningLevel = 1 // 14-29 days, first reminder
	DunningLevelSecondNotice DunningLevel = 2 // 30-44 days, second reminder
	DunningLevelFinalNotice  DunningLevel = 3 // >=45 days, final notice / legal escalation
)

// Days-overdue thresholds for the dunning stages
const (
	dunningReminderDays     = 14
	dunningSecondNoticeDays = 30
	dunningFinalNoticeDays  = 45
)

// DefaultAnnualInterestRate is the statutory default interest rate in percent
// per year (ABGB §1333), applied unless a contractual rate is supplied.
var DefaultAnnualInterestRate = decimal.NewFromInt(4)

// DunningLevelForDays derives the dunning level from days overdue
func DunningLevelForDays(daysOverdue int) DunningLevel {
	switch {
	case daysOverdue >= dunningFinalNoticeDays:
		return DunningLevelFinalNotice
	case daysOverdue >= dunningSecondNoticeDays:
		return DunningLevelSecondNotice
	case daysOverdue >= dunningReminderDays:
		return DunningLevelReminder
	default:
		return DunningLevelNone
	}
}

// String returns a human-readable stage name
func (l DunningLevel) String() string {
	switch l {
	case DunningLevelReminder:
		return "FIRST_REMINDER"
	case DunningLevelSecondNotice:
		return "SECOND_REMINDER"
	case DunningLevelFinalNotice:
		return "FINAL_NOTICE"
	default:
		return "NONE"
	}
}

// CalculateInterest computes simple default interest on an overdue principal:
// principal x (annualRate/365/100) x daysOverdue, rounded to the cent.
// Zero principal or zero days yields zero interest.
func CalculateInterest(principal valueobject.Money, annualRatePercent decimal.Decimal, daysOverdue int) (valueobject.Money, error) {
	if principal.Amount().IsNegative() {
		return valueobject.Money{}, shared.NewDomainError("INVALID_PRINCIPAL", "Principal cannot be negative")
	}
	if annualRatePercent.IsNegative() {
		return valueobject.Money{}, shared.NewDomainError("INVALID_RATE", "Interest rate cannot be negative")
	}
	if daysOverdue < 0 {
		return valueobject.Money{}, shared.NewDomainError("INVALID_DAYS", "Days overdue cannot be negative")
	}
	if principal.IsZero() || daysOverdue == 0 || annualRatePercent.IsZero() {
		return valueobject.Zero(principal.Currency()), nil
	}

	interest := principal.
		Multiply(annualRatePercent).
		Multiply(decimal.NewFromInt(int64(daysOverdue)))
	interest, err := interest.Divide(decimal.NewFromInt(36500))
	if err != nil {
		return valueobject.Money{}, err
	}
	return interest.RoundCents(), nil
}

// DunningAssessment is the recomputed dunning state of one overdue invoice
type DunningAssessment struct {
	InvoiceID     uuid.UUID          `json:"invoice_id"`
	InvoiceNumber string             `json:"invoice_number"`
	LesseeID      uuid.UUID          `json:"lessee_id"`
	Period        valueobject.Period `json:"period"`
	DaysOverdue   int                `json:"days_overdue"`
	Level         DunningLevel       `json:"level"`
	Principal     decimal.Decimal    `json:"principal"`
	Interest      decimal.Decimal    `json:"interest"`
}

// AssessInvoice recomputes dunning level and default interest for one invoice
// at the given reference time. Invoices that are not overdue yield a
// level-zero assessment with zero interest.
func AssessInvoice(inv *Invoice, now time.Time, annualRatePercent decimal.Decimal) (*DunningAssessment, error) {
	if inv == nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice cannot be nil")
	}
	if annualRatePercent.IsZero() {
		annualRatePercent = DefaultAnnualInterestRate
	}

	days := inv.DaysOverdue(now)
	principal := inv.Outstanding()

	interest, err := CalculateInterest(valueobject.NewMoneyEUR(principal), annualRatePercent, days)
	if err != nil {
		return nil, err
	}

	return &DunningAssessment{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		LesseeID:      inv.LesseeID,
		Period:        inv.Period,
		DaysOverdue:   days,
		Level:         DunningLevelForDays(days),
		Principal:     principal,
		Interest:      interest.Amount(),
	}, nil
}
