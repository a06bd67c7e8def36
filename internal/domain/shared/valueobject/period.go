package valueobject

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Period identifies a billing period (year, month). Invoices belong to
// exactly one period; payment allocation walks periods oldest-first.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewPeriod creates a validated Period
func NewPeriod(year, month int) (Period, error) {
	if year < 1900 || year > 9999 {
		return Period{}, fmt.Errorf("invalid period year: %d", year)
	}
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid period month: %d", month)
	}
	return Period{Year: year, Month: month}, nil
}

// PeriodOf returns the period containing the given time
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// IsZero returns true for the zero period
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Compare returns -1, 0 or 1 ordering periods chronologically
func (p Period) Compare(other Period) int {
	if p.Year != other.Year {
		if p.Year < other.Year {
			return -1
		}
		return 1
	}
	if p.Month != other.Month {
		if p.Month < other.Month {
			return -1
		}
		return 1
	}
	return 0
}

// Before returns true if p is chronologically before other
func (p Period) Before(other Period) bool {
	return p.Compare(other) < 0
}

// Next returns the following period
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// String renders the period as YYYY-MM
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ParsePeriod parses a YYYY-MM string
func ParsePeriod(s string) (Period, error) {
	var year, month int
	if _, err := fmt.Sscanf(s, "%d-%d", &year, &month); err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return NewPeriod(year, month)
}

// Value implements driver.Valuer, storing the period as YYYY-MM
func (p Period) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements sql.Scanner
func (p *Period) Scan(value any) error {
	if value == nil {
		*p = Period{}
		return nil
	}
	var strVal string
	switch v := value.(type) {
	case string:
		strVal = v
	case []byte:
		strVal = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Period", value)
	}
	parsed, err := ParsePeriod(strVal)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
