package bankcsv

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// StatementLine is one parsed row of a bank statement export.
type StatementLine struct {
	LineNumber      int
	BookedOn        time.Time
	Amount          decimal.Decimal
	CounterpartName string
	CounterpartIBAN string
	Purpose         string
}

// Canonical column names. German bank exports label these columns in a
// handful of well-known ways; columnAliases maps the variants back.
const (
	ColumnBookedOn        = "booked_on"
	ColumnAmount          = "amount"
	ColumnCounterpartName = "counterpart_name"
	ColumnCounterpartIBAN = "counterpart_iban"
	ColumnPurpose         = "purpose"
)

var columnAliases = map[string]string{
	"booked_on":                         ColumnBookedOn,
	"buchungstag":                       ColumnBookedOn,
	"buchungsdatum":                     ColumnBookedOn,
	"valutadatum":                       ColumnBookedOn,
	"amount":                            ColumnAmount,
	"betrag":                            ColumnAmount,
	"betrag (eur)":                      ColumnAmount,
	"umsatz":                            ColumnAmount,
	"counterpart_name":                  ColumnCounterpartName,
	"name":                              ColumnCounterpartName,
	"auftraggeber/empfaenger":           ColumnCounterpartName,
	"beguenstigter/zahlungspflichtiger": ColumnCounterpartName,
	"counterpart_iban":                  ColumnCounterpartIBAN,
	"iban":                              ColumnCounterpartIBAN,
	"kontonummer/iban":                  ColumnCounterpartIBAN,
	"purpose":                           ColumnPurpose,
	"verwendungszweck":                  ColumnPurpose,
	"buchungstext":                      ColumnPurpose,
}

var dateFormats = []string{
	"02.01.2006",
	"2006-01-02",
	"02.01.06",
}

var ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithDelimiter overrides delimiter detection with a fixed rune.
func WithDelimiter(d rune) ParserOption {
	return func(p *Parser) {
		p.delimiter = d
		p.detectDelimiter = false
	}
}

// Parser reads a bank statement CSV export. It tolerates a UTF-8 BOM,
// detects comma vs semicolon delimiters from the header row, and parses
// German number and date formats alongside ISO ones.
type Parser struct {
	delimiter       rune
	detectDelimiter bool
}

// NewParser creates a Parser
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{delimiter: ';', detectDelimiter: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads the whole statement. Structurally broken input fails the
// call; a bad individual row lands in the returned row errors and the
// remaining rows are still parsed.
func (p *Parser) Parse(r io.Reader) ([]StatementLine, []RowError, error) {
	buf := bufio.NewReader(r)

	head, err := buf.Peek(3)
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("failed to read statement file: %w", err)
	}
	if len(head) == 0 {
		return nil, nil, ErrEmptyFile
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	if err := validateUTF8(buf); err != nil {
		return nil, nil, err
	}

	headerLine, err := buf.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("failed to read header row: %w", err)
	}
	if strings.TrimSpace(headerLine) == "" {
		return nil, nil, ErrMissingHeader
	}

	delimiter := p.delimiter
	if p.detectDelimiter {
		delimiter = detectDelimiter(headerLine)
	}

	columns, err := resolveColumns(headerLine, delimiter)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(buf)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var (
		lines     []StatementLine
		rowErrors []RowError
		rowNumber = 1 // header is row 1
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNumber++
		if err != nil {
			rowErrors = append(rowErrors,
				NewRowError(rowNumber, "", ErrCodeMalformedRow, err.Error()))
			continue
		}
		if isEmptyRecord(record) {
			continue
		}

		line, errs := parseLine(rowNumber, record, columns)
		if len(errs) > 0 {
			rowErrors = append(rowErrors, errs...)
			continue
		}
		lines = append(lines, line)
	}

	return lines, rowErrors, nil
}

func validateUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	content, err := r.Peek(checkSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for encoding validation: %w", err)
	}
	if !utf8.Valid(content) {
		return ErrInvalidEncoding
	}
	return nil
}

// detectDelimiter picks the separator that splits the header into more
// columns. Sparkasse/Volksbank exports use semicolons, ISO-style dumps
// use commas.
func detectDelimiter(headerLine string) rune {
	if strings.Count(headerLine, ";") >= strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}

// resolveColumns maps column indexes to canonical field names through the
// alias table. Booking date and amount are mandatory.
func resolveColumns(headerLine string, delimiter rune) (map[int]string, error) {
	headerReader := csv.NewReader(strings.NewReader(headerLine))
	headerReader.Comma = delimiter
	headerReader.LazyQuotes = true
	fields, err := headerReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to parse header row: %w", err)
	}

	columns := make(map[int]string)
	for i, field := range fields {
		key := strings.ToLower(strings.TrimSpace(field))
		key = strings.ReplaceAll(key, "ä", "ae")
		key = strings.ReplaceAll(key, "ö", "oe")
		key = strings.ReplaceAll(key, "ü", "ue")
		if canonical, ok := columnAliases[key]; ok {
			columns[i] = canonical
		}
	}

	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		seen[c] = true
	}
	if !seen[ColumnBookedOn] || !seen[ColumnAmount] {
		return nil, ErrUnknownColumns
	}
	return columns, nil
}

func isEmptyRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseLine(rowNumber int, record []string, columns map[int]string) (StatementLine, []RowError) {
	line := StatementLine{LineNumber: rowNumber}
	var errs []RowError

	fields := make(map[string]string, len(columns))
	for i, name := range columns {
		if i < len(record) {
			fields[name] = strings.TrimSpace(record[i])
		}
	}

	if fields[ColumnBookedOn] == "" {
		errs = append(errs, NewRowError(rowNumber, ColumnBookedOn,
			ErrCodeRequiredField, "booking date is required"))
	} else if bookedOn, err := parseDate(fields[ColumnBookedOn]); err != nil {
		errs = append(errs, NewRowError(rowNumber, ColumnBookedOn,
			ErrCodeInvalidDate, "unrecognized date format").WithValue(fields[ColumnBookedOn]))
	} else {
		line.BookedOn = bookedOn
	}

	if fields[ColumnAmount] == "" {
		errs = append(errs, NewRowError(rowNumber, ColumnAmount,
			ErrCodeRequiredField, "amount is required"))
	} else if amount, err := ParseAmount(fields[ColumnAmount]); err != nil {
		errs = append(errs, NewRowError(rowNumber, ColumnAmount,
			ErrCodeInvalidAmount, "unparseable amount").WithValue(fields[ColumnAmount]))
	} else {
		line.Amount = amount
	}

	if iban := fields[ColumnCounterpartIBAN]; iban != "" {
		normalized := NormalizeIBAN(iban)
		if !ibanPattern.MatchString(normalized) {
			errs = append(errs, NewRowError(rowNumber, ColumnCounterpartIBAN,
				ErrCodeInvalidIBAN, "malformed IBAN").WithValue(iban))
		} else {
			line.CounterpartIBAN = normalized
		}
	}

	line.CounterpartName = fields[ColumnCounterpartName]
	line.Purpose = fields[ColumnPurpose]

	return line, errs
}

func parseDate(value string) (time.Time, error) {
	for _, format := range dateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// ParseAmount parses both German ("1.234,56") and ISO ("1234.56") number
// formats. When both separators appear, the rightmost one is the decimal
// separator.
func ParseAmount(value string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(value, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimSuffix(s, "EUR")

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	return decimal.NewFromString(s)
}

// NormalizeIBAN uppercases and strips spaces
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
}
