package distribution

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// ResultLine is one participant's share of a cost item, split into the
// taxable net component, the tax component and the tax-exempt reserve-fund
// component (WEG business plans only). Gross is always net + tax + reserve.
type ResultLine struct {
	ParticipantID   uuid.UUID       `json:"participant_id"`
	ParticipantName string          `json:"participant_name"`
	Weight          decimal.Decimal `json:"weight"`
	NetShare        decimal.Decimal `json:"net_share"`
	TaxShare        decimal.Decimal `json:"tax_share"`
	ReserveShare    decimal.Decimal `json:"reserve_share"`
	GrossShare      decimal.Decimal `json:"gross_share"`
	Provisional     bool            `json:"provisional"`
}

// Result is the complete outcome of one distribution run. For every
// component the lines sum exactly to the component total.
type Result struct {
	Key          Key             `json:"key"`
	Lines        []ResultLine    `json:"lines"`
	NetTotal     decimal.Decimal `json:"net_total"`
	TaxTotal     decimal.Decimal `json:"tax_total"`
	ReserveTotal decimal.Decimal `json:"reserve_total"`
	GrossTotal   decimal.Decimal `json:"gross_total"`
	Provisional  bool            `json:"provisional"`
}

// Options configures tax and WEG annual-plan behaviour of a run
type Options struct {
	// TaxRatePercent, when positive, adds a tax component of
	// net x rate/100 per participant.
	TaxRatePercent decimal.Decimal

	// ReserveAnnual is the annual reserve-fund amount of a WEG business
	// plan. It is distributed with the same key but kept tax-exempt.
	ReserveAnnual decimal.Decimal

	// Monthly divides annual-plan amounts (cost total and reserve) by 12
	// before distributing, producing per-month shares.
	Monthly bool
}

// Calculator splits a cost total across weighted participants with
// deterministic cent-exact rounding reconciliation.
type Calculator struct{}

// NewCalculator creates a new Calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Distribute splits the total across the participants using the given key.
//
// Each raw share (total x weight/sum) is rounded to the cent independently;
// a reconciliation pass then assigns the residual cents one at a time in a
// fully deterministic order (descending absolute raw share, then ascending
// participant name, then ascending participant ID), so repeated runs on
// identical input always produce identical output.
//
// A zero weight sum falls back to an equal split with every line flagged
// provisional - the documented policy for zero-consumption edge cases.
// Zero participants yield an empty result, not an error.
func (c *Calculator) Distribute(total valueobject.Money, participants []Participant, key Key, opts Options) (*Result, error) {
	if !key.IsValid() {
		return nil, shared.NewDomainError("INVALID_KEY", fmt.Sprintf("Unknown distribution key %q", key))
	}
	if total.Amount().IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Cost total cannot be negative")
	}
	if opts.TaxRatePercent.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TAX_RATE", "Tax rate cannot be negative")
	}
	if opts.ReserveAnnual.IsNegative() {
		return nil, shared.NewDomainError("INVALID_RESERVE", "Reserve-fund amount cannot be negative")
	}
	for _, p := range participants {
		if p.Weight.IsNegative() {
			return nil, shared.NewDomainError("INVALID_WEIGHT",
				fmt.Sprintf("Participant %s has a negative weight", p.ID))
		}
	}

	if len(participants) == 0 {
		return &Result{
			Key:          key,
			Lines:        []ResultLine{},
			NetTotal:     decimal.Zero,
			TaxTotal:     decimal.Zero,
			ReserveTotal: decimal.Zero,
			GrossTotal:   decimal.Zero,
		}, nil
	}

	netTotal := total.RoundCents().Amount()
	if opts.Monthly {
		netTotal = netTotal.Div(decimal.NewFromInt(12)).Round(2)
	}

	netShares, provisional := c.distributeComponent(netTotal, participants, key)

	var taxShares []decimal.Decimal
	taxTotal := decimal.Zero
	if opts.TaxRatePercent.IsPositive() {
		taxTotal = netTotal.Mul(opts.TaxRatePercent).Div(decimal.NewFromInt(100)).Round(2)
		taxShares, _ = c.distributeComponent(taxTotal, participants, key)
	} else {
		taxShares = zeroShares(len(participants))
	}

	var reserveShares []decimal.Decimal
	reserveTotal := decimal.Zero
	if opts.ReserveAnnual.IsPositive() {
		reserveTotal = opts.ReserveAnnual.Round(2)
		if opts.Monthly {
			reserveTotal = reserveTotal.Div(decimal.NewFromInt(12)).Round(2)
		}
		reserveShares, _ = c.distributeComponent(reserveTotal, participants, key)
	} else {
		reserveShares = zeroShares(len(participants))
	}

	lines := make([]ResultLine, len(participants))
	grossTotal := decimal.Zero
	for i, p := range participants {
		gross := netShares[i].Add(taxShares[i]).Add(reserveShares[i])
		lines[i] = ResultLine{
			ParticipantID:   p.ID,
			ParticipantName: p.Name,
			Weight:          p.Weight,
			NetShare:        netShares[i],
			TaxShare:        taxShares[i],
			ReserveShare:    reserveShares[i],
			GrossShare:      gross,
			Provisional:     provisional,
		}
		grossTotal = grossTotal.Add(gross)
	}

	return &Result{
		Key:          key,
		Lines:        lines,
		NetTotal:     netTotal,
		TaxTotal:     taxTotal,
		ReserveTotal: reserveTotal,
		GrossTotal:   grossTotal,
		Provisional:  provisional,
	}, nil
}

// distributeComponent splits one component total across the participants and
// reconciles the rounded shares back to the exact total. The returned flag
// reports whether the zero-weight equal-split fallback was taken.
func (c *Calculator) distributeComponent(total decimal.Decimal, participants []Participant, key Key) ([]decimal.Decimal, bool) {
	n := len(participants)
	weights := make([]decimal.Decimal, n)
	provisional := false

	sum := decimal.Zero
	if key == KeyEqual {
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
		sum = decimal.NewFromInt(int64(n))
	} else {
		for i, p := range participants {
			weights[i] = p.Weight
			sum = sum.Add(p.Weight)
		}
		if sum.IsZero() {
			// Zero-weight fallback: equal split, flagged provisional so the
			// caller can signal non-final data (e.g. water costs without
			// any metered usage yet).
			for i := range weights {
				weights[i] = decimal.NewFromInt(1)
			}
			sum = decimal.NewFromInt(int64(n))
			provisional = true
		}
	}

	raw := make([]decimal.Decimal, n)
	rounded := make([]decimal.Decimal, n)
	roundedSum := decimal.Zero
	for i := range participants {
		raw[i] = total.Mul(weights[i]).Div(sum)
		rounded[i] = raw[i].Round(2)
		roundedSum = roundedSum.Add(rounded[i])
	}

	diffCents := total.Sub(roundedSum).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if diffCents != 0 {
		order := reconciliationOrder(raw, participants)
		cent := decimal.New(1, -2)
		if diffCents < 0 {
			cent = cent.Neg()
			diffCents = -diffCents
		}
		for i := int64(0); i < diffCents; i++ {
			idx := order[int(i)%n]
			rounded[idx] = rounded[idx].Add(cent)
		}
	}

	// The reconciliation pass must restore the component total exactly.
	// Anything else is a programming error.
	check := decimal.Zero
	for _, s := range rounded {
		check = check.Add(s)
	}
	if !check.Equal(total) {
		panic(fmt.Sprintf("distribution conservation violated: shares sum to %s, expected %s", check, total))
	}

	return rounded, provisional
}

// reconciliationOrder returns participant indices in the deterministic order
// residual cents are assigned: descending absolute raw share, then ascending
// participant ID.
func reconciliationOrder(raw []decimal.Decimal, participants []Participant) []int {
	order := make([]int, len(participants))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := raw[order[a]].Abs(), raw[order[b]].Abs()
		if !ra.Equal(rb) {
			return ra.GreaterThan(rb)
		}
		return participants[order[a]].ID.String() < participants[order[b]].ID.String()
	})
	return order
}

func zeroShares(n int) []decimal.Decimal {
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = decimal.Zero
	}
	return shares
}
