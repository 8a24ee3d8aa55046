package domain

// Decision is the outcome of evaluating a rule set against a requester
type Decision string

const (
	DecisionAutoApprove  Decision = "AUTO_APPROVE"
	DecisionManualReview Decision = "MANUAL_REVIEW"
)

// RequesterProfile is a trusted snapshot supplied by the identity/profile
// service. This core never owns or refreshes it.
type RequesterProfile struct {
	Rating                float64 `json:"rating"`
	Verified              bool    `json:"verified"`
	AccountAgeDays        int     `json:"account_age_days"`
	PaymentReliabilityPct int     `json:"payment_reliability_pct"`
	PriorPoolsCount       int     `json:"prior_pools_count"`
}

// RuleKind identifies an auto-approve rule variant
type RuleKind string

const (
	RuleMinRating                RuleKind = "MIN_RATING"
	RuleVerifiedOnly             RuleKind = "VERIFIED_ONLY"
	RuleMinAccountAgeDays        RuleKind = "MIN_ACCOUNT_AGE_DAYS"
	RuleMinPaymentReliabilityPct RuleKind = "MIN_PAYMENT_RELIABILITY_PCT"
	RuleMinPriorPoolsCount       RuleKind = "MIN_PRIOR_POOLS_COUNT"
)

// Rule is a sealed tagged variant. The unexported method keeps the set of
// implementations closed to this package so evaluation stays exhaustive.
type Rule interface {
	Kind() RuleKind
	passes(p RequesterProfile) bool
}

// MinRating requires profile rating >= Min (0-5 scale)
type MinRating struct{ Min float64 }

func (MinRating) Kind() RuleKind { return RuleMinRating }

func (r MinRating) passes(p RequesterProfile) bool { return p.Rating >= r.Min }

// VerifiedOnly requires a verified profile
type VerifiedOnly struct{}

func (VerifiedOnly) Kind() RuleKind { return RuleVerifiedOnly }

func (VerifiedOnly) passes(p RequesterProfile) bool { return p.Verified }

// MinAccountAgeDays requires account age >= Min days
type MinAccountAgeDays struct{ Min int }

func (MinAccountAgeDays) Kind() RuleKind { return RuleMinAccountAgeDays }

func (r MinAccountAgeDays) passes(p RequesterProfile) bool { return p.AccountAgeDays >= r.Min }

// MinPaymentReliabilityPct requires payment reliability >= Min percent
type MinPaymentReliabilityPct struct{ Min int }

func (MinPaymentReliabilityPct) Kind() RuleKind { return RuleMinPaymentReliabilityPct }

func (r MinPaymentReliabilityPct) passes(p RequesterProfile) bool {
	return p.PaymentReliabilityPct >= r.Min
}

// MinPriorPoolsCount requires prior pool count >= Min
type MinPriorPoolsCount struct{ Min int }

func (MinPriorPoolsCount) Kind() RuleKind { return RuleMinPriorPoolsCount }

func (r MinPriorPoolsCount) passes(p RequesterProfile) bool { return p.PriorPoolsCount >= r.Min }

// RuleToggle pairs a rule with its enabled flag. Disabled rules are
// vacuously true and never participate in evaluation.
type RuleToggle struct {
	Rule    Rule
	Enabled bool
}

// RuleSet is an owner-configured, ordered collection of toggleable rules
type RuleSet struct {
	PoolID uint
	Rules  []RuleToggle
}

// Evaluate decides AutoApprove iff at least one rule is enabled and every
// enabled rule passes. An empty or fully-disabled set always yields
// ManualReview so an owner can never blanket-approve by forgetting to
// configure rules. Pure: no side effects, deterministic, safe to call
// speculatively.
func (rs RuleSet) Evaluate(p RequesterProfile) Decision {
	enabled := 0
	for _, t := range rs.Rules {
		if !t.Enabled {
			continue
		}
		enabled++
		if !t.Rule.passes(p) {
			return DecisionManualReview
		}
	}
	if enabled == 0 {
		return DecisionManualReview
	}
	return DecisionAutoApprove
}

// DecodeRule rebuilds a rule variant from its stored (kind, value) pair
func DecodeRule(kind RuleKind, value float64) (Rule, error) {
	switch kind {
	case RuleMinRating:
		return MinRating{Min: value}, nil
	case RuleVerifiedOnly:
		return VerifiedOnly{}, nil
	case RuleMinAccountAgeDays:
		return MinAccountAgeDays{Min: int(value)}, nil
	case RuleMinPaymentReliabilityPct:
		return MinPaymentReliabilityPct{Min: int(value)}, nil
	case RuleMinPriorPoolsCount:
		return MinPriorPoolsCount{Min: int(value)}, nil
	default:
		return nil, ErrUnknownRuleKind
	}
}

// EncodeRule flattens a rule variant into its stored (kind, value) pair
func EncodeRule(r Rule) (RuleKind, float64) {
	switch v := r.(type) {
	case MinRating:
		return RuleMinRating, v.Min
	case VerifiedOnly:
		return RuleVerifiedOnly, 0
	case MinAccountAgeDays:
		return RuleMinAccountAgeDays, float64(v.Min)
	case MinPaymentReliabilityPct:
		return RuleMinPaymentReliabilityPct, float64(v.Min)
	case MinPriorPoolsCount:
		return RuleMinPriorPoolsCount, float64(v.Min)
	default:
		return r.Kind(), 0
	}
}
