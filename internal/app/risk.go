package app

import (
	"strings"
	"time"

	"github.com/transfa/fraud-service/internal/domain"
)

const (
	largeAmountThreshold = 5000
	oddHourStart         = 22 // hours after this are odd
	oddHourEnd           = 6  // hours before this are odd
	velocityWindow       = 5 * time.Minute
	velocityThreshold    = 3
)

var testMerchantMarkers = []string{"test", "dummy"}

// riskInput is what every rule sees.
type riskInput struct {
	txn         domain.Transaction
	recentCount int
	location    *time.Location
}

type riskRule struct {
	reason string
	fires  func(in riskInput) bool
}

// riskRules run in this order; the order is the order of reasons in a verdict.
var riskRules = []riskRule{
	{reason: domain.ReasonLargeAmount, fires: ruleLargeAmount},
	{reason: domain.ReasonOddHour, fires: ruleOddHour},
	{reason: domain.ReasonTestMerchant, fires: ruleTestMerchant},
	{reason: domain.ReasonHighVelocity, fires: ruleHighVelocity},
}

// RiskEvaluator applies the fixed rule set to a transaction.
type RiskEvaluator struct {
	location *time.Location
}

// NewRiskEvaluator returns an evaluator that reads hours in loc; nil means server local time.
func NewRiskEvaluator(loc *time.Location) *RiskEvaluator {
	if loc == nil {
		loc = time.Local
	}
	return &RiskEvaluator{location: loc}
}

// Evaluate runs every rule. Rules do not short-circuit each other.
func (e *RiskEvaluator) Evaluate(txn domain.Transaction, recentCount int) domain.Verdict {
	in := riskInput{txn: txn, recentCount: recentCount, location: e.location}

	reasons := make([]string, 0, len(riskRules))
	for _, rule := range riskRules {
		if rule.fires(in) {
			reasons = append(reasons, rule.reason)
		}
	}

	return domain.Verdict{
		Suspicious: len(reasons) > 0,
		Reasons:    reasons,
	}
}

func ruleLargeAmount(in riskInput) bool {
	return in.txn.Amount > largeAmountThreshold
}

func ruleOddHour(in riskInput) bool {
	hour := time.UnixMilli(in.txn.Timestamp).In(in.location).Hour()
	return hour < oddHourEnd || hour > oddHourStart
}

func ruleTestMerchant(in riskInput) bool {
	merchant := strings.ToLower(in.txn.Merchant)
	for _, marker := range testMerchantMarkers {
		if strings.Contains(merchant, marker) {
			return true
		}
	}
	return false
}

func ruleHighVelocity(in riskInput) bool {
	return in.recentCount > velocityThreshold
}

// velocityFloor is the earliest timestamp counted towards velocity at evaluation time now.
func velocityFloor(now time.Time) int64 {
	return now.Add(-velocityWindow).UnixMilli()
}
