package model

import (
	"time"

	"github.com/google/uuid"
)

// Rule identifies the detection rule that produced an alert.
type Rule string

const (
	RuleMassChange     Rule = "MASS_FILE_ACTIVITY"
	RuleExtensionSpike Rule = "EXTENSION_CHANGE_SPIKE"
	RuleEntropySpike   Rule = "ENTROPY_SPIKE"
)

// Rules lists every rule in evaluation order.
var Rules = []Rule{RuleMassChange, RuleExtensionSpike, RuleEntropySpike}

// Severity is the urgency of an alert.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Alert is a write-once detection result.
type Alert struct {
	ID        string
	Timestamp time.Time
	Rule      Rule
	Severity  Severity
	Details   string
}

// NewAlert creates an alert stamped at ts with a fresh identifier.
func NewAlert(ts time.Time, rule Rule, severity Severity, details string) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Timestamp: ts.Truncate(time.Second),
		Rule:      rule,
		Severity:  severity,
		Details:   details,
	}
}

// AlertRecord is the persisted shape of an Alert.
type AlertRecord struct {
	TS       string `json:"ts"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Details  string `json:"details"`
}

// Record converts the alert to its log shape.
func (a Alert) Record() AlertRecord {
	return AlertRecord{
		TS:       FormatTimestamp(a.Timestamp),
		Rule:     string(a.Rule),
		Severity: string(a.Severity),
		Details:  a.Details,
	}
}
