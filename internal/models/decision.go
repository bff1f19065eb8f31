package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AdjudicationDecision is the audit record stored alongside an adjudicated claim.
type AdjudicationDecision struct {
	LandVerified        bool            `json:"landVerified"`
	ProofToken          string          `json:"proofToken,omitempty"`
	RainfallObserved    float64         `json:"rainfallObserved"`
	RainfallThreshold   float64         `json:"rainfallThreshold"`
	ShortfallPercentage int             `json:"shortfallPercentage"`
	RecommendedAmount   decimal.Decimal `json:"recommendedAmount"`
	ConfidenceScore     float64         `json:"confidenceScore"`
	Rationale           string          `json:"rationale"`
	DecidedAt           time.Time       `json:"decidedAt"`
}

func (d AdjudicationDecision) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *AdjudicationDecision) Scan(value any) error {
	if value == nil {
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("AdjudicationDecision: Scan failed, expected []byte but got %T", value)
	}

	return json.Unmarshal(b, d)
}
