package models

import "github.com/shopspring/decimal"

type FarmerDashboard struct {
	FarmerID              int64           `json:"farmerId" db:"farmer_id"`
	ActivePolicies        int64           `json:"activePolicies" db:"active_policies"`
	TotalClaims           int64           `json:"totalClaims" db:"total_claims"`
	SettledClaims         int64           `json:"settledClaims" db:"settled_claims"`
	TotalSettlementAmount decimal.Decimal `json:"totalSettlementAmount" db:"total_settlement_amount"`
}

// ClaimStatusCounts is the raw aggregate the insurer dashboard is derived from.
type ClaimStatusCounts struct {
	TotalPolicies     int64    `db:"total_policies"`
	Processing        int64    `db:"processing"`
	Approved          int64    `db:"approved"`
	Settled           int64    `db:"settled"`
	Rejected          int64    `db:"rejected"`
	AvgSettlementHour *float64 `db:"avg_settlement_hours"`
}

type InsurerDashboard struct {
	TotalPolicies      int64   `json:"totalPolicies"`
	ActiveClaims       int64   `json:"activeClaims"`
	AutoApprovalRate   float64 `json:"autoApprovalRate"`
	AvgSettlementHours float64 `json:"avgSettlementHours"`
	RecentClaims       []Claim `json:"recentClaims"`
}
