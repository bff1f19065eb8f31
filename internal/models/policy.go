package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Policy struct {
	ID                int64           `json:"id" db:"id"`
	PolicyNumber      string          `json:"policyNumber" db:"policy_number"`
	FarmerID          int64           `json:"farmerId" db:"farmer_id"`
	LandHoldingID     int64           `json:"landHoldingId" db:"land_holding_id"`
	CropType          string          `json:"cropType" db:"crop_type"`
	Season            string          `json:"season" db:"season"`
	CoverageAmount    decimal.Decimal `json:"coverageAmount" db:"coverage_amount"`
	Premium           decimal.Decimal `json:"premium" db:"premium"`
	RainfallThreshold float64         `json:"rainfallThreshold" db:"rainfall_threshold"`
	ValidFrom         time.Time       `json:"validFrom" db:"valid_from"`
	ValidTo           time.Time       `json:"validTo" db:"valid_to"`
	Status            PolicyStatus    `json:"status" db:"status"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

type Farmer struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Phone       string    `json:"phone" db:"phone"`
	District    string    `json:"district" db:"district"`
	State       string    `json:"state" db:"state"`
	BankAccount *string   `json:"-" db:"bank_account"`
	IFSCCode    *string   `json:"-" db:"ifsc_code"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type LandHolding struct {
	ID           int64           `json:"id" db:"id"`
	FarmerID     int64           `json:"farmerId" db:"farmer_id"`
	SurveyNumber *string         `json:"surveyNumber" db:"survey_number"`
	AreaAcres    decimal.Decimal `json:"areaAcres" db:"area_acres"`
	IsVerified   bool            `json:"isVerified" db:"is_verified"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}

// PolicyDetails is a policy together with the farmer and land holding it belongs to.
type PolicyDetails struct {
	Policy      Policy
	Farmer      Farmer
	LandHolding LandHolding
}

// WeatherReading is one day of observed rainfall for a district.
type WeatherReading struct {
	District   string    `json:"district" db:"district"`
	State      string    `json:"state" db:"state"`
	Date       time.Time `json:"date" db:"reading_date"`
	RainfallMM float64   `json:"rainfallMm" db:"rainfall_mm"`
}
