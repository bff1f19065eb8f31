// Package ledger implements land verification against the land-records ledger.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"claim-service/internal/ports"
)

// minSurveyNumberLength is the plausibility floor: survey numbers must be longer than this.
const minSurveyNumberLength = 5

type Verifier struct {
	clock ports.Clock
}

func NewVerifier(clock ports.Clock) *Verifier {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Verifier{clock: clock}
}

// VerifyLand accepts a survey number that passes the plausibility rule and issues
// a proof token of the form 0x + 40 hex characters.
func (v *Verifier) VerifyLand(ctx context.Context, farmerID int64, surveyNumber string) ports.LandVerification {
	if err := ctx.Err(); err != nil {
		slog.Warn("land verification skipped", "farmer_id", farmerID, "error", err)
		return ports.LandVerification{}
	}

	survey := strings.TrimSpace(surveyNumber)
	if len(survey) <= minSurveyNumberLength {
		slog.Info("land verification failed plausibility check",
			"farmer_id", farmerID,
			"survey_number", survey)
		return ports.LandVerification{}
	}

	return ports.LandVerification{
		Verified:   true,
		ProofToken: v.proofToken(farmerID, survey),
	}
}

func (v *Verifier) proofToken(farmerID int64, survey string) string {
	material := fmt.Sprintf("%d|%s|%d", farmerID, survey, v.clock.Now().UnixNano())
	sum := sha256.Sum256([]byte(material))
	return "0x" + hex.EncodeToString(sum[:])[:40]
}
