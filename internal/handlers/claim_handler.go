package handlers

import (
	"context"
	"net/http"

	"claim-service/internal/models"
	"claim-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type ClaimIntake interface {
	SubmitClaim(ctx context.Context, req models.SubmitClaimRequest) (*models.Claim, error)
	GetClaim(ctx context.Context, id int64) (*models.Claim, error)
	ListClaimsByFarmer(ctx context.Context, farmerID int64) ([]models.Claim, error)
	ListPaymentsByClaim(ctx context.Context, claimID int64) ([]models.Payment, error)
}

type SettlementRetrier interface {
	RetrySettlement(ctx context.Context, claimID int64) error
}

type ClaimHandler struct {
	claimService      ClaimIntake
	settlementService SettlementRetrier
}

func NewClaimHandler(claimService ClaimIntake, settlementService SettlementRetrier) *ClaimHandler {
	return &ClaimHandler{
		claimService:      claimService,
		settlementService: settlementService,
	}
}

func (h *ClaimHandler) Register(app *fiber.App) {
	api := app.Group("/api")

	claimGroup := api.Group("/claims")
	claimGroup.Post("/", h.SubmitClaim)                         // POST /api/claims
	claimGroup.Get("/farmer/:farmerId", h.GetFarmerClaims)      // GET /api/claims/farmer/:farmerId
	claimGroup.Get("/:id", h.GetClaim)                          // GET /api/claims/:id
	claimGroup.Post("/:id/settlement/retry", h.RetrySettlement) // POST /api/claims/:id/settlement/retry
	api.Get("/payments/claim/:claimId", h.GetClaimPayments)     // GET /api/payments/claim/:claimId
}

// SubmitClaim files a claim and returns it in submitted state; adjudication runs in the background
func (h *ClaimHandler) SubmitClaim(c fiber.Ctx) error {
	var req models.SubmitClaimRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	claim, err := h.claimService.SubmitClaim(c.Context(), req)
	if err != nil {
		return serviceError(c, err, "SUBMIT_FAILED", "Failed to submit claim")
	}

	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(claim))
}

func (h *ClaimHandler) GetClaim(c fiber.Ctx) error {
	claimID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "claim")
	}

	claim, err := h.claimService.GetClaim(c.Context(), claimID)
	if err != nil {
		return serviceError(c, err, "RETRIEVAL_FAILED", "Failed to retrieve claim")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(claim))
}

// GetFarmerClaims lists a farmer's claims, most recent first
func (h *ClaimHandler) GetFarmerClaims(c fiber.Ctx) error {
	farmerID, ok := parseID(c, "farmerId")
	if !ok {
		return invalidID(c, "farmer")
	}

	claims, err := h.claimService.ListClaimsByFarmer(c.Context(), farmerID)
	if err != nil {
		return serviceError(c, err, "RETRIEVAL_FAILED", "Failed to retrieve claims")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(claims))
}

func (h *ClaimHandler) GetClaimPayments(c fiber.Ctx) error {
	claimID, ok := parseID(c, "claimId")
	if !ok {
		return invalidID(c, "claim")
	}

	payments, err := h.claimService.ListPaymentsByClaim(c.Context(), claimID)
	if err != nil {
		return serviceError(c, err, "RETRIEVAL_FAILED", "Failed to retrieve payments")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(payments))
}

// RetrySettlement schedules a new payment attempt for an approved claim whose last payment failed
func (h *ClaimHandler) RetrySettlement(c fiber.Ctx) error {
	claimID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "claim")
	}

	if err := h.settlementService.RetrySettlement(c.Context(), claimID); err != nil {
		return serviceError(c, err, "RETRY_FAILED", "Failed to schedule settlement retry")
	}

	return c.Status(http.StatusAccepted).JSON(utils.CreateSuccessResponse(models.RetrySettlementResponse{
		ClaimID: claimID,
		Status:  "settlement_scheduled",
	}))
}
