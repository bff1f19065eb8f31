package handlers

import (
	"context"
	"net/http"

	"claim-service/internal/models"
	"claim-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type ReceiptLinker interface {
	ReceiptLink(ctx context.Context, paymentID int64) (*models.ReceiptLinkResponse, error)
}

type PaymentHandler struct {
	receiptService ReceiptLinker
}

func NewPaymentHandler(receiptService ReceiptLinker) *PaymentHandler {
	return &PaymentHandler{receiptService: receiptService}
}

func (h *PaymentHandler) Register(app *fiber.App) {
	app.Group("/api/payments").Get("/:id/receipt", h.GetReceipt) // GET /api/payments/:id/receipt
}

// GetReceipt returns a presigned link to the payment's receipt
func (h *PaymentHandler) GetReceipt(c fiber.Ctx) error {
	paymentID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "payment")
	}

	link, err := h.receiptService.ReceiptLink(c.Context(), paymentID)
	if err != nil {
		return serviceError(c, err, "RECEIPT_FAILED", "Failed to retrieve receipt")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(link))
}
