package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"claim-service/internal/services"
	"claim-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

func parseID(c fiber.Ctx, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func invalidID(c fiber.Ctx, what string) error {
	return c.Status(http.StatusBadRequest).JSON(
		utils.CreateErrorResponse("INVALID_ID", "Invalid "+what+" ID format"))
}

// serviceError maps workflow errors onto HTTP responses. Anything unrecognized is logged as a 500.
func serviceError(c fiber.Ctx, err error, code, message string) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(utils.CreateErrorResponse("NOT_FOUND", err.Error()))
	case errors.Is(err, services.ErrValidation):
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("VALIDATION_ERROR", err.Error()))
	case errors.Is(err, services.ErrPolicyNotActive):
		return c.Status(http.StatusUnprocessableEntity).JSON(utils.CreateErrorResponse("POLICY_NOT_ACTIVE", err.Error()))
	case errors.Is(err, services.ErrPolicyFarmerMismatch):
		return c.Status(http.StatusUnprocessableEntity).JSON(utils.CreateErrorResponse("POLICY_FARMER_MISMATCH", err.Error()))
	case errors.Is(err, services.ErrSettlementInProgress):
		return c.Status(http.StatusConflict).JSON(utils.CreateErrorResponse("SETTLEMENT_IN_PROGRESS", err.Error()))
	case errors.Is(err, services.ErrClaimNotSettleable):
		return c.Status(http.StatusConflict).JSON(utils.CreateErrorResponse("CLAIM_NOT_SETTLEABLE", err.Error()))
	}

	slog.Error(message, "path", c.Path(), "error", err)
	return c.Status(http.StatusInternalServerError).JSON(utils.CreateErrorResponse(code, message))
}
