package handlers

import (
	"context"
	"net/http"

	"claim-service/internal/models"
	"claim-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type DashboardReader interface {
	FarmerDashboard(ctx context.Context, farmerID int64) (*models.FarmerDashboard, error)
	InsurerDashboard(ctx context.Context) (*models.InsurerDashboard, error)
}

type DashboardHandler struct {
	dashboardService DashboardReader
}

func NewDashboardHandler(dashboardService DashboardReader) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) Register(app *fiber.App) {
	dashboardGroup := app.Group("/api/dashboard")
	dashboardGroup.Get("/farmer/:farmerId", h.GetFarmerDashboard) // GET /api/dashboard/farmer/:farmerId
	dashboardGroup.Get("/insurer", h.GetInsurerDashboard)         // GET /api/dashboard/insurer
}

func (h *DashboardHandler) GetFarmerDashboard(c fiber.Ctx) error {
	farmerID, ok := parseID(c, "farmerId")
	if !ok {
		return invalidID(c, "farmer")
	}

	stats, err := h.dashboardService.FarmerDashboard(c.Context(), farmerID)
	if err != nil {
		return serviceError(c, err, "DASHBOARD_FAILED", "Failed to load farmer dashboard")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(stats))
}

func (h *DashboardHandler) GetInsurerDashboard(c fiber.Ctx) error {
	stats, err := h.dashboardService.InsurerDashboard(c.Context())
	if err != nil {
		return serviceError(c, err, "DASHBOARD_FAILED", "Failed to load insurer dashboard")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(stats))
}
