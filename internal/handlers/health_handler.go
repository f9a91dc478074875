package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/database"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/dto"
)

type HealthHandler struct {
	storeDriver string
}

func NewHealthHandler(storeDriver string) *HealthHandler {
	return &HealthHandler{storeDriver: storeDriver}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if database.DB == nil {
		dbStatus = "disabled"
	} else if err := database.Ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Store:     h.storeDriver,
	})
}
