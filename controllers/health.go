package controllers

import (
	"infinityschool_go/database"

	"github.com/gofiber/fiber/v2"
)

// HealthController reports service liveness.
type HealthController struct{}

// GetHealthStatus pings the database and reports the result
func (hc *HealthController) GetHealthStatus(c *fiber.Ctx) error {
	dbStatus := "ok"
	code := fiber.StatusOK

	sqlDB, err := database.DB.DB()
	if err != nil {
		dbStatus = "unavailable"
		code = fiber.StatusInternalServerError
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "unavailable"
		code = fiber.StatusInternalServerError
	}

	redisStatus := "disabled"
	if rdb := database.GetRedisClient(); rdb != nil {
		redisStatus = "ok"
		if err := rdb.Ping(c.Context()).Err(); err != nil {
			redisStatus = "unavailable"
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   dbStatus,
		"service":  "Infinity School API",
		"version":  "1.0.0",
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
