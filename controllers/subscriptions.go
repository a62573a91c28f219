package controllers

import (
	"time"

	"infinityschool_go/database"
	"infinityschool_go/middleware"
	"infinityschool_go/services"

	"github.com/gofiber/fiber/v2"
)

type SubscriptionController struct{}

func (sc *SubscriptionController) svc() *services.SubscriptionService {
	return services.NewSubscriptionService(database.DB)
}

// CreateSubscriptionRequest represents the renewal request body
type CreateSubscriptionRequest struct {
	PaymentID uint   `json:"paymentId"`
	PlanName  string `json:"planName"`
	PlanPrice string `json:"planPrice"`
}

// GetStatus returns the caller's current subscription, flipping it to
// expired on the spot when the period has ended
func (sc *SubscriptionController) GetStatus(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}

	sub, err := sc.svc().Status(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to fetch subscription status",
		})
	}

	if sub == nil {
		return c.JSON(fiber.Map{
			"success":      true,
			"subscription": nil,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"subscription": fiber.Map{
			"id":             sub.ID,
			"userId":         sub.UserID,
			"paymentId":      sub.PaymentID,
			"startDate":      sub.StartDate,
			"endDate":        sub.EndDate,
			"status":         sub.Status,
			"planName":       sub.PlanName,
			"planPrice":      sub.PlanPrice,
			"isActive":       sub.Status == "active" && time.Now().Before(sub.EndDate),
			"transaction_id": sub.Payment.TransactionID,
			"full_name":      sub.Payment.FullName,
			"phone_number":   sub.Payment.PhoneNumber,
		},
	})
}

// CreateSubscription starts or renews the caller's subscription
func (sc *SubscriptionController) CreateSubscription(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}

	var req CreateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	sub, err := sc.svc().Create(user.ID, req.PaymentID, req.PlanName, req.PlanPrice)
	if err != nil {
		return c.Status(services.HTTPStatus(err)).JSON(fiber.Map{
			"error":   true,
			"message": err.Error(),
		})
	}

	middleware.LogActivity(c, "CREATE", "subscriptions", sub.ID, fiber.Map{"paymentId": req.PaymentID})

	return c.JSON(fiber.Map{
		"success":      true,
		"message":      "Subscription created successfully",
		"subscription": sub,
	})
}
