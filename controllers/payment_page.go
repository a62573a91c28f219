package controllers

import (
	"strconv"

	"infinityschool_go/database"
	"infinityschool_go/middleware"
	"infinityschool_go/models"
	"infinityschool_go/services"
	"infinityschool_go/storage"

	"github.com/gofiber/fiber/v2"
)

// PaymentPageController handles the course enrollment checkout.
type PaymentPageController struct{}

func (pp *PaymentPageController) svc() *services.PaymentService {
	return services.NewPaymentService(database.DB, storage.NewStorageService())
}

// coursePaymentData is the JSON payload of the enrollment form.
type coursePaymentData struct {
	FullName         string `json:"fullName"`
	TelegramUsername string `json:"telegramUsername"`
	PhoneNumber      string `json:"phoneNumber"`
	RegistrationDate string `json:"registrationDate"`
	StartDate        string `json:"startDate"`
	TimeSlot         string `json:"timeSlot"`
	CourseDays       string `json:"courseDays"`
	CardNumber       string `json:"cardNumber"`
	CardOwner        string `json:"cardOwner"`
	PlanName         string `json:"planName"`
	PlanPrice        string `json:"planPrice"`
	PaymentDate      string `json:"paymentDate"`
}

func coursePaymentJSON(p *models.Payment) fiber.Map {
	m := paymentJSON(p)
	if p.ReceiptFilename != "" {
		m["receipt_url"] = "/api/payment-page/receipt/" + strconv.FormatUint(uint64(p.ID), 10)
	}
	return m
}

// CreatePayment records a new enrollment payment, receipt optional
func (pp *PaymentPageController) CreatePayment(c *fiber.Ctx) error {
	var data coursePaymentData
	if err := parsePaymentData(c, &data); err != nil {
		// The form may also arrive as a plain JSON body
		if err := c.BodyParser(&data); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Payment data is missing or malformed",
			})
		}
	}

	var stored *storage.StoredFile
	store := storage.NewStorageService()
	if file, err := c.FormFile("receipt"); err == nil {
		stored, err = store.SaveReceipt(file, "course_payments", storage.AllowedImageTypesWithGIF)
		if err != nil {
			return paymentError(c, err, "Failed to store receipt")
		}
	}

	payment, err := pp.svc().Create(services.PaymentInput{
		Variant:          models.VariantCourse,
		FullName:         data.FullName,
		TelegramUsername: data.TelegramUsername,
		PhoneNumber:      data.PhoneNumber,
		RegistrationDate: parseDate(data.RegistrationDate),
		CourseStartDate:  parseDate(data.StartDate),
		CourseTimeSlot:   data.TimeSlot,
		CourseDays:       data.CourseDays,
		CardNumber:       data.CardNumber,
		CardOwner:        data.CardOwner,
		PlanName:         data.PlanName,
		PlanPrice:        data.PlanPrice,
		PaymentDate:      parseDate(data.PaymentDate),
	}, stored)
	if err != nil {
		return paymentError(c, err, "Failed to create payment")
	}

	middleware.LogActivity(c, "CREATE", "payment-page", payment.ID, fiber.Map{"transaction_id": payment.TransactionID})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":       true,
		"message":       "Payment created successfully",
		"transactionId": payment.TransactionID,
		"payment":       coursePaymentJSON(payment),
	})
}

// GetAllPayments lists enrollment payments, paginated
func (pp *PaymentPageController) GetAllPayments(c *fiber.Ctx) error {
	payments, pagination, err := pp.svc().List(models.VariantCourse, services.ListOptions{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 10),
	})
	if err != nil {
		return paymentError(c, err, "Failed to fetch payments")
	}

	out := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		out = append(out, coursePaymentJSON(&payments[i]))
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"payments":   out,
		"pagination": pagination,
	})
}

// GetUserPayments returns enrollment payments by phone number
func (pp *PaymentPageController) GetUserPayments(c *fiber.Ctx) error {
	phone := c.Params("phoneNumber")

	payments, err := pp.svc().ListByPhone(models.VariantCourse, phone)
	if err != nil {
		return paymentError(c, err, "Failed to fetch payments")
	}

	out := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		out = append(out, coursePaymentJSON(&payments[i]))
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"count":    len(out),
		"payments": out,
	})
}

// GetPaymentByTransaction returns one enrollment payment by transaction id
func (pp *PaymentPageController) GetPaymentByTransaction(c *fiber.Ctx) error {
	txID := c.Params("transactionId")

	payment, err := pp.svc().GetByTransactionID(models.VariantCourse, txID)
	if err != nil {
		return paymentError(c, err, "Failed to fetch payment")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"payment": coursePaymentJSON(payment),
	})
}

// GetReceipt serves the receipt of one enrollment payment by payment id
func (pp *PaymentPageController) GetReceipt(c *fiber.Ctx) error {
	id, err := c.ParamsInt("paymentId")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid payment id",
		})
	}

	payment, err := pp.svc().GetByID(models.VariantCourse, uint(id))
	if err != nil {
		return paymentError(c, err, "Failed to fetch payment")
	}
	if payment.ReceiptPath == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Receipt not found",
		})
	}

	c.Set("Content-Type", storage.ContentTypeFor(payment.ReceiptFilename))
	c.Set("Cache-Control", "public, max-age=31536000")
	return c.SendFile(payment.ReceiptPath)
}

// UpdateStatus sets an enrollment payment's status by numeric id
func (pp *PaymentPageController) UpdateStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("paymentId")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid payment id",
		})
	}

	var req statusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	payment, err := pp.svc().UpdateStatusByID(models.VariantCourse, uint(id), req.Status, nil)
	if err != nil {
		return paymentError(c, err, "Failed to update payment status")
	}

	middleware.LogActivity(c, "UPDATE", "payment-page", payment.ID, fiber.Map{"status": req.Status})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment status updated successfully",
		"payment": coursePaymentJSON(payment),
	})
}

// GetStats returns the enrollment checkout's aggregate statistics
func (pp *PaymentPageController) GetStats(c *fiber.Ctx) error {
	stats, err := pp.svc().Stats(models.VariantCourse)
	if err != nil {
		return paymentError(c, err, "Failed to fetch payment statistics")
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"general":    stats,
		"plans":      stats.Plans,
		"timeSlots":  stats.TimeSlots,
		"courseDays": stats.CourseDays,
	})
}

// DeletePayment removes an enrollment payment and its receipt file
func (pp *PaymentPageController) DeletePayment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("paymentId")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid payment id",
		})
	}

	if err := pp.svc().Delete(models.VariantCourse, uint(id)); err != nil {
		return paymentError(c, err, "Failed to delete payment")
	}

	middleware.LogActivity(c, "DELETE", "payment-page", uint(id), nil)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment deleted successfully",
	})
}
