package controllers

import (
	"encoding/json"
	"errors"
	"time"

	"infinityschool_go/database"
	"infinityschool_go/middleware"
	"infinityschool_go/models"
	"infinityschool_go/services"
	"infinityschool_go/storage"

	"github.com/gofiber/fiber/v2"
)

// PaymentController handles the direct plan-purchase checkout.
type PaymentController struct{}

func (pc *PaymentController) svc() *services.PaymentService {
	return services.NewPaymentService(database.DB, storage.NewStorageService())
}

// directPaymentData is the JSON payload sent alongside the receipt file.
type directPaymentData struct {
	TransactionID    string `json:"transactionId"`
	FullName         string `json:"fullName"`
	TelegramUsername string `json:"telegramUsername"`
	PhoneNumber      string `json:"phoneNumber"`
	CardNumber       string `json:"cardNumber"`
	CardOwner        string `json:"cardOwner"`
	PlanName         string `json:"planName"`
	PlanPrice        string `json:"planPrice"`
	PaymentDate      string `json:"paymentDate"`
}

// statusUpdateRequest is the body of the status endpoints.
type statusUpdateRequest struct {
	Status       string  `json:"status"`
	Message      string  `json:"message"`
	AdminComment *string `json:"adminComment"`
}

// paymentJSON shapes a payment for the API, with the stored status
// translated to the variant's external vocabulary.
func paymentJSON(p *models.Payment) fiber.Map {
	m := fiber.Map{
		"id":             p.ID,
		"variant":        p.Variant,
		"transaction_id": p.TransactionID,
		"status":         p.ExternalStatus(),
		"created_at":     p.CreatedAt,
		"updated_at":     p.UpdatedAt,
	}
	if p.FullName != "" {
		m["full_name"] = p.FullName
	}
	if p.TelegramUsername != "" {
		m["telegram_username"] = p.TelegramUsername
	}
	if p.PhoneNumber != "" {
		m["phone_number"] = p.PhoneNumber
	}
	if p.Email != "" {
		m["email"] = p.Email
	}
	if p.Passport != "" {
		m["passport"] = p.Passport
	}
	if p.Address != "" {
		m["address"] = p.Address
	}
	if p.CardNumber != "" {
		m["card_number"] = p.CardNumber
		m["card_owner"] = p.CardOwner
	}
	if p.PlanName != "" {
		m["plan_name"] = p.PlanName
		m["plan_price"] = p.PlanPrice
	}
	if p.PaymentDate != nil {
		m["payment_date"] = p.PaymentDate
	}
	if p.Variant == models.VariantCourse {
		m["registration_date"] = p.RegistrationDate
		m["course_start_date"] = p.CourseStartDate
		m["course_time_slot"] = p.CourseTimeSlot
		m["course_days"] = p.CourseDays
	}
	if p.Variant == models.VariantModal {
		m["base_amount"] = p.BaseAmount
		m["additional_amount"] = p.AdditionalAmount
		m["final_amount"] = p.FinalAmount
		m["subscription_type"] = p.SubscriptionType
		m["promo_discount"] = p.PromoDiscount
		m["yearly_discount"] = p.YearlyDiscount
		m["courses"] = p.Courses
		m["admin_comment"] = p.AdminComment
	}
	if p.ReceiptFilename != "" {
		m["receipt_filename"] = p.ReceiptFilename
		m["receipt_size"] = p.ReceiptSize
		m["receipt_type"] = p.ReceiptType
		m["receipt_uploaded_at"] = p.ReceiptUploadedAt
	}
	return m
}

// parsePaymentData decodes the multipart paymentData field.
func parsePaymentData(c *fiber.Ctx, out interface{}) error {
	raw := c.FormValue("paymentData")
	if raw == "" {
		return errors.New("payment data is missing")
	}
	return json.Unmarshal([]byte(raw), out)
}

// parseDate accepts the timestamp formats the frontend sends.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func paymentError(c *fiber.Ctx, err error, fallback string) error {
	status := services.HTTPStatus(err)
	msg := fallback
	if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrNotFound) {
		msg = err.Error()
	}
	if errors.Is(err, storage.ErrFileType) || errors.Is(err, storage.ErrFileTooLarge) {
		status = fiber.StatusBadRequest
		msg = err.Error()
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"message": msg,
	})
}

// CreateWithReceipt records a new payment together with its uploaded receipt
func (pc *PaymentController) CreateWithReceipt(c *fiber.Ctx) error {
	file, err := c.FormFile("receipt")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Payment receipt was not uploaded",
		})
	}

	var data directPaymentData
	if err := parsePaymentData(c, &data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Payment data is missing or malformed",
		})
	}

	store := storage.NewStorageService()
	stored, err := store.SaveReceipt(file, "receipts", storage.AllowedImageTypes)
	if err != nil {
		return paymentError(c, err, "Failed to store receipt")
	}

	payment, err := pc.svc().Create(services.PaymentInput{
		Variant:          models.VariantDirect,
		TransactionID:    data.TransactionID,
		FullName:         data.FullName,
		TelegramUsername: data.TelegramUsername,
		PhoneNumber:      data.PhoneNumber,
		CardNumber:       data.CardNumber,
		CardOwner:        data.CardOwner,
		PlanName:         data.PlanName,
		PlanPrice:        data.PlanPrice,
		PaymentDate:      parseDate(data.PaymentDate),
	}, stored)
	if err != nil {
		return paymentError(c, err, "Failed to create payment")
	}

	middleware.LogActivity(c, "CREATE", "payments", payment.ID, fiber.Map{"transaction_id": payment.TransactionID})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Payment created successfully",
		"payment": paymentJSON(payment),
	})
}

// GetReceipt serves a stored receipt image
func (pc *PaymentController) GetReceipt(c *fiber.Ctx) error {
	filename := c.Params("filename")

	path, err := storage.NewStorageService().ResolveReceipt("receipts", filename)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Receipt not found",
		})
	}

	c.Set("Content-Type", storage.ContentTypeFor(filename))
	c.Set("Cache-Control", "public, max-age=31536000")
	c.Set("Content-Disposition", `inline; filename="`+filename+`"`)
	return c.SendFile(path)
}

// GetAllPayments lists every direct payment, newest first
func (pc *PaymentController) GetAllPayments(c *fiber.Ctx) error {
	payments, err := pc.svc().ListAll(models.VariantDirect)
	if err != nil {
		return paymentError(c, err, "Failed to fetch payments")
	}

	out := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		p := paymentJSON(&payments[i])
		if payments[i].ReceiptFilename != "" {
			p["receipt_image_url"] = "/api/payments/receipt/" + payments[i].ReceiptFilename
		}
		out = append(out, p)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"count":    len(out),
		"payments": out,
	})
}

// GetUserPayments returns a user's payment history by phone number
func (pc *PaymentController) GetUserPayments(c *fiber.Ctx) error {
	phone := c.Params("phoneNumber")

	payments, err := pc.svc().ListByPhone(models.VariantDirect, phone)
	if err != nil {
		return paymentError(c, err, "Failed to fetch payments")
	}

	out := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		p := paymentJSON(&payments[i])
		if payments[i].ReceiptFilename != "" {
			p["receipt_image_url"] = "/api/payments/receipt/" + payments[i].ReceiptFilename
		}
		out = append(out, p)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"count":    len(out),
		"payments": out,
	})
}

// GetPaymentByTransaction returns one payment by its transaction id
func (pc *PaymentController) GetPaymentByTransaction(c *fiber.Ctx) error {
	txID := c.Params("transactionId")

	payment, err := pc.svc().GetByTransactionID(models.VariantDirect, txID)
	if err != nil {
		return paymentError(c, err, "Failed to fetch payment")
	}

	p := paymentJSON(payment)
	if payment.ReceiptFilename != "" {
		p["receipt_image_url"] = "/api/payments/receipt/" + payment.ReceiptFilename
	}

	return c.JSON(fiber.Map{
		"success": true,
		"payment": p,
	})
}

// GetStats returns the direct checkout's aggregate statistics
func (pc *PaymentController) GetStats(c *fiber.Ctx) error {
	stats, err := pc.svc().Stats(models.VariantDirect)
	if err != nil {
		return paymentError(c, err, "Failed to fetch payment statistics")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"general": stats,
		"plans":   stats.Plans,
	})
}

// GetRecentPayments returns the five newest payments
func (pc *PaymentController) GetRecentPayments(c *fiber.Ctx) error {
	payments, err := pc.svc().Recent(models.VariantDirect, 5)
	if err != nil {
		return paymentError(c, err, "Failed to fetch recent payments")
	}

	out := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		out = append(out, paymentJSON(&payments[i]))
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"payments": out,
	})
}

// UpdateStatus sets a payment's status by numeric id
func (pc *PaymentController) UpdateStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Payment id is missing",
		})
	}

	var req statusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	payment, err := pc.svc().UpdateStatusByID(models.VariantDirect, uint(id), req.Status, nil)
	if err != nil {
		return paymentError(c, err, "Failed to update payment status")
	}

	middleware.LogActivity(c, "UPDATE", "payments", payment.ID, fiber.Map{"status": req.Status})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment status updated successfully: " + req.Status,
		"payment": paymentJSON(payment),
	})
}

// ConfirmPayment records the admin's confirmation message and final status
func (pc *PaymentController) ConfirmPayment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Payment id is missing",
		})
	}

	var req statusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Confirmation message is missing",
		})
	}
	if req.Status == "" {
		req.Status = "completed"
	}

	payment, err := pc.svc().UpdateStatusByID(models.VariantDirect, uint(id), req.Status, &req.Message)
	if err != nil {
		return paymentError(c, err, "Failed to send confirmation")
	}

	middleware.LogActivity(c, "CONFIRM", "payments", payment.ID, fiber.Map{"status": req.Status})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Confirmation sent successfully",
		"payment": paymentJSON(payment),
	})
}
