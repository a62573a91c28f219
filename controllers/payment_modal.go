package controllers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"infinityschool_go/database"
	"infinityschool_go/middleware"
	"infinityschool_go/models"
	"infinityschool_go/services"
	"infinityschool_go/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

// PaymentModalController handles the modal checkout flow.
type PaymentModalController struct{}

func (pm *PaymentModalController) svc() *services.PaymentService {
	return services.NewPaymentService(database.DB, storage.NewStorageService())
}

// modalPaymentData is the JSON payload of the modal checkout.
type modalPaymentData struct {
	AdditionalAmount int64           `json:"additionalAmount"`
	BaseAmount       int64           `json:"baseAmount"`
	FinalAmount      int64           `json:"finalAmount"`
	SubscriptionType string          `json:"subscriptionType"`
	Discounts        *modalDiscounts `json:"discounts"`
	Address          string          `json:"address"`
	Email            string          `json:"email"`
	Passport         string          `json:"passport"`
	Phone            string          `json:"phone"`
	Courses          json.RawMessage `json:"courses"`
}

type modalDiscounts struct {
	Promo  string `json:"promo"`
	Yearly string `json:"yearly"`
}

func modalPaymentJSON(p *models.Payment) fiber.Map {
	m := paymentJSON(p)
	if p.ReceiptFilename != "" {
		m["receipt_url"] = "/uploads/receipts/" + p.ReceiptFilename
	}
	return m
}

// UploadReceipt stores a receipt image ahead of the checkout itself
func (pm *PaymentModalController) UploadReceipt(c *fiber.Ctx) error {
	file, err := c.FormFile("receipt")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Image was not uploaded",
		})
	}

	stored, err := storage.NewStorageService().SaveReceipt(file, "receipts", storage.AllowedImageTypes)
	if err != nil {
		return paymentError(c, err, "Failed to upload image")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Image uploaded successfully",
		"data": fiber.Map{
			"fileName": stored.Filename,
			"path":     stored.Path,
		},
	})
}

// CreatePayment records a new modal checkout with status pending
func (pm *PaymentModalController) CreatePayment(c *fiber.Ctx) error {
	var data modalPaymentData
	if err := parsePaymentData(c, &data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Payment data is missing or malformed",
		})
	}

	var stored *storage.StoredFile
	store := storage.NewStorageService()
	if file, err := c.FormFile("receipt"); err == nil {
		stored, err = store.SaveReceipt(file, "receipts", storage.AllowedImageTypes)
		if err != nil {
			return paymentError(c, err, "Failed to store receipt")
		}
	}

	if data.SubscriptionType == "" {
		data.SubscriptionType = "monthly"
	}
	promo, yearly := "Yo'q", "Yo'q"
	if data.Discounts != nil {
		if data.Discounts.Promo != "" {
			promo = data.Discounts.Promo
		}
		if data.Discounts.Yearly != "" {
			yearly = data.Discounts.Yearly
		}
	}
	courses := models.JSON("[]")
	if len(data.Courses) > 0 {
		courses = models.JSON(data.Courses)
	}

	payment, err := pm.svc().Create(services.PaymentInput{
		Variant:          models.VariantModal,
		Email:            data.Email,
		PhoneNumber:      data.Phone,
		Passport:         data.Passport,
		Address:          data.Address,
		BaseAmount:       data.BaseAmount,
		AdditionalAmount: data.AdditionalAmount,
		FinalAmount:      data.FinalAmount,
		SubscriptionType: data.SubscriptionType,
		PromoDiscount:    promo,
		YearlyDiscount:   yearly,
		Courses:          courses,
	}, stored)
	if err != nil {
		return paymentError(c, err, "Failed to save payment")
	}

	middleware.LogActivity(c, "CREATE", "payment-modal", payment.ID, fiber.Map{"transaction_id": payment.TransactionID})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment saved successfully",
		"data": fiber.Map{
			"transaction_id": payment.TransactionID,
			"status":         payment.ExternalStatus(),
		},
	})
}

// GetAllPayments lists modal payments with pagination, search and date range
func (pm *PaymentModalController) GetAllPayments(c *fiber.Ctx) error {
	opts := services.ListOptions{
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 10),
		Search:    c.Query("search"),
		StartDate: parseDate(c.Query("startDate")),
		EndDate:   parseDate(c.Query("endDate")),
		SortBy:    c.Query("sortBy", "created_at"),
		SortOrder: c.Query("sortOrder", "desc"),
	}

	payments, pagination, err := pm.svc().List(models.VariantModal, opts)
	if err != nil {
		return paymentError(c, err, "Failed to fetch payments")
	}

	out := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		out = append(out, modalPaymentJSON(&payments[i]))
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       out,
		"pagination": pagination,
		"filters": fiber.Map{
			"search":    opts.Search,
			"startDate": c.Query("startDate"),
			"endDate":   c.Query("endDate"),
			"sortBy":    opts.SortBy,
			"sortOrder": opts.SortOrder,
		},
	})
}

// GetStatistics returns the modal checkout's dashboard numbers
func (pm *PaymentModalController) GetStatistics(c *fiber.Ctx) error {
	stats, err := pm.svc().Statistics()
	if err != nil {
		return paymentError(c, err, "Failed to fetch statistics")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"totalPayments": stats.TotalPayments,
			"totalAmount":   stats.TotalAmount,
			"today": fiber.Map{
				"count":  stats.TodayCount,
				"amount": stats.TodayAmount,
			},
			"subscriptionTypes": stats.SubscriptionTypes,
			"monthlyStats":      stats.Monthly,
		},
	})
}

// GetPaymentByTransaction returns one modal payment by transaction id
func (pm *PaymentModalController) GetPaymentByTransaction(c *fiber.Ctx) error {
	txID := c.Params("id")

	payment, err := pm.svc().GetByTransactionID(models.VariantModal, txID)
	if err != nil {
		return paymentError(c, err, "Failed to fetch payment")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    modalPaymentJSON(payment),
	})
}

// GetUserPayments returns one user's modal payments by email, paginated
func (pm *PaymentModalController) GetUserPayments(c *fiber.Ctx) error {
	email := c.Params("email")

	payments, pagination, err := pm.svc().ListByEmail(models.VariantModal, email,
		c.QueryInt("page", 1), c.QueryInt("limit", 10))
	if err != nil {
		return paymentError(c, err, "Failed to fetch payments")
	}

	out := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		out = append(out, modalPaymentJSON(&payments[i]))
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       out,
		"pagination": pagination,
	})
}

// GetReceipt serves a stored receipt image by filename
func (pm *PaymentModalController) GetReceipt(c *fiber.Ctx) error {
	fileName := c.Params("fileName")

	path, err := storage.NewStorageService().ResolveReceipt("receipts", fileName)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Image not found",
		})
	}

	c.Set("Content-Type", storage.ContentTypeFor(fileName))
	return c.SendFile(path)
}

// Export downloads modal payments as CSV, or XLSX when format=xlsx
func (pm *PaymentModalController) Export(c *fiber.Ctx) error {
	payments, err := pm.svc().Export(parseDate(c.Query("startDate")), parseDate(c.Query("endDate")))
	if err != nil {
		return paymentError(c, err, "Failed to export payments")
	}

	stamp := time.Now().Format("2006-01-02")

	if c.Query("format") == "xlsx" {
		return pm.exportXLSX(c, payments, stamp)
	}

	var b strings.Builder
	b.WriteString("Transaction ID,Email,Phone,Amount,Subscription Type,Date\n")
	for i := range payments {
		p := &payments[i]
		b.WriteString(fmt.Sprintf("%s,%s,%s,%d,%s,%s\n",
			p.TransactionID, p.Email, p.PhoneNumber, p.FinalAmount,
			p.SubscriptionType, p.CreatedAt.Format("2006-01-02 15:04:05")))
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=payments-%s.csv", stamp))
	return c.SendString(b.String())
}

func (pm *PaymentModalController) exportXLSX(c *fiber.Ctx, payments []models.Payment, stamp string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Payments"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Transaction ID", "Email", "Phone", "Amount", "Subscription Type", "Status", "Date"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row := range payments {
		p := &payments[row]
		values := []interface{}{
			p.TransactionID,
			p.Email,
			p.PhoneNumber,
			p.FinalAmount,
			p.SubscriptionType,
			p.ExternalStatus(),
			p.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return paymentError(c, err, "Failed to export payments")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=payments-%s.xlsx", stamp))
	return c.Send(buf.Bytes())
}

// UpdateStatus sets a modal payment's status by transaction id, with an
// optional admin comment
func (pm *PaymentModalController) UpdateStatus(c *fiber.Ctx) error {
	txID := c.Params("transactionId")

	var req statusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	payment, err := pm.svc().UpdateStatusByTransactionID(models.VariantModal, txID, req.Status, req.AdminComment)
	if err != nil {
		return paymentError(c, err, "Failed to update payment status")
	}

	middleware.LogActivity(c, "UPDATE", "payment-modal", payment.ID, fiber.Map{"status": req.Status})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment status updated successfully: " + req.Status,
		"data":    modalPaymentJSON(payment),
	})
}

// GetByStatus lists modal payments filtered by status ("all" for everything)
func (pm *PaymentModalController) GetByStatus(c *fiber.Ctx) error {
	status := c.Params("status")

	payments, pagination, err := pm.svc().List(models.VariantModal, services.ListOptions{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
		Status: status,
	})
	if err != nil {
		return paymentError(c, err, "Failed to fetch payments")
	}

	out := make([]fiber.Map, 0, len(payments))
	for i := range payments {
		out = append(out, modalPaymentJSON(&payments[i]))
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       out,
		"pagination": pagination,
	})
}

// GetStatusCounts tallies modal payments per status
func (pm *PaymentModalController) GetStatusCounts(c *fiber.Ctx) error {
	counts, err := pm.svc().StatusCounts()
	if err != nil {
		return paymentError(c, err, "Failed to fetch status counts")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    counts,
	})
}
