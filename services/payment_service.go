package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"infinityschool_go/models"
	"infinityschool_go/storage"
	"infinityschool_go/utils"

	"gorm.io/gorm"
)

// Transaction id prefixes per checkout flow.
const (
	txPrefixDirect = "PAY"
	txPrefixCourse = "CP"
	txPrefixModal  = "TX"
)

// PaymentInput carries the client-supplied fields of a new payment. Which
// fields are required depends on the variant.
type PaymentInput struct {
	Variant       models.PaymentVariant
	TransactionID string // optional; direct checkout may bring its own
	UserID        *uint

	FullName         string
	TelegramUsername string
	PhoneNumber      string
	Email            string
	Passport         string
	Address          string

	CardNumber string
	CardOwner  string

	PlanName    string
	PlanPrice   string
	PaymentDate *time.Time

	RegistrationDate *time.Time
	CourseStartDate  *time.Time
	CourseTimeSlot   string
	CourseDays       string

	BaseAmount       int64
	AdditionalAmount int64
	FinalAmount      int64
	SubscriptionType string
	PromoDiscount    string
	YearlyDiscount   string
	Courses          models.JSON
}

// ListOptions controls pagination and filtering of payment listings.
type ListOptions struct {
	Page      int
	Limit     int
	Search    string
	Status    string // external value or "all"
	StartDate *time.Time
	EndDate   *time.Time
	SortBy    string
	SortOrder string
}

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

// PlanStat counts payments per plan.
type PlanStat struct {
	PlanName        string `json:"plan_name"`
	Count           int64  `json:"count"`
	SuccessfulCount int64  `json:"successful_count"`
}

// GroupStat is a generic label/count pair (time slots, course days,
// subscription types).
type GroupStat struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// PaymentStats aggregates a variant's payments for the admin dashboard.
type PaymentStats struct {
	TotalPayments      int64       `json:"total_payments"`
	SuccessfulPayments int64       `json:"successful_payments"`
	PendingPayments    int64       `json:"pending_payments"`
	FailedPayments     int64       `json:"failed_payments"`
	UniqueUsers        int64       `json:"unique_users"`
	Plans              []PlanStat  `json:"plans"`
	TimeSlots          []GroupStat `json:"timeSlots,omitempty"`
	CourseDays         []GroupStat `json:"courseDays,omitempty"`
}

// StatusCount is the per-status tally of the modal checkout.
type StatusCount struct {
	Count  int64 `json:"count"`
	Amount int64 `json:"amount"`
}

// MonthlyStat aggregates modal payments per calendar month.
type MonthlyStat struct {
	Month string `json:"month"` // YYYY-MM
	Count int64  `json:"count"`
	Total int64  `json:"total"`
}

// ModalStatistics is the modal checkout's dashboard payload.
type ModalStatistics struct {
	TotalPayments     int64         `json:"totalPayments"`
	TotalAmount       int64         `json:"totalAmount"`
	TodayCount        int64         `json:"todayCount"`
	TodayAmount       int64         `json:"todayAmount"`
	SubscriptionTypes []GroupStat   `json:"subscriptionTypes"`
	Monthly           []MonthlyStat `json:"monthlyStats"`
}

// PaymentService is the transactional core shared by the three checkout
// flows. The variant argument selects the status vocabulary and the rows the
// operation can see.
type PaymentService struct {
	db    *gorm.DB
	store *storage.StorageService
}

func NewPaymentService(db *gorm.DB, store *storage.StorageService) *PaymentService {
	return &PaymentService{db: db, store: store}
}

// Create records a new payment with status pending. When the insert fails
// the already-stored receipt file is removed so no orphan remains on disk.
func (s *PaymentService) Create(input PaymentInput, receipt *storage.StoredFile) (*models.Payment, error) {
	fail := func(err error) (*models.Payment, error) {
		if receipt != nil && s.store != nil {
			_ = s.store.Delete(receipt.Path)
		}
		return nil, err
	}

	if _, err := models.PolicyFor(input.Variant); err != nil {
		return fail(Validationf("%v", err))
	}
	if err := validateInput(input); err != nil {
		return fail(err)
	}

	txID := input.TransactionID
	if txID == "" {
		txID = utils.GenerateTransactionID(txPrefix(input.Variant))
	}

	payment := models.Payment{
		Variant:          input.Variant,
		TransactionID:    txID,
		Status:           models.StatusPending,
		UserID:           input.UserID,
		FullName:         input.FullName,
		TelegramUsername: input.TelegramUsername,
		PhoneNumber:      input.PhoneNumber,
		Email:            input.Email,
		Passport:         input.Passport,
		Address:          input.Address,
		CardNumber:       input.CardNumber,
		CardOwner:        input.CardOwner,
		PlanName:         input.PlanName,
		PlanPrice:        input.PlanPrice,
		PaymentDate:      input.PaymentDate,
		RegistrationDate: input.RegistrationDate,
		CourseStartDate:  input.CourseStartDate,
		CourseTimeSlot:   input.CourseTimeSlot,
		CourseDays:       input.CourseDays,
		BaseAmount:       input.BaseAmount,
		AdditionalAmount: input.AdditionalAmount,
		FinalAmount:      input.FinalAmount,
		SubscriptionType: input.SubscriptionType,
		PromoDiscount:    input.PromoDiscount,
		YearlyDiscount:   input.YearlyDiscount,
		Courses:          input.Courses,
	}

	if receipt != nil {
		now := time.Now()
		payment.ReceiptFilename = receipt.Filename
		payment.ReceiptPath = receipt.Path
		payment.ReceiptSize = receipt.Size
		payment.ReceiptType = receipt.ContentType
		payment.ReceiptUploadedAt = &now
	}

	if err := s.db.Create(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return fail(Validationf("transaction id %s already exists", txID))
		}
		return fail(fmt.Errorf("%w: %v", ErrStorage, err))
	}

	return &payment, nil
}

// GetByID returns one payment of a variant by its numeric id.
func (s *PaymentService) GetByID(variant models.PaymentVariant, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Where("variant = ? AND id = ?", variant, id).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundf("payment %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByTransactionID returns one payment of a variant by its transaction id.
func (s *PaymentService) GetByTransactionID(variant models.PaymentVariant, txID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Where("variant = ? AND transaction_id = ?", variant, txID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundf("payment %s", txID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListAll returns every payment of a variant, newest first.
func (s *PaymentService) ListAll(variant models.PaymentVariant) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.Where("variant = ?", variant).Order("created_at DESC").Find(&payments).Error
	return payments, err
}

// ListByPhone returns a user's payment history by phone number.
func (s *PaymentService) ListByPhone(variant models.PaymentVariant, phone string) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.Where("variant = ? AND phone_number = ?", variant, phone).
		Order("created_at DESC").Find(&payments).Error
	return payments, err
}

// ListByEmail returns a user's payment history by email, paginated.
func (s *PaymentService) ListByEmail(variant models.PaymentVariant, email string, page, limit int) ([]models.Payment, *Pagination, error) {
	return s.list(variant, s.db.Where("email = ?", email), ListOptions{Page: page, Limit: limit})
}

// List returns one page of a variant's payments with optional search, date
// range and status filtering.
func (s *PaymentService) List(variant models.PaymentVariant, opts ListOptions) ([]models.Payment, *Pagination, error) {
	q := s.db
	if opts.Search != "" {
		like := "%" + opts.Search + "%"
		q = q.Where("transaction_id LIKE ? OR email LIKE ? OR phone_number LIKE ?", like, like, like)
	}
	if opts.Status != "" && opts.Status != "all" {
		policy, err := models.PolicyFor(variant)
		if err != nil {
			return nil, nil, Validationf("%v", err)
		}
		stored, err := policy.Internalize(opts.Status)
		if err != nil {
			return nil, nil, Validationf("%v", err)
		}
		q = q.Where("status = ?", stored)
	}
	if opts.StartDate != nil {
		q = q.Where("created_at >= ?", *opts.StartDate)
	}
	if opts.EndDate != nil {
		q = q.Where("created_at <= ?", *opts.EndDate)
	}
	return s.list(variant, q, opts)
}

// Recent returns the newest payments of a variant.
func (s *PaymentService) Recent(variant models.PaymentVariant, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 5
	}
	var payments []models.Payment
	err := s.db.Where("variant = ?", variant).
		Order("created_at DESC").Limit(limit).Find(&payments).Error
	return payments, err
}

// UpdateStatusByID sets a payment's status, addressing the row by numeric
// id. The external value is validated against the variant's vocabulary
// before anything is written.
func (s *PaymentService) UpdateStatusByID(variant models.PaymentVariant, id uint, externalStatus string, adminComment *string) (*models.Payment, error) {
	return s.updateStatus(variant, "id = ?", id, externalStatus, adminComment)
}

// UpdateStatusByTransactionID sets a payment's status, addressing the row by
// transaction id.
func (s *PaymentService) UpdateStatusByTransactionID(variant models.PaymentVariant, txID string, externalStatus string, adminComment *string) (*models.Payment, error) {
	return s.updateStatus(variant, "transaction_id = ?", txID, externalStatus, adminComment)
}

func (s *PaymentService) updateStatus(variant models.PaymentVariant, cond string, ref interface{}, externalStatus string, adminComment *string) (*models.Payment, error) {
	policy, err := models.PolicyFor(variant)
	if err != nil {
		return nil, Validationf("%v", err)
	}
	stored, err := policy.Internalize(externalStatus)
	if err != nil {
		return nil, Validationf("%v", err)
	}

	var payment models.Payment
	err = s.db.Transaction(func(tx *gorm.DB) error {
		q := lockForUpdate(tx).Where("variant = ?", variant).Where(cond, ref)
		if err := q.First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("payment %v", ref)
			}
			return err
		}

		now := time.Now()
		// the comment is overwritten on every status change, cleared when
		// the request carries none
		updates := map[string]interface{}{
			"status":        stored,
			"updated_at":    now,
			"admin_comment": adminComment,
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return err
		}

		payment.Status = stored
		payment.UpdatedAt = now
		payment.AdminComment = adminComment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Delete removes a payment and, after the row is gone, its receipt file.
func (s *PaymentService) Delete(variant models.PaymentVariant, id uint) error {
	var receiptPath string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Where("variant = ? AND id = ?", variant, id).First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("payment %d", id)
			}
			return err
		}
		receiptPath = payment.ReceiptPath
		return tx.Unscoped().Delete(&payment).Error
	})
	if err != nil {
		return err
	}

	if receiptPath != "" && s.store != nil {
		_ = s.store.Delete(receiptPath)
	}
	return nil
}

// Stats aggregates a variant's payments: totals, per-status counts, unique
// payers and per-plan breakdown; course checkouts additionally break down by
// time slot and course days.
func (s *PaymentService) Stats(variant models.PaymentVariant) (*PaymentStats, error) {
	stats := &PaymentStats{}
	base := func() *gorm.DB { return s.db.Model(&models.Payment{}).Where("variant = ?", variant) }

	if err := base().Count(&stats.TotalPayments).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.StatusSuccess).Count(&stats.SuccessfulPayments).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.StatusPending).Count(&stats.PendingPayments).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.StatusFailed).Count(&stats.FailedPayments).Error; err != nil {
		return nil, err
	}
	if err := base().Distinct("phone_number").Count(&stats.UniqueUsers).Error; err != nil {
		return nil, err
	}

	err := base().
		Select(`plan_name,
			COUNT(*) AS count,
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END) AS successful_count`).
		Group("plan_name").
		Order("count DESC").
		Scan(&stats.Plans).Error
	if err != nil {
		return nil, err
	}

	if variant == models.VariantCourse {
		if err := base().
			Select("course_time_slot AS label, COUNT(*) AS count").
			Group("course_time_slot").Order("count DESC").
			Scan(&stats.TimeSlots).Error; err != nil {
			return nil, err
		}
		if err := base().
			Select("course_days AS label, COUNT(*) AS count").
			Group("course_days").Order("count DESC").
			Scan(&stats.CourseDays).Error; err != nil {
			return nil, err
		}
	}

	return stats, nil
}

// Statistics is the modal checkout's dashboard: totals, today's volume,
// per-subscription-type counts and a six-month monthly series. The monthly
// bucketing happens in Go so it works the same on every database.
func (s *PaymentService) Statistics() (*ModalStatistics, error) {
	out := &ModalStatistics{}
	base := func() *gorm.DB {
		return s.db.Model(&models.Payment{}).Where("variant = ?", models.VariantModal)
	}

	if err := base().Count(&out.TotalPayments).Error; err != nil {
		return nil, err
	}

	var totalAmount struct{ Total int64 }
	if err := base().Select("COALESCE(SUM(final_amount), 0) AS total").Scan(&totalAmount).Error; err != nil {
		return nil, err
	}
	out.TotalAmount = totalAmount.Total

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var today struct {
		Count int64
		Total int64
	}
	err := base().
		Select("COUNT(*) AS count, COALESCE(SUM(final_amount), 0) AS total").
		Where("created_at >= ?", startOfDay).
		Scan(&today).Error
	if err != nil {
		return nil, err
	}
	out.TodayCount = today.Count
	out.TodayAmount = today.Total

	err = base().
		Select("subscription_type AS label, COUNT(*) AS count").
		Group("subscription_type").
		Scan(&out.SubscriptionTypes).Error
	if err != nil {
		return nil, err
	}

	since := now.AddDate(0, -6, 0)
	var rows []struct {
		CreatedAt   time.Time
		FinalAmount int64
	}
	if err := base().Select("created_at, final_amount").Where("created_at > ?", since).Scan(&rows).Error; err != nil {
		return nil, err
	}
	buckets := map[string]*MonthlyStat{}
	for _, r := range rows {
		key := r.CreatedAt.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &MonthlyStat{Month: key}
			buckets[key] = b
		}
		b.Count++
		b.Total += r.FinalAmount
	}
	months := make([]string, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	// newest month first
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	for _, m := range months {
		out.Monthly = append(out.Monthly, *buckets[m])
	}

	return out, nil
}

// StatusCounts tallies modal payments per status, always reporting every
// status of the vocabulary even when its count is zero.
func (s *PaymentService) StatusCounts() (map[string]StatusCount, error) {
	counts := map[string]StatusCount{
		models.StatusPending:  {},
		models.StatusApproved: {},
		models.StatusRejected: {},
		models.StatusRefunded: {},
	}

	var rows []struct {
		Status string
		Count  int64
		Amount int64
	}
	err := s.db.Model(&models.Payment{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(final_amount), 0) AS amount").
		Where("variant = ?", models.VariantModal).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		counts[r.Status] = StatusCount{Count: r.Count, Amount: r.Amount}
	}
	return counts, nil
}

// Export returns modal payments within an optional date range, newest first,
// for CSV/XLSX export.
func (s *PaymentService) Export(startDate, endDate *time.Time) ([]models.Payment, error) {
	q := s.db.Where("variant = ?", models.VariantModal)
	if startDate != nil {
		q = q.Where("created_at >= ?", *startDate)
	}
	if endDate != nil {
		q = q.Where("created_at <= ?", *endDate)
	}
	var payments []models.Payment
	err := q.Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (s *PaymentService) list(variant models.PaymentVariant, q *gorm.DB, opts ListOptions) ([]models.Payment, *Pagination, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 10
	}

	q = q.Model(&models.Payment{}).Where("variant = ?", variant)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var payments []models.Payment
	err := q.Order(orderClause(opts.SortBy, opts.SortOrder)).
		Limit(limit).Offset((page - 1) * limit).
		Find(&payments).Error
	if err != nil {
		return nil, nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return payments, &Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: limit,
	}, nil
}

// orderClause whitelists sortable columns; anything else falls back to
// creation time.
func orderClause(sortBy, sortOrder string) string {
	switch sortBy {
	case "created_at", "final_amount", "status", "transaction_id", "email":
	default:
		sortBy = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}
	return sortBy + " " + dir
}

func txPrefix(variant models.PaymentVariant) string {
	switch variant {
	case models.VariantCourse:
		return txPrefixCourse
	case models.VariantModal:
		return txPrefixModal
	default:
		return txPrefixDirect
	}
}

func validateInput(input PaymentInput) error {
	switch input.Variant {
	case models.VariantDirect:
		required := map[string]string{
			"fullName":         input.FullName,
			"telegramUsername": input.TelegramUsername,
			"phoneNumber":      input.PhoneNumber,
			"cardNumber":       input.CardNumber,
			"cardOwner":        input.CardOwner,
			"planName":         input.PlanName,
			"planPrice":        input.PlanPrice,
		}
		for field, value := range required {
			if strings.TrimSpace(value) == "" {
				return Validationf("field %s is required", field)
			}
		}
	case models.VariantCourse:
		required := map[string]string{
			"fullName":         input.FullName,
			"telegramUsername": input.TelegramUsername,
			"phoneNumber":      input.PhoneNumber,
			"cardNumber":       input.CardNumber,
			"cardOwner":        input.CardOwner,
			"planName":         input.PlanName,
			"planPrice":        input.PlanPrice,
		}
		for field, value := range required {
			if strings.TrimSpace(value) == "" {
				return Validationf("field %s is required", field)
			}
		}
	case models.VariantModal:
		if strings.TrimSpace(input.Email) == "" {
			return Validationf("field email is required")
		}
		if strings.TrimSpace(input.PhoneNumber) == "" {
			return Validationf("field phone is required")
		}
	}
	return nil
}
