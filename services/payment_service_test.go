package services

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"infinityschool_go/models"
	"infinityschool_go/storage"
)

func TestCreateStartsPending(t *testing.T) {
	svc := NewPaymentService(newTestDB(t), nil)

	payment, err := svc.Create(PaymentInput{
		Variant:     models.VariantModal,
		Email:       "student@example.com",
		PhoneNumber: "+998901234567",
		FinalAmount: 250000,
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if payment.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", payment.Status)
	}
	if ok, _ := regexp.MatchString(`^TX-[0-9A-F]{8}$`, payment.TransactionID); !ok {
		t.Errorf("transaction id %q does not match TX-XXXXXXXX", payment.TransactionID)
	}

	second, err := svc.Create(PaymentInput{
		Variant:     models.VariantModal,
		Email:       "student@example.com",
		PhoneNumber: "+998901234567",
	}, nil)
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}
	if second.TransactionID == payment.TransactionID {
		t.Error("transaction ids must be unique")
	}
}

func TestCreateCoursePrefix(t *testing.T) {
	svc := NewPaymentService(newTestDB(t), nil)

	payment, err := svc.Create(PaymentInput{
		Variant:          models.VariantCourse,
		FullName:         "Aziz Karimov",
		TelegramUsername: "@aziz",
		PhoneNumber:      "+998901234567",
		CardNumber:       "8600123412341234",
		CardOwner:        "AZIZ KARIMOV",
		PlanName:         "Frontend",
		PlanPrice:        "1200000",
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, _ := regexp.MatchString(`^CP-[0-9A-F]{8}$`, payment.TransactionID); !ok {
		t.Errorf("transaction id %q does not match CP-XXXXXXXX", payment.TransactionID)
	}
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	svc := NewPaymentService(newTestDB(t), nil)

	_, err := svc.Create(PaymentInput{Variant: models.VariantModal, PhoneNumber: "+998901234567"}, nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("missing email: err = %v, want ErrValidation", err)
	}

	_, err = svc.Create(PaymentInput{Variant: models.VariantDirect, FullName: "X"}, nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("missing direct fields: err = %v, want ErrValidation", err)
	}

	_, err = svc.Create(PaymentInput{Variant: models.PaymentVariant("wire")}, nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unknown variant: err = %v, want ErrValidation", err)
	}
}

func TestCreateFailureRemovesReceipt(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewStorageServiceAt(dir, 1<<20)
	svc := NewPaymentService(newTestDB(t), store)

	seedReceipt := func(name string) *storage.StoredFile {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("png"), 0644); err != nil {
			t.Fatalf("seed receipt: %v", err)
		}
		return &storage.StoredFile{Filename: name, Path: path, ContentType: "image/png"}
	}

	// field validation fails after the upload was already stored
	orphan := seedReceipt("rejected.png")
	_, err := svc.Create(PaymentInput{
		Variant:     models.VariantModal,
		PhoneNumber: "+998901234567", // email missing
	}, orphan)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if _, err := os.Stat(orphan.Path); !os.IsNotExist(err) {
		t.Errorf("receipt %s still on disk after failed create", orphan.Path)
	}

	// a successful create keeps its receipt
	kept := seedReceipt("kept.png")
	if _, err := svc.Create(PaymentInput{
		Variant:     models.VariantModal,
		Email:       "student@example.com",
		PhoneNumber: "+998901234567",
	}, kept); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := os.Stat(kept.Path); err != nil {
		t.Errorf("receipt of successful create missing: %v", err)
	}
}

func TestUpdateStatusInvalidValueLeavesRowUnchanged(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, nil)

	payment, err := svc.Create(PaymentInput{
		Variant:     models.VariantModal,
		Email:       "student@example.com",
		PhoneNumber: "+998901234567",
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.UpdateStatusByTransactionID(models.VariantModal, payment.TransactionID, "completed", nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	var stored models.Payment
	if err := db.First(&stored, payment.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != models.StatusPending {
		t.Errorf("status changed to %q after rejected update", stored.Status)
	}
}

func TestUpdateStatusUnknownPayment(t *testing.T) {
	svc := NewPaymentService(newTestDB(t), nil)

	_, err := svc.UpdateStatusByTransactionID(models.VariantModal, "TX-DEADBEEF", "approved", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	_, err = svc.UpdateStatusByID(models.VariantDirect, 999, "completed", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusCanonicalizes(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, nil)

	payment, err := svc.Create(PaymentInput{
		Variant:          models.VariantCourse,
		FullName:         "Aziz Karimov",
		TelegramUsername: "@aziz",
		PhoneNumber:      "+998901234567",
		CardNumber:       "8600123412341234",
		CardOwner:        "AZIZ KARIMOV",
		PlanName:         "Frontend",
		PlanPrice:        "1200000",
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// legacy alias on input, canonical form in storage
	updated, err := svc.UpdateStatusByID(models.VariantCourse, payment.ID, "success", nil)
	if err != nil {
		t.Fatalf("UpdateStatusByID: %v", err)
	}
	if updated.Status != models.StatusSuccess {
		t.Errorf("stored status = %q, want success", updated.Status)
	}
	if got := updated.ExternalStatus(); got != "completed" {
		t.Errorf("external status = %q, want completed", got)
	}
}

func TestUpdateStatusStoresAdminComment(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, nil)

	payment, err := svc.Create(PaymentInput{
		Variant:     models.VariantModal,
		Email:       "student@example.com",
		PhoneNumber: "+998901234567",
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	comment := "verified against bank statement"
	if _, err := svc.UpdateStatusByTransactionID(models.VariantModal, payment.TransactionID, "approved", &comment); err != nil {
		t.Fatalf("UpdateStatusByTransactionID: %v", err)
	}

	stored, err := svc.GetByTransactionID(models.VariantModal, payment.TransactionID)
	if err != nil {
		t.Fatalf("GetByTransactionID: %v", err)
	}
	if stored.Status != models.StatusApproved {
		t.Errorf("status = %q, want approved", stored.Status)
	}
	if stored.AdminComment == nil || *stored.AdminComment != comment {
		t.Errorf("admin comment = %v, want %q", stored.AdminComment, comment)
	}

	// a later comment-less status change overwrites the old comment
	if _, err := svc.UpdateStatusByTransactionID(models.VariantModal, payment.TransactionID, "refunded", nil); err != nil {
		t.Fatalf("second update: %v", err)
	}
	stored, err = svc.GetByTransactionID(models.VariantModal, payment.TransactionID)
	if err != nil {
		t.Fatalf("GetByTransactionID: %v", err)
	}
	if stored.AdminComment != nil {
		t.Errorf("stale admin comment %q survived a comment-less update", *stored.AdminComment)
	}
}

func TestVariantsAreIsolated(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, nil)

	payment, err := svc.Create(PaymentInput{
		Variant:     models.VariantModal,
		Email:       "student@example.com",
		PhoneNumber: "+998901234567",
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.GetByTransactionID(models.VariantDirect, payment.TransactionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-variant lookup: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, nil)

	payment, err := svc.Create(PaymentInput{
		Variant:          models.VariantCourse,
		FullName:         "Aziz Karimov",
		TelegramUsername: "@aziz",
		PhoneNumber:      "+998901234567",
		CardNumber:       "8600123412341234",
		CardOwner:        "AZIZ KARIMOV",
		PlanName:         "Frontend",
		PlanPrice:        "1200000",
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(models.VariantCourse, payment.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.GetByID(models.VariantCourse, payment.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(models.VariantCourse, payment.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestListPaginationAndSearch(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, nil)

	for i := 0; i < 15; i++ {
		if _, err := svc.Create(PaymentInput{
			Variant:     models.VariantModal,
			Email:       "student@example.com",
			PhoneNumber: "+998901234567",
		}, nil); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}
	if _, err := svc.Create(PaymentInput{
		Variant:     models.VariantModal,
		Email:       "other@example.com",
		PhoneNumber: "+998907654321",
	}, nil); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	payments, pagination, err := svc.List(models.VariantModal, ListOptions{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if pagination.TotalItems != 16 {
		t.Errorf("total items = %d, want 16", pagination.TotalItems)
	}
	if pagination.TotalPages != 2 {
		t.Errorf("total pages = %d, want 2", pagination.TotalPages)
	}
	if len(payments) != 6 {
		t.Errorf("page 2 size = %d, want 6", len(payments))
	}

	found, _, err := svc.List(models.VariantModal, ListOptions{Search: "other@"})
	if err != nil {
		t.Fatalf("List search: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("search hits = %d, want 1", len(found))
	}
}

func TestStatusCountsCoverAllStatuses(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, nil)

	payment, err := svc.Create(PaymentInput{
		Variant:     models.VariantModal,
		Email:       "student@example.com",
		PhoneNumber: "+998901234567",
		FinalAmount: 100000,
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.UpdateStatusByTransactionID(models.VariantModal, payment.TransactionID, "approved", nil); err != nil {
		t.Fatalf("UpdateStatusByTransactionID: %v", err)
	}

	counts, err := svc.StatusCounts()
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	for _, status := range []string{"pending", "approved", "rejected", "refunded"} {
		if _, ok := counts[status]; !ok {
			t.Errorf("missing status %q in counts", status)
		}
	}
	if counts["approved"].Count != 1 || counts["approved"].Amount != 100000 {
		t.Errorf("approved = %+v, want count 1 amount 100000", counts["approved"])
	}
}
