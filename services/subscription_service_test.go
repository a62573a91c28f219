package services

import (
	"errors"
	"testing"
	"time"

	"infinityschool_go/models"
)

func seedSubscription(t *testing.T, svc *SubscriptionService, userID uint) *models.Subscription {
	t.Helper()
	sub, err := svc.Create(userID, 1, "Standard", "250000")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sub
}

func TestCreateFirstSubscriptionStartsNow(t *testing.T) {
	svc := NewSubscriptionService(newTestDB(t))

	before := time.Now()
	sub := seedSubscription(t, svc, 1)

	if sub.StartDate.Before(before.Add(-time.Second)) {
		t.Errorf("start date %v is before creation time", sub.StartDate)
	}
	if got := sub.EndDate.Sub(sub.StartDate); got != 30*24*time.Hour {
		t.Errorf("period = %v, want 720h", got)
	}
	if sub.Status != "active" {
		t.Errorf("status = %q, want active", sub.Status)
	}
}

func TestRenewalChainsOntoActivePeriod(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db)

	first := seedSubscription(t, svc, 1)

	second, err := svc.Create(1, 2, "Standard", "250000")
	if err != nil {
		t.Fatalf("renew: %v", err)
	}

	if !second.StartDate.Equal(first.EndDate) {
		t.Errorf("renewal starts at %v, want %v (end of current period)", second.StartDate, first.EndDate)
	}
	if got := second.EndDate.Sub(second.StartDate); got != 30*24*time.Hour {
		t.Errorf("period = %v, want 720h", got)
	}

	// old row is retired
	var old models.Subscription
	if err := db.First(&old, first.ID).Error; err != nil {
		t.Fatalf("reload first: %v", err)
	}
	if old.Status != "inactive" {
		t.Errorf("previous subscription status = %q, want inactive", old.Status)
	}
}

func TestRenewalAfterLapseStartsNow(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db)

	// an active row whose period already ended
	expired := models.Subscription{
		UserID:    1,
		PaymentID: 1,
		StartDate: time.Now().Add(-60 * 24 * time.Hour),
		EndDate:   time.Now().Add(-30 * 24 * time.Hour),
		Status:    "active",
		PlanName:  "Standard",
		PlanPrice: "250000",
	}
	if err := db.Create(&expired).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	before := time.Now()
	sub, err := svc.Create(1, 2, "Standard", "250000")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if sub.StartDate.Before(before.Add(-time.Second)) {
		t.Errorf("lapsed renewal start = %v, want now", sub.StartDate)
	}
	if sub.StartDate.Equal(expired.EndDate) {
		t.Error("lapsed renewal must not chain onto the old end date")
	}

	// the lapsed row is not retired by the renewal; lazy expiry owns it
	var old models.Subscription
	if err := db.First(&old, expired.ID).Error; err != nil {
		t.Fatalf("reload lapsed row: %v", err)
	}
	if old.Status != "active" {
		t.Errorf("lapsed row status = %q, want active until lazy expiry", old.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewSubscriptionService(newTestDB(t))

	if _, err := svc.Create(0, 1, "Standard", "250000"); !errors.Is(err, ErrValidation) {
		t.Errorf("missing user: err = %v, want ErrValidation", err)
	}
	if _, err := svc.Create(1, 1, "", "250000"); !errors.Is(err, ErrValidation) {
		t.Errorf("missing plan: err = %v, want ErrValidation", err)
	}
}

func TestStatusReturnsNilWithoutSubscription(t *testing.T) {
	svc := NewSubscriptionService(newTestDB(t))

	sub, err := svc.Status(42)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if sub != nil {
		t.Errorf("sub = %+v, want nil", sub)
	}
}

func TestStatusLazyExpiryPersists(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db)

	lapsed := models.Subscription{
		UserID:    1,
		PaymentID: 1,
		StartDate: time.Now().Add(-40 * 24 * time.Hour),
		EndDate:   time.Now().Add(-10 * 24 * time.Hour),
		Status:    "active",
		PlanName:  "Standard",
		PlanPrice: "250000",
	}
	if err := db.Create(&lapsed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	sub, err := svc.Status(1)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if sub == nil {
		t.Fatal("expected lapsed subscription to be returned")
	}
	if sub.Status != "expired" {
		t.Errorf("status = %q, want expired", sub.Status)
	}

	// the flip is persisted, not just reported
	var stored models.Subscription
	if err := db.First(&stored, lapsed.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != "expired" {
		t.Errorf("stored status = %q, want expired", stored.Status)
	}

	active, err := svc.IsActive(1)
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Error("IsActive = true for expired subscription")
	}
}
