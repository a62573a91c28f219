package services

import (
	"errors"
	"time"

	"infinityschool_go/models"

	"gorm.io/gorm"
)

// subscriptionPeriod is the fixed length of one paid period.
const subscriptionPeriod = 30 * 24 * time.Hour

// SubscriptionService manages access periods. One user holds at most one
// active subscription; renewing rolls the new period onto the end of the
// current one.
type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// Create starts or renews a user's subscription. The current active row is
// read under a row lock inside the same transaction, so two concurrent
// renewals cannot both chain onto the same period. When the active period
// still runs, the new one starts where it ends and the old row is retired to
// inactive; otherwise the new period starts now. Either way it lasts 30 days.
func (s *SubscriptionService) Create(userID, paymentID uint, planName, planPrice string) (*models.Subscription, error) {
	if userID == 0 || paymentID == 0 {
		return nil, Validationf("userId and paymentId are required")
	}
	if planName == "" || planPrice == "" {
		return nil, Validationf("planName and planPrice are required")
	}

	var sub models.Subscription
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		startDate := now

		var current models.Subscription
		err := lockForUpdate(tx).
			Where("user_id = ? AND status = ?", userID, "active").
			Order("end_date DESC").
			First(&current).Error
		switch {
		case err == nil:
			// A still-running period is retired and chained onto; a lapsed
			// one is left alone for lazy expiry to mark expired.
			if current.EndDate.After(now) {
				startDate = current.EndDate
				if err := tx.Model(&current).Update("status", "inactive").Error; err != nil {
					return err
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first subscription
		default:
			return err
		}

		sub = models.Subscription{
			UserID:    userID,
			PaymentID: paymentID,
			StartDate: startDate,
			EndDate:   startDate.Add(subscriptionPeriod),
			Status:    "active",
			PlanName:  planName,
			PlanPrice: planPrice,
		}
		return tx.Create(&sub).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Status returns the user's most recent active subscription with its payment
// attached, or nil when there is none. A subscription whose period has ended
// is flipped to expired on the spot; the expired row is still returned so the
// caller can tell "lapsed" from "never subscribed".
func (s *SubscriptionService) Status(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.Preload("Payment").
		Where("user_id = ? AND status = ?", userID, "active").
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if time.Now().After(sub.EndDate) {
		if err := s.db.Model(&sub).Update("status", "expired").Error; err != nil {
			return nil, err
		}
		sub.Status = "expired"
	}

	return &sub, nil
}

// IsActive reports whether the user currently holds a running subscription.
func (s *SubscriptionService) IsActive(userID uint) (bool, error) {
	sub, err := s.Status(userID)
	if err != nil {
		return false, err
	}
	return sub != nil && sub.Status == "active", nil
}
