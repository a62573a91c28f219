package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch s := value.(type) {
	case []byte:
		*j = append((*j)[0:0], s...)
	case string:
		*j = append((*j)[0:0], s...)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// User model. Accounts come from plain registration or from an OAuth
// provider; in the latter case Provider/ProviderID are set and refreshed
// on every login. Passwords are always stored as bcrypt hashes.
type User struct {
	BaseModel
	FullName         string `json:"full_name" gorm:"size:100;not null"`
	CodeName         string `json:"code_name" gorm:"size:100"`
	Email            string `json:"email" gorm:"size:100;uniqueIndex"`
	Phone            string `json:"phone" gorm:"size:20;index"` // uniqueness enforced in handlers; OAuth accounts have no phone
	PasswordHash     string `json:"-" gorm:"size:255"`
	TelegramUsername string `json:"telegram_username" gorm:"size:100"`
	Role             string `json:"role" gorm:"size:20;not null;default:'user'"`    // user, admin
	Status           string `json:"status" gorm:"size:20;not null;default:'active'"` // active, inactive
	Provider         string `json:"provider" gorm:"size:50"`
	ProviderID       string `json:"provider_id" gorm:"size:100"`
	Avatar           string `json:"avatar" gorm:"size:500"`
}

// Message model for the support chat. A reply is always an admin message
// carrying ReplyToMessageID; recording one flips HasReply on the original.
type Message struct {
	BaseModel
	Text             string `json:"text" gorm:"type:text;not null"`
	UserID           string `json:"user_id" gorm:"size:255;not null;index"`
	IsAdmin          bool   `json:"is_admin" gorm:"default:false"`
	Time             string `json:"time" gorm:"size:50"`
	HasReply         bool   `json:"has_reply" gorm:"default:false"`
	ReplyToMessageID *uint  `json:"reply_to_message_id" gorm:"index;default:null"`
}

// Payment model. One table holds all three checkout flows, discriminated
// by Variant; the per-variant status vocabulary lives in status.go.
type Payment struct {
	BaseModel
	Variant       PaymentVariant `json:"variant" gorm:"size:30;not null;index"`
	TransactionID string         `json:"transaction_id" gorm:"size:100;not null;uniqueIndex"`
	Status        string         `json:"-" gorm:"size:50;not null;default:'pending';index"`
	UserID        *uint          `json:"user_id"`

	// Payer identity
	FullName         string `json:"full_name" gorm:"size:100"`
	TelegramUsername string `json:"telegram_username" gorm:"size:100"`
	PhoneNumber      string `json:"phone_number" gorm:"size:20;index"`
	Email            string `json:"email" gorm:"size:255;index"`
	Passport         string `json:"passport" gorm:"size:50"`
	Address          string `json:"address" gorm:"type:text"`

	// Card details (direct and course checkouts)
	CardNumber string `json:"card_number" gorm:"size:19"`
	CardOwner  string `json:"card_owner" gorm:"size:100"`

	// Plan
	PlanName    string     `json:"plan_name" gorm:"size:100"`
	PlanPrice   string     `json:"plan_price" gorm:"size:100"`
	PaymentDate *time.Time `json:"payment_date"`

	// Course enrollment (course variant)
	RegistrationDate *time.Time `json:"registration_date"`
	CourseStartDate  *time.Time `json:"course_start_date"`
	CourseTimeSlot   string     `json:"course_time_slot" gorm:"size:50"`
	CourseDays       string     `json:"course_days" gorm:"size:100"`

	// Checkout amounts (modal variant)
	BaseAmount       int64  `json:"base_amount"`
	AdditionalAmount int64  `json:"additional_amount"`
	FinalAmount      int64  `json:"final_amount"`
	SubscriptionType string `json:"subscription_type" gorm:"size:50"`
	PromoDiscount    string `json:"promo_discount" gorm:"size:50"`
	YearlyDiscount   string `json:"yearly_discount" gorm:"size:50"`
	Courses          JSON   `json:"courses" gorm:"type:json"`

	AdminComment *string `json:"admin_comment" gorm:"type:text;default:null"`

	// Receipt
	ReceiptFilename   string     `json:"receipt_filename" gorm:"size:255"`
	ReceiptPath       string     `json:"-" gorm:"size:500"`
	ReceiptSize       string     `json:"receipt_size" gorm:"size:50"`
	ReceiptType       string     `json:"receipt_type" gorm:"size:50"`
	ReceiptUploadedAt *time.Time `json:"receipt_uploaded_at"`
}

// Subscription model. At most one active subscription per user is
// meaningful; renewal starts where the previous active one ends.
type Subscription struct {
	BaseModel
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	PaymentID uint      `json:"payment_id" gorm:"not null"`
	StartDate time.Time `json:"start_date" gorm:"not null"`
	EndDate   time.Time `json:"end_date" gorm:"not null"`
	Status    string    `json:"status" gorm:"size:50;not null;default:'active';index"` // active, inactive, expired
	PlanName  string    `json:"plan_name" gorm:"size:100;not null"`
	PlanPrice string    `json:"plan_price" gorm:"size:100;not null"`

	Payment Payment `json:"payment,omitempty" gorm:"foreignKey:PaymentID"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`
}
