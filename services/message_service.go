package services

import (
	"errors"
	"time"

	"infinityschool_go/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WelcomeMessageText is shown when a user opens an empty support thread.
const WelcomeMessageText = "Assalomu alaykum! Infinity-School web sitega xush kelibsiz! Sizga qanday yordam bera olaman?"

// MessageWithReply is a message with its surfaced admin reply. A message can
// accumulate several replies over time; only the most recently created admin
// reply is attached.
type MessageWithReply struct {
	models.Message
	Reply *models.Message `json:"reply"`
}

// MessageUserSummary aggregates a user's support thread for the admin list.
type MessageUserSummary struct {
	UserID             string    `json:"userId"`
	TotalMessages      int64     `json:"totalMessages"`
	UnansweredMessages int64     `json:"unansweredMessages"`
	LastMessageAt      time.Time `json:"lastMessageAt"`
}

// MessageService manages the support-chat thread.
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// Create stores a new message. New messages never start with a reply.
func (s *MessageService) Create(text, userID string, isAdmin bool) (*models.Message, error) {
	if text == "" || userID == "" {
		return nil, Validationf("text and userId are required")
	}

	msg := models.Message{
		Text:     text,
		UserID:   userID,
		IsAdmin:  isAdmin,
		Time:     time.Now().Format(time.RFC3339),
		HasReply: false,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// Reply records an admin reply to an existing message and flips has_reply on
// the original. Both writes happen in one transaction; the original row is
// locked so concurrent replies serialize.
func (s *MessageService) Reply(text, userID string, messageID uint) (original *models.Message, reply *models.Message, err error) {
	if text == "" || userID == "" || messageID == 0 {
		return nil, nil, Validationf("text, userId and messageId are required")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var orig models.Message
		if err := lockForUpdate(tx).Where("id = ?", messageID).First(&orig).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("message %d", messageID)
			}
			return err
		}

		r := models.Message{
			Text:             text,
			UserID:           userID,
			IsAdmin:          true,
			Time:             time.Now().Format(time.RFC3339),
			ReplyToMessageID: &messageID,
		}
		if err := tx.Create(&r).Error; err != nil {
			return err
		}

		if err := tx.Model(&orig).Update("has_reply", true).Error; err != nil {
			return err
		}

		orig.HasReply = true
		original = &orig
		reply = &r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return original, reply, nil
}

// Delete removes a message together with its direct replies.
func (s *MessageService) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Unscoped().
			Where("id = ? OR reply_to_message_id = ?", id, id).
			Delete(&models.Message{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NotFoundf("message %d", id)
		}
		return nil
	})
}

// ListAll returns every message, newest first, each carrying its surfaced
// reply.
func (s *MessageService) ListAll() ([]MessageWithReply, error) {
	var messages []models.Message
	if err := s.db.Order("created_at DESC").Find(&messages).Error; err != nil {
		return nil, err
	}
	return s.attachReplies(messages)
}

// ListForUser returns a user's thread in chronological order: the user's own
// messages plus admin replies to them. An empty thread yields the welcome
// placeholder so the chat UI always has an opening message.
func (s *MessageService) ListForUser(userID string) ([]MessageWithReply, error) {
	if userID == "" {
		return nil, Validationf("userId is required")
	}

	var messages []models.Message
	err := s.db.
		Where("user_id = ? OR (is_admin = ? AND reply_to_message_id IN (?))",
			userID, true,
			s.db.Model(&models.Message{}).Select("id").Where("user_id = ?", userID),
		).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		now := time.Now()
		return []MessageWithReply{{
			Message: models.Message{
				BaseModel: models.BaseModel{CreatedAt: now},
				Text:      WelcomeMessageText,
				UserID:    userID,
				IsAdmin:   true,
				Time:      now.Format(time.RFC3339),
			},
			Reply: nil,
		}}, nil
	}

	return s.attachReplies(messages)
}

// UsersSummary lists every user that has written to support, with their
// message counts, most recent thread first.
func (s *MessageService) UsersSummary() ([]MessageUserSummary, error) {
	var summaries []MessageUserSummary
	err := s.db.Model(&models.Message{}).
		Select(`user_id,
			COUNT(*) AS total_messages,
			SUM(CASE WHEN has_reply = false THEN 1 ELSE 0 END) AS unanswered_messages,
			MAX(created_at) AS last_message_at`).
		Where("is_admin = ?", false).
		Group("user_id").
		Order("last_message_at DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// attachReplies decorates each message with its newest admin reply.
func (s *MessageService) attachReplies(messages []models.Message) ([]MessageWithReply, error) {
	out := make([]MessageWithReply, 0, len(messages))
	if len(messages) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}

	var replies []models.Message
	err := s.db.
		Where("reply_to_message_id IN ? AND is_admin = ?", ids, true).
		Order("created_at DESC").
		Find(&replies).Error
	if err != nil {
		return nil, err
	}

	// Replies arrive newest first, so the first seen per message wins.
	latest := make(map[uint]*models.Message, len(replies))
	for i := range replies {
		parent := *replies[i].ReplyToMessageID
		if _, ok := latest[parent]; !ok {
			latest[parent] = &replies[i]
		}
	}

	for _, m := range messages {
		out = append(out, MessageWithReply{Message: m, Reply: latest[m.ID]})
	}
	return out, nil
}

// lockForUpdate applies a row lock on databases that support it. The sqlite
// driver used by tests has no FOR UPDATE syntax; its writes are serialized by
// the engine anyway.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
