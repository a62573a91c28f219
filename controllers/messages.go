package controllers

import (
	"errors"

	"infinityschool_go/database"
	"infinityschool_go/middleware"
	"infinityschool_go/services"

	"github.com/gofiber/fiber/v2"
)

type MessageController struct{}

func (mc *MessageController) svc() *services.MessageService {
	return services.NewMessageService(database.DB)
}

// CreateMessageRequest represents a new support message
type CreateMessageRequest struct {
	Text    string `json:"text"`
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
}

// ReplyRequest represents an admin reply to a message
type ReplyRequest struct {
	Text      string `json:"text"`
	UserID    string `json:"userId"`
	MessageID uint   `json:"messageId"`
}

// CreateMessage stores a new support message
func (mc *MessageController) CreateMessage(c *fiber.Ctx) error {
	var req CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	msg, err := mc.svc().Create(req.Text, req.UserID, req.IsAdmin)
	if err != nil {
		return messageError(c, err, "Failed to save message")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Message sent successfully",
		"data": fiber.Map{
			"id":        msg.ID,
			"text":      msg.Text,
			"userId":    msg.UserID,
			"isAdmin":   msg.IsAdmin,
			"time":      msg.Time,
			"createdAt": msg.CreatedAt,
			"hasReply":  msg.HasReply,
			"reply":     nil,
		},
	})
}

// GetAllMessages returns every message with its surfaced reply
func (mc *MessageController) GetAllMessages(c *fiber.Ctx) error {
	messages, err := mc.svc().ListAll()
	if err != nil {
		return messageError(c, err, "Failed to fetch messages")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"messages": messages,
	})
}

// GetUserMessages returns one user's thread in chronological order
func (mc *MessageController) GetUserMessages(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		userID = c.Query("userId")
	}

	messages, err := mc.svc().ListForUser(userID)
	if err != nil {
		return messageError(c, err, "Failed to fetch messages")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"messages": messages,
	})
}

// ReplyToMessage records an admin reply and marks the original answered
func (mc *MessageController) ReplyToMessage(c *fiber.Ctx) error {
	var req ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	original, reply, err := mc.svc().Reply(req.Text, req.UserID, req.MessageID)
	if err != nil {
		return messageError(c, err, "Failed to send reply")
	}

	middleware.LogActivity(c, "REPLY", "messages", req.MessageID, nil)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Reply sent successfully",
		"data": fiber.Map{
			"original": original,
			"reply":    reply,
		},
	})
}

// DeleteMessage removes a message and its replies
func (mc *MessageController) DeleteMessage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid message id",
		})
	}

	if err := mc.svc().Delete(uint(id)); err != nil {
		return messageError(c, err, "Failed to delete message")
	}

	middleware.LogActivity(c, "DELETE", "messages", uint(id), nil)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Message deleted successfully",
	})
}

// GetMessageUsers lists users that have written to support
func (mc *MessageController) GetMessageUsers(c *fiber.Ctx) error {
	users, err := mc.svc().UsersSummary()
	if err != nil {
		return messageError(c, err, "Failed to fetch users")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"users":   users,
	})
}

func messageError(c *fiber.Ctx, err error, fallback string) error {
	status := services.HTTPStatus(err)
	msg := fallback
	if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrNotFound) {
		msg = err.Error()
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"message": msg,
	})
}
