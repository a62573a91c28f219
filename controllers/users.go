package controllers

import (
	"strings"
	"time"

	"infinityschool_go/config"
	"infinityschool_go/database"
	"infinityschool_go/middleware"
	"infinityschool_go/models"
	"infinityschool_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

type UserController struct{}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	FullName         string `json:"fullName"`
	CodeName         string `json:"codeName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Password         string `json:"password"`
	ConfirmPassword  string `json:"confirmPassword"`
	TelegramUsername string `json:"telegramUsername"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest represents the profile update request body
type UpdateUserRequest struct {
	FullName string `json:"fullName"`
	CodeName string `json:"codeName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func userResponse(user *models.User) fiber.Map {
	return fiber.Map{
		"id":                user.ID,
		"fullName":          user.FullName,
		"codeName":          user.CodeName,
		"email":             user.Email,
		"phone":             user.Phone,
		"telegram_username": user.TelegramUsername,
		"role":              user.Role,
		"provider":          user.Provider,
		"avatar":            user.Avatar,
		"created_at":        user.CreatedAt,
		"updated_at":        user.UpdatedAt,
	}
}

// Register creates a new account from the signup form
func (uc *UserController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	req.FullName = utils.SanitizeString(req.FullName)
	req.CodeName = utils.SanitizeString(req.CodeName)
	req.Email = strings.ToLower(utils.SanitizeString(req.Email))
	req.Phone = utils.SanitizeString(req.Phone)

	if req.FullName == "" || req.CodeName == "" || req.Email == "" || req.Phone == "" ||
		req.Password == "" || req.ConfirmPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "All fields are required",
		})
	}

	if !utils.IsValidEmail(req.Email) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid email format",
		})
	}

	if !utils.IsValidPhone(req.Phone) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Phone number must start with +998 and contain 12 digits",
		})
	}

	if len(req.Password) < 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Password must be at least 6 characters",
		})
	}

	if req.Password != req.ConfirmPassword {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Passwords do not match",
		})
	}

	// Email and phone must be unique
	var existing models.User
	if err := database.DB.Where("email = ? OR phone = ?", req.Email, req.Phone).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "This email or phone number is already registered",
		})
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to process password",
		})
	}

	user := models.User{
		FullName:         req.FullName,
		CodeName:         req.CodeName,
		Email:            req.Email,
		Phone:            req.Phone,
		PasswordHash:     hash,
		TelegramUsername: req.TelegramUsername,
		Role:             "user",
		Status:           "active",
	}

	if err := database.DB.Create(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create user",
		})
	}

	middleware.LogActivity(c, "REGISTER", "users", user.ID, fiber.Map{"email": user.Email})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registration successful",
		"user": fiber.Map{
			"id":       user.ID,
			"fullName": user.FullName,
			"codeName": user.CodeName,
			"email":    user.Email,
			"phone":    user.Phone,
		},
	})
}

// Login authenticates a user and returns a JWT token
func (uc *UserController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Email and password are required",
		})
	}

	var user models.User
	if err := database.DB.Where("email = ? AND status = ?", strings.ToLower(req.Email), "active").First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid email or password",
		})
	}

	if err := utils.CheckPassword(req.Password, user.PasswordHash); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid email or password",
		})
	}

	token, err := middleware.GenerateToken(&user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to generate token",
		})
	}

	middleware.LogActivity(c, "LOGIN", "users", user.ID, fiber.Map{"email": user.Email})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"token":   token,
		"user": fiber.Map{
			"id":       user.ID,
			"fullName": user.FullName,
			"codeName": user.CodeName,
			"email":    user.Email,
			"phone":    user.Phone,
		},
	})
}

// Logout invalidates the current JWT via the Redis blacklist
func (uc *UserController) Logout(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Missing authorization header",
		})
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid authorization header format",
		})
	}

	// Blacklist until the token would expire anyway
	ttl := config.AppConfig.JWTExpiresIn
	if token, _, err := jwt.NewParser().ParseUnverified(tokenString, &middleware.Claims{}); err == nil {
		if claims, ok := token.Claims.(*middleware.Claims); ok && claims.ExpiresAt != nil {
			if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
				ttl = remaining
			}
		}
	}
	if err := middleware.BlacklistToken(tokenString, ttl); err != nil {
		middleware.LogActivity(c, "LOGOUT", "users", 0, fiber.Map{"error": err.Error()})
	}

	if user, err := middleware.GetCurrentUser(c); err == nil {
		middleware.LogActivity(c, "LOGOUT", "users", user.ID, fiber.Map{"email": user.Email})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// GetUsers returns all users, newest first
func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	var users []models.User
	if err := database.DB.Order("created_at DESC").Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to fetch users",
		})
	}

	out := make([]fiber.Map, 0, len(users))
	for i := range users {
		out = append(out, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{
		"success": true,
		"users":   out,
	})
}

// GetUser returns one user by id
func (uc *UserController) GetUser(c *fiber.Ctx) error {
	id := c.Params("id")

	var user models.User
	if err := database.DB.First(&user, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "User not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    userResponse(&user),
	})
}

// GetUserByEmail returns one user by email
func (uc *UserController) GetUserByEmail(c *fiber.Ctx) error {
	email := c.Params("email")

	var user models.User
	if err := database.DB.Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "User not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    userResponse(&user),
	})
}

// UpdateUser updates profile fields of one user
func (uc *UserController) UpdateUser(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	req.Email = strings.ToLower(utils.SanitizeString(req.Email))
	if req.FullName == "" || req.CodeName == "" || req.Email == "" || req.Phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "All fields are required",
		})
	}
	if !utils.IsValidEmail(req.Email) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid email format",
		})
	}
	if !utils.IsValidPhone(req.Phone) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Phone number must start with +998 and contain 12 digits",
		})
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "User not found",
		})
	}

	// Email and phone must stay unique across other accounts
	var existing models.User
	if err := database.DB.Where("(email = ? OR phone = ?) AND id != ?", req.Email, req.Phone, user.ID).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "This email or phone number is already registered",
		})
	}

	updates := map[string]interface{}{
		"full_name": req.FullName,
		"code_name": req.CodeName,
		"email":     req.Email,
		"phone":     req.Phone,
	}
	if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update user",
		})
	}

	middleware.LogActivity(c, "UPDATE", "users", user.ID, nil)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User updated successfully",
		"user":    userResponse(&user),
	})
}

// DeleteUser removes a user account
func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	id := c.Params("id")

	var user models.User
	if err := database.DB.First(&user, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "User not found",
		})
	}

	if err := database.DB.Unscoped().Delete(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to delete user",
		})
	}

	middleware.LogActivity(c, "DELETE", "users", user.ID, nil)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User deleted successfully",
	})
}
