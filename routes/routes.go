package routes

import (
	"infinityschool_go/config"
	"infinityschool_go/controllers"
	"infinityschool_go/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App) {
	// Initialize controllers
	userController := &controllers.UserController{}
	oauthController := &controllers.OAuthController{}
	messageController := &controllers.MessageController{}
	paymentController := &controllers.PaymentController{}
	paymentPageController := &controllers.PaymentPageController{}
	paymentModalController := &controllers.PaymentModalController{}
	subscriptionController := &controllers.SubscriptionController{}
	healthController := &controllers.HealthController{}

	app.Get("/health", healthController.GetHealthStatus)

	// API group
	api := app.Group("/api")

	// Users: registration, login and OAuth are public
	users := api.Group("/users")
	users.Get("/auth/google", oauthController.GoogleLogin)
	users.Get("/auth/google/callback", oauthController.GoogleCallback)
	users.Get("/auth/github", oauthController.GitHubLogin)
	users.Get("/auth/github/callback", oauthController.GitHubCallback)
	users.Post("/", userController.Register)
	users.Post("/login", userController.Login)
	users.Post("/logout", userController.Logout)
	users.Get("/", userController.GetUsers)
	users.Get("/email/:email", userController.GetUserByEmail)
	users.Get("/:id", userController.GetUser)
	users.Put("/:id", userController.UpdateUser)
	users.Delete("/:id", userController.DeleteUser)

	// Support chat
	messages := api.Group("/messages")
	messages.Post("/", messageController.CreateMessage)
	messages.Get("/", messageController.GetAllMessages)
	messages.Get("/users", messageController.GetMessageUsers)
	messages.Get("/user/:userId", messageController.GetUserMessages)
	messages.Post("/reply", messageController.ReplyToMessage)
	messages.Delete("/:id", messageController.DeleteMessage)

	// Direct plan purchases
	payments := api.Group("/payments")
	payments.Post("/with-receipt", paymentController.CreateWithReceipt)
	payments.Get("/receipt/:filename", paymentController.GetReceipt)
	payments.Get("/all", paymentController.GetAllPayments)
	payments.Get("/stats", paymentController.GetStats)
	payments.Get("/recent", paymentController.GetRecentPayments)
	payments.Get("/user/:phoneNumber", paymentController.GetUserPayments)
	payments.Get("/transaction/:transactionId", paymentController.GetPaymentByTransaction)
	payments.Put("/status/:id", paymentController.UpdateStatus)
	payments.Post("/confirm/:id", paymentController.ConfirmPayment)

	// Course enrollment checkout
	paymentPage := api.Group("/payment-page")
	paymentPage.Post("/create", paymentPageController.CreatePayment)
	paymentPage.Get("/all", paymentPageController.GetAllPayments)
	paymentPage.Get("/stats", paymentPageController.GetStats)
	paymentPage.Get("/user/:phoneNumber", paymentPageController.GetUserPayments)
	paymentPage.Get("/transaction/:transactionId", paymentPageController.GetPaymentByTransaction)
	paymentPage.Get("/receipt/:paymentId", paymentPageController.GetReceipt)
	paymentPage.Put("/status/:paymentId", paymentPageController.UpdateStatus)
	paymentPage.Delete("/:paymentId", paymentPageController.DeletePayment)

	// Modal checkout
	paymentModal := api.Group("/payment-modal")
	paymentModal.Post("/upload-receipt", paymentModalController.UploadReceipt)
	paymentModal.Post("/create", paymentModalController.CreatePayment)
	paymentModal.Get("/all", paymentModalController.GetAllPayments)
	paymentModal.Get("/statistics", paymentModalController.GetStatistics)
	paymentModal.Get("/export", paymentModalController.Export)
	paymentModal.Get("/status-counts", paymentModalController.GetStatusCounts)
	paymentModal.Get("/by-status/:status", paymentModalController.GetByStatus)
	paymentModal.Get("/transaction/:id", paymentModalController.GetPaymentByTransaction)
	paymentModal.Get("/user/:email", paymentModalController.GetUserPayments)
	paymentModal.Get("/receipt/:fileName", paymentModalController.GetReceipt)
	paymentModal.Put("/status/:transactionId", paymentModalController.UpdateStatus)

	// Subscriptions require a valid session
	subscriptions := api.Group("/subscriptions", middleware.JWTMiddleware())
	subscriptions.Get("/status", subscriptionController.GetStatus)
	subscriptions.Post("/create", subscriptionController.CreateSubscription)
}

// SetupStaticRoutes serves uploaded files
func SetupStaticRoutes(app *fiber.App) {
	app.Static("/uploads", config.AppConfig.UploadDir)
}
