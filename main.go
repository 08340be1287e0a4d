package main

import (
	"log"
	"smart-splitter-backend/config"
	"smart-splitter-backend/database"
	"smart-splitter-backend/handlers"
	"smart-splitter-backend/middleware"
	"smart-splitter-backend/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	config.Load()

	// Connect to database
	database.Connect()

	// Connect to Redis (optional, won't crash if unavailable)
	database.ConnectRedis()

	// Wire the chat hub and settlement service
	services.Init(database.DB)

	// Setup router
	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": config.AppConfig.AppName,
		})
	})

	// Public feedback form
	r.POST("/feedback", handlers.SubmitFeedback)

	// ==========================================
	// AUTH ROUTES (public)
	// ==========================================
	auth := r.Group("/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
		auth.POST("/otp/send", handlers.SendOTP)
		auth.POST("/otp/verify", handlers.VerifyOTP)
	}

	// ==========================================
	// API ROUTES (authenticated)
	// ==========================================
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	{
		// User
		api.GET("/users/me", handlers.GetProfile)
		api.PUT("/users/me", handlers.UpdateProfile)
		api.PUT("/users/me/fcm-token", handlers.UpdateFCMToken)
		api.POST("/users/search", handlers.SearchUsers)

		// Groups
		api.POST("/groups", handlers.CreateGroup)
		api.GET("/groups", handlers.GetGroups)
		api.GET("/groups/:id", handlers.GetGroup)
		api.PUT("/groups/:id", handlers.UpdateGroup)
		api.DELETE("/groups/:id", handlers.DeleteGroup)
		api.POST("/groups/:id/members", handlers.AddMember)
		api.DELETE("/groups/:id/members/:uid", handlers.RemoveMember)
		api.POST("/groups/:id/invite", handlers.InviteToGroupHandler)

		// Expenses (immutable once created)
		api.POST("/groups/:id/expenses", handlers.CreateExpense)
		api.GET("/groups/:id/expenses", handlers.GetGroupExpenses)
		api.GET("/expenses/:id", handlers.GetExpense)

		// Balances
		api.GET("/groups/:id/balances", handlers.GetGroupBalances)
		api.GET("/balances", handlers.GetOverallBalances)

		// Settlements
		api.POST("/groups/:id/settle", handlers.Settle)
		api.GET("/groups/:id/settlements", handlers.GetPendingSettlements)
		api.GET("/groups/:id/settlements/history", handlers.GetSettlementHistory)
		api.POST("/settlements/:id/pay", handlers.MarkSettlementPaid)
		api.POST("/settlements/:id/undo", handlers.UndoSettlement)

		// Chat
		api.GET("/groups/:id/messages", handlers.GetGroupMessages)
		api.POST("/chat/read/:message_id", handlers.MarkMessageRead)
		api.GET("/chat/read/:message_id", handlers.GetReadReceipts)
	}

	// Websocket chat (token passed as query param)
	r.GET("/ws/groups/:id", handlers.GroupChatSocket)

	// Start server
	port := config.AppConfig.Port
	log.Printf("🚀 %s server starting on port %s", config.AppConfig.AppName, port)

	addr := "0.0.0.0:" + port
	log.Printf("🚀 Listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
