package routes

import (
	"github.com/gin-gonic/gin"

	"chathub/internal/api/handlers"
	"chathub/internal/api/middleware"
)

// Setup wires the HTTP surface. The route layout mirrors the original
// frontend's expectations: /auth, /user, /conversation, /message, /ws.
func Setup(
	router *gin.Engine,
	verifier middleware.TokenVerifier,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	convHandler *handlers.ConversationHandler,
	wsHandler *handlers.WebSocketHandler,
) {
	router.Use(middleware.CORS(), middleware.LogAPI())

	router.GET("/", func(c *gin.Context) {
		c.String(200, "chat server is running")
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/sendotp", authHandler.SendOTP)
		authGroup.GET("/user", middleware.RequireAuth(verifier), authHandler.AuthUser)
	}

	userGroup := router.Group("/user", middleware.RequireAuth(verifier))
	{
		userGroup.GET("/online-status/:id", userHandler.OnlineStatus)
		userGroup.GET("/non-friends", userHandler.NonFriends)
		userGroup.GET("/presigned-url", userHandler.PresignedURL)
		userGroup.PUT("/update", authHandler.UpdateProfile)
	}

	convGroup := router.Group("/conversation", middleware.RequireAuth(verifier))
	{
		convGroup.GET("", convHandler.List)
		convGroup.POST("", convHandler.Create)
	}

	router.GET("/message/:conversationId", middleware.RequireAuth(verifier), convHandler.Messages)

	// Authentication is in-band (setup event), not middleware.
	router.GET("/ws", wsHandler.Serve)
}
