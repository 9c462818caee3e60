package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"document-rag-platform/internal/config"
	"document-rag-platform/middleware"
	"document-rag-platform/models"
	"document-rag-platform/utils"
)

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, db *mongo.Database) {
	auth := router.Group("/auth")
	usersCollection := db.Collection("users")

	auth.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		var existing models.User
		if err := usersCollection.FindOne(context.Background(), bson.M{"email": req.Email}).Decode(&existing); err == nil {
			utils.RespondWithConflict(c, "Email already registered")
			return
		}

		hashedPassword, err := utils.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to process password", nil)
			return
		}

		user := models.User{
			Email:        req.Email,
			PasswordHash: hashedPassword,
			IsActive:     true,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}

		result, err := usersCollection.InsertOne(context.Background(), user)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create user", nil)
			return
		}

		userID := result.InsertedID.(primitive.ObjectID).Hex()
		duration, _ := time.ParseDuration(cfg.JWTExpiresIn)
		token, err := utils.GenerateJWT(userID, req.Email, cfg.JWTSecret, duration)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to generate token", nil)
			return
		}

		c.JSON(http.StatusCreated, models.LoginResponse{
			Token:     token,
			TokenType: "bearer",
			ExpiresAt: time.Now().Add(duration),
			User: models.UserInfo{
				ID:        userID,
				Email:     req.Email,
				IsActive:  true,
				CreatedAt: user.CreatedAt,
			},
		})
	})

	auth.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := usersCollection.FindOne(context.Background(), bson.M{"email": req.Email}).Decode(&user); err != nil {
			utils.RespondWithUnauthorized(c, "Invalid email or password")
			return
		}

		if !utils.CheckPassword(req.Password, user.PasswordHash) {
			utils.RespondWithUnauthorized(c, "Invalid email or password")
			return
		}

		if !user.IsActive {
			utils.RespondWithUnauthorized(c, "Account is disabled")
			return
		}

		duration, _ := time.ParseDuration(cfg.JWTExpiresIn)
		token, err := utils.GenerateJWT(user.ID.Hex(), user.Email, cfg.JWTSecret, duration)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to generate token", nil)
			return
		}

		c.JSON(http.StatusOK, models.LoginResponse{
			Token:     token,
			TokenType: "bearer",
			ExpiresAt: time.Now().Add(duration),
			User: models.UserInfo{
				ID:        user.ID.Hex(),
				Email:     user.Email,
				IsActive:  user.IsActive,
				CreatedAt: user.CreatedAt,
			},
		})
	})

	me := auth.Group("")
	me.Use(middleware.RequireAuth(cfg))
	me.GET("/me", func(c *gin.Context) {
		userID, err := primitive.ObjectIDFromHex(middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid token subject")
			return
		}

		var user models.User
		if err := usersCollection.FindOne(context.Background(), bson.M{"_id": userID}).Decode(&user); err != nil {
			utils.RespondWithNotFound(c, "User not found")
			return
		}

		c.JSON(http.StatusOK, models.UserInfo{
			ID:        user.ID.Hex(),
			Email:     user.Email,
			IsActive:  user.IsActive,
			CreatedAt: user.CreatedAt,
		})
	})
}
