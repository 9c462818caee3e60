package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"document-rag-platform/internal/config"
	"document-rag-platform/middleware"
	"document-rag-platform/models"
	"document-rag-platform/services"
	"document-rag-platform/utils"
)

func SetupQueryRoutes(router *gin.Engine, cfg *config.Config, rag *services.RAGService) {
	query := router.Group("/query")
	query.Use(middleware.RequireAuth(cfg))

	// The pipeline degrades internally, so a well-formed question always
	// yields 200 with a textual answer.
	query.POST("", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		tenant := middleware.GetUserID(c)
		result := rag.Answer(c.Request.Context(), req.Query, tenant, req.TopK)

		c.JSON(http.StatusOK, models.QueryResponse{
			Answer:  result.Answer,
			Sources: result.Sources,
		})
	})
}
