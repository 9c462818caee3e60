package routes

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-rag-platform/internal/config"
	"document-rag-platform/internal/store"
	"document-rag-platform/middleware"
	"document-rag-platform/models"
	"document-rag-platform/services"
	"document-rag-platform/utils"
)

func SetupDocumentRoutes(
	router *gin.Engine,
	cfg *config.Config,
	metaStore *store.MetadataStore,
	ingestion *services.IngestionService,
	extractor *services.TextExtractor,
	enqueuer services.TaskEnqueuer,
) {
	docs := router.Group("/documents")
	docs.Use(middleware.RequireAuth(cfg))

	docs.POST("/upload", func(c *gin.Context) {
		tenant := middleware.GetUserID(c)

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", gin.H{"error": err.Error()})
			return
		}

		if fileHeader.Size > cfg.MaxFileSize {
			utils.RespondWithTooLarge(c, "File exceeds the maximum allowed size", gin.H{
				"max_bytes":  cfg.MaxFileSize,
				"file_bytes": fileHeader.Size,
			})
			return
		}

		contentType := fileHeader.Header.Get("Content-Type")
		if !isAllowedType(contentType, cfg.AllowedTypes) {
			utils.RespondWithBadRequest(c, "Unsupported file type", gin.H{
				"content_type": contentType,
				"allowed":      cfg.AllowedTypes,
			})
			return
		}

		if err := os.MkdirAll(cfg.FileStorageDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Failed to prepare storage", nil)
			return
		}
		storagePath := filepath.Join(cfg.FileStorageDir, uuid.NewString()+"_"+filepath.Base(fileHeader.Filename))
		if err := c.SaveUploadedFile(fileHeader, storagePath); err != nil {
			utils.RespondWithInternalError(c, "Failed to store file", nil)
			return
		}

		doc := &models.Document{
			Filename:    fileHeader.Filename,
			StoragePath: storagePath,
			Tenant:      tenant,
		}
		if err := metaStore.CreateDocument(c.Request.Context(), doc); err != nil {
			utils.RespondWithInternalError(c, "Failed to record document", nil)
			return
		}

		// Large files go through the background queue; small ones are
		// processed inline so the response carries the final status.
		if fileHeader.Size > cfg.SyncProcessingLimit && enqueuer != nil {
			if err := enqueuer.EnqueueIngest(c.Request.Context(), doc.ID.Hex(), storagePath, tenant); err != nil {
				utils.RespondWithInternalError(c, "Failed to queue document for processing", nil)
				return
			}
			c.JSON(http.StatusAccepted, models.UploadResponse{
				ID:       doc.ID.Hex(),
				Filename: doc.Filename,
				Status:   models.StatusPending,
				Message:  "Document queued for processing",
			})
			return
		}

		text, err := extractor.Extract(storagePath)
		if err != nil {
			_ = metaStore.SetDocumentStatus(c.Request.Context(), doc.ID, models.StatusFailed, 0, err.Error())
			utils.RespondWithBadRequest(c, "Failed to extract text from file", gin.H{"error": err.Error()})
			return
		}

		chunks, err := ingestion.IngestDocument(c.Request.Context(), doc, text)
		if err != nil {
			var perr *services.PartialIngestionError
			if errors.As(err, &perr) {
				utils.RespondWithInternalError(c, "Document indexing is incomplete and will be retried", gin.H{
					"document_id": perr.DocID,
				})
				return
			}
			utils.RespondWithInternalError(c, "Failed to process document", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, models.UploadResponse{
			ID:         doc.ID.Hex(),
			Filename:   doc.Filename,
			Status:     doc.Status,
			ChunkCount: len(chunks),
			Message:    fmt.Sprintf("Document processed into %d chunks", len(chunks)),
		})
	})

	docs.GET("", func(c *gin.Context) {
		tenant := middleware.GetUserID(c)

		list, err := metaStore.ListDocuments(c.Request.Context(), tenant)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": list, "count": len(list)})
	})

	docs.GET("/:id", func(c *gin.Context) {
		doc, ok := tenantDocument(c, metaStore)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	docs.GET("/:id/chunks", func(c *gin.Context) {
		doc, ok := tenantDocument(c, metaStore)
		if !ok {
			return
		}

		chunks, err := metaStore.GetChunks(c.Request.Context(), doc.ID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load chunks", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document_id": doc.ID.Hex(), "chunks": chunks, "count": len(chunks)})
	})
}

// tenantDocument resolves the :id path parameter to a document owned by
// the authenticated tenant. Documents of other tenants read as not found.
func tenantDocument(c *gin.Context, metaStore *store.MetadataStore) (*models.Document, bool) {
	docID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid document id", nil)
		return nil, false
	}

	doc, err := metaStore.GetDocument(c.Request.Context(), docID)
	if err != nil || doc.Tenant != middleware.GetUserID(c) {
		utils.RespondWithNotFound(c, "Document not found")
		return nil, false
	}
	return doc, true
}

func isAllowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if contentType == t {
			return true
		}
	}
	return false
}
