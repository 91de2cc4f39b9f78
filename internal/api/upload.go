package api

import (
	"errors"                            // Error matching
	"gift_registry/internal/domain"     // Importing domain models
	"gift_registry/internal/middleware" // Authenticated user lookup
	"gift_registry/internal/storage"    // Object storage
	"gift_registry/internal/upload"     // Chunk assembler
	"mime"                              // Content type by extension
	"net/http"                          // HTTP status codes
	"path"                              // Key extensions
	"strconv"                           // Chunk index parsing

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// Request struct for starting an upload
type InitiateUploadRequest struct {
	Filename   string  `json:"filename" binding:"required,max=255"`
	Size       int64   `json:"size" binding:"gte=0"`
	Mime       string  `json:"mime" binding:"max=128"`
	RegistryID *string `json:"registry_id"`
}

// Request struct for finishing an upload
type CompleteUploadRequest struct {
	UploadID string `json:"upload_id" binding:"required"`
	SHA256   string `json:"sha256" binding:"omitempty,len=64,hexadecimal"` // Optional checksum of the whole file
}

// uploadError maps assembler errors to responses
func uploadError(c *gin.Context, err error, uploadID string) {
	switch {
	case errors.Is(err, upload.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
	case errors.Is(err, upload.ErrCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "Upload already completed"})
	case errors.Is(err, upload.ErrChunkTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, upload.ErrInvalidIndex),
		errors.Is(err, upload.ErrMissingPart),
		errors.Is(err, upload.ErrSizeMismatch),
		errors.Is(err, upload.ErrChecksum),
		errors.Is(err, upload.ErrInvalidFilename),
		errors.Is(err, upload.ErrInvalidFileSize):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		internalError(c, err, "Upload failed", logrus.Fields{"upload_id": uploadID})
	}
}

// InitiateUploadHandler opens an upload session. Attaching it to a registry
// requires edit access.
func InitiateUploadHandler(db *gorm.DB, asm *upload.Assembler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InitiateUploadRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.RegistryID != nil && *req.RegistryID == "" {
			req.RegistryID = nil
		}
		if req.RegistryID != nil {
			reg, ok := loadRegistry(c, db, *req.RegistryID)
			if !ok || !canEdit(c, reg) {
				return
			}
		}
		up, err := asm.Initiate(c.Request.Context(), middleware.CurrentUser(c).ID, upload.InitiateInput{
			Filename:   req.Filename,
			Size:       req.Size,
			Mime:       req.Mime,
			RegistryID: req.RegistryID,
		})
		if err != nil {
			uploadError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, gin.H{"upload_id": up.ID, "chunk_size": asm.ChunkSize})
	}
}

// UploadChunkHandler stores one multipart chunk: fields upload_id, index and file chunk
func UploadChunkHandler(asm *upload.Assembler) gin.HandlerFunc {
	return func(c *gin.Context) {
		uploadID := c.PostForm("upload_id")
		index, err := strconv.Atoi(c.PostForm("index"))
		if uploadID == "" || err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "upload_id and a numeric index are required"})
			return
		}
		fh, err := c.FormFile("chunk")
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "chunk file is required"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			internalError(c, err, "Failed to read chunk", logrus.Fields{"upload_id": uploadID})
			return
		}
		defer f.Close()
		if err := asm.SaveChunk(c.Request.Context(), middleware.CurrentUser(c).ID, uploadID, index, f); err != nil {
			uploadError(c, err, uploadID)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "index": index})
	}
}

// UploadStatusHandler lists the chunks received so far so a client can resume
func UploadStatusHandler(asm *upload.Assembler) gin.HandlerFunc {
	return func(c *gin.Context) {
		up, received, err := asm.Received(c.Request.Context(), middleware.CurrentUser(c).ID, c.Param("upload_id"))
		if err != nil {
			uploadError(c, err, c.Param("upload_id"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"upload_id":  up.ID,
			"completed":  up.Completed,
			"received":   received,
			"chunk_size": asm.ChunkSize,
			"url":        up.URL,
		})
	}
}

// CompleteUploadHandler assembles the chunks and returns the file URL
func CompleteUploadHandler(db *gorm.DB, asm *upload.Assembler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CompleteUploadRequest
		if !bindJSON(c, &req) {
			return
		}
		user := middleware.CurrentUser(c)
		up, err := asm.Complete(c.Request.Context(), user.ID, req.UploadID, req.SHA256)
		if err != nil {
			uploadError(c, err, req.UploadID)
			return
		}
		if up.RegistryID != nil {
			writeAudit(db, *up.RegistryID, &user.ID, domain.ActionUploadComplete, map[string]any{
				"upload_id": up.ID,
				"filename":  up.Filename,
				"size":      up.Size,
			})
		}
		c.JSON(http.StatusOK, gin.H{"url": up.URL})
	}
}

// ServeFileHandler streams a stored object; the route must end in *key
func ServeFileHandler(store *storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		rc, err := store.Get(c.Request.Context(), key)
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		if err != nil {
			internalError(c, err, "Failed to read file", logrus.Fields{"key": key})
			return
		}
		defer rc.Close()
		contentType := mime.TypeByExtension(path.Ext(key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
	}
}
