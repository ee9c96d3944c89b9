package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/models"
	"github.com/myjantes/atelier_backend/utils"
	"github.com/sirupsen/logrus"
)

type uploadContext struct {
	ReferenceType string `json:"referenceType"`
	ReferenceID   int    `json:"referenceId"`
}

type uploadSignRequest struct {
	FileName string        `json:"fileName"`
	MimeType string        `json:"mimeType"`
	Size     int64         `json:"size"`
	Context  uploadContext `json:"context"`
}

type uploadCompleteRequest struct {
	ObjectKey string        `json:"objectKey"`
	MimeType  string        `json:"mimeType"`
	Name      string        `json:"name"`
	Context   uploadContext `json:"context"`
}

type uploadSignResponse struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"objectKey"`
	AccessURL string            `json:"accessUrl"`
	ExpiresAt string            `json:"expiresAt"`
}

type uploadCompleteResponse struct {
	ObjectKey          string            `json:"objectKey"`
	AccessURL          string            `json:"accessUrl"`
	ThumbnailURL       string            `json:"thumbnailUrl,omitempty"`
	ThumbnailObjectKey string            `json:"thumbnailObjectKey,omitempty"`
	Media              *models.MediaFile `json:"media,omitempty"`
}

const maxImageSizeBytes int64 = 10 * 1024 * 1024
const maxVideoSizeBytes int64 = 100 * 1024 * 1024

// wheel photos
var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

// short clips of wheel damage
var videoMimeTypes = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/webm":      true,
}

func signUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req uploadSignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.FileName == "" || req.MimeType == "" || req.Size <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fileName, mimeType and size are required"})
			return
		}

		isImage := models.MediaKindFromMime(req.MimeType) == models.MediaKindImage
		if isImage {
			if !imageMimeTypes[req.MimeType] {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
				return
			}
			if req.Size > maxImageSizeBytes {
				c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds 10MB limit"})
				return
			}
		} else {
			if !videoMimeTypes[req.MimeType] {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
				return
			}
			if req.Size > maxVideoSizeBytes {
				c.JSON(http.StatusBadRequest, gin.H{"error": "video exceeds 100MB limit"})
				return
			}
		}

		entity := sanitizeSegment(strings.ToLower(strings.TrimSpace(req.Context.ReferenceType)))
		if entity == "" {
			entity = "uploads"
		}

		ext := strings.ToLower(filepath.Ext(req.FileName))
		if ext == "" {
			ext = extensionFromMimeType(req.MimeType)
		}
		if ext == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file extension is required"})
			return
		}

		if utils.GetStorageProvider() != utils.StorageProviderGCS {
			c.JSON(http.StatusBadRequest, gin.H{"error": "storage provider not supported"})
			return
		}

		objectKey := path.Join(entity, uuid.New().String()+ext)
		signed, err := utils.SignUpload(c.Request.Context(), objectKey, req.MimeType, 15*time.Minute)
		if err != nil {
			config.LogError(logger, "uploads.go", "signUploadHandler", "SignUpload", objectKey, err)
			message := "failed to sign upload"
			if !strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
				message = fmt.Sprintf("failed to sign upload: %v", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": message})
			return
		}

		logger.WithFields(logrus.Fields{
			"mime_type":  req.MimeType,
			"size":       req.Size,
			"object_key": objectKey,
		}).Info("[upload.sign]")

		c.JSON(http.StatusOK, gin.H{
			"data": uploadSignResponse{
				UploadURL: signed.UploadURL,
				Method:    signed.Method,
				Headers:   signed.Headers,
				ObjectKey: signed.ObjectKey,
				AccessURL: signed.AccessURL,
				ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
			},
		})
	}
}

func completeUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req uploadCompleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.ObjectKey == "" || strings.Contains(req.ObjectKey, "..") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object key"})
			return
		}

		ctx := c.Request.Context()

		storedMime, err := utils.CheckMediaExistInGCS(ctx, req.ObjectKey)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded object not found"})
			return
		}
		mimeType := req.MimeType
		if storedMime != "" {
			mimeType = storedMime
		}

		response := uploadCompleteResponse{
			ObjectKey: req.ObjectKey,
			AccessURL: utils.BuildObjectAccessURL(req.ObjectKey),
		}

		if models.MediaKindFromMime(mimeType) == models.MediaKindImage {
			thumbnailKey, err := createThumbnail(ctx, req.ObjectKey)
			if err != nil {
				config.LogError(logger, "uploads.go", "completeUploadHandler", "createThumbnail", req.ObjectKey, err)
			} else {
				response.ThumbnailURL = utils.BuildObjectAccessURL(thumbnailKey)
				response.ThumbnailObjectKey = thumbnailKey
			}
		}

		// optionally record the reference on an existing document
		if req.Context.ReferenceType != "" && req.Context.ReferenceID > 0 {
			var refType models.ParentType
			switch req.Context.ReferenceType {
			case string(models.ParentTypeQuote):
				refType = models.ParentTypeQuote
			case string(models.ParentTypeInvoice):
				refType = models.ParentTypeInvoice
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referenceType"})
				return
			}
			files, err := models.AttachMediaFiles(ctx, refType, req.Context.ReferenceID, []models.NewMediaReference{{
				ObjectKey: req.ObjectKey,
				MimeType:  mimeType,
				Name:      req.Name,
			}})
			if err != nil {
				respondError(c, err)
				return
			}
			if len(files) > 0 {
				if response.ThumbnailURL != "" {
					if updated, err := models.SetMediaThumbnail(ctx, files[0].ID, response.ThumbnailURL); err == nil {
						files[0] = updated
					}
				}
				response.Media = files[0]
			}
		}

		logger.WithFields(logrus.Fields{
			"object_key": req.ObjectKey,
			"status":     "completed",
		}).Info("[upload.complete]")

		c.JSON(http.StatusOK, gin.H{"data": response})
	}
}

// mediaObjectHandler streams a stored object through the API for clients that
// cannot use the public bucket URL.
func mediaObjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		objectKey := strings.TrimSpace(c.Query("key"))
		if objectKey == "" || strings.Contains(objectKey, "..") || strings.HasPrefix(objectKey, "/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
			return
		}

		if utils.GetStorageProvider() != utils.StorageProviderGCS {
			c.JSON(http.StatusBadRequest, gin.H{"error": "storage provider not supported"})
			return
		}

		client, err := utils.GetGCSClient(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage client error"})
			return
		}

		bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
		if bucket == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "GCS_BUCKET is required"})
			return
		}
		obj := client.Bucket(bucket).Object(objectKey)
		attrs, err := obj.Attrs(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}
		reader, err := obj.NewReader(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}
		defer reader.Close()

		if attrs.ContentType != "" {
			c.Writer.Header().Set("Content-Type", attrs.ContentType)
		}
		if attrs.Size > 0 {
			c.Writer.Header().Set("Content-Length", fmt.Sprintf("%d", attrs.Size))
		}
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, reader)
	}
}

func createThumbnail(ctx context.Context, objectKey string) (string, error) {
	data, err := utils.DownloadFromGCS(ctx, objectKey)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxImageSizeBytes {
		return "", errors.New("image exceeds 10MB limit")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return "", err
	}

	thumbnailKey := thumbnailObjectKey(objectKey)
	if _, err := utils.UploadBytesToGCS(ctx, buf.Bytes(), thumbnailKey, "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}

func thumbnailObjectKey(objectKey string) string {
	dir := path.Dir(objectKey)
	filename := path.Base(objectKey)
	return path.Join(dir, "thumbnails", filename)
}

func sanitizeSegment(input string) string {
	var out strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func extensionFromMimeType(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	}
	return ""
}
