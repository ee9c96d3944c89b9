package models

import (
	"context"
	"strings"
	"time"

	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/utils"
	"gorm.io/gorm"
)

// MediaFile records a reference to an object already uploaded by the client
// through a signed URL. The upload itself never passes through here.
type MediaFile struct {
	ID            int        `gorm:"primary_key" json:"id"`
	ReferenceType ParentType `gorm:"size:20;not null;index:idx_media_reference,priority:1" json:"reference_type"`
	ReferenceID   int        `gorm:"not null;index:idx_media_reference,priority:2" json:"reference_id"`
	ObjectKey     string     `gorm:"size:500;not null" json:"object_key"`
	Name          string     `gorm:"size:255" json:"name"`
	MimeType      string     `gorm:"size:100" json:"mime_type"`
	Kind          MediaKind  `gorm:"size:10;not null" json:"kind"`
	URL           string     `gorm:"size:1000" json:"url"`
	ThumbnailURL  string     `gorm:"size:1000" json:"thumbnail_url"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMediaReference struct {
	ObjectKey string `json:"object_key" binding:"required"`
	MimeType  string `json:"mime_type" binding:"required"`
	Name      string `json:"name"`
}

// MediaKindFromMime classifies by MIME prefix: image/* is an image,
// everything else counts as video.
func MediaKindFromMime(mimeType string) MediaKind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/") {
		return MediaKindImage
	}
	return MediaKindVideo
}

const MinimumDocumentImages = 3

func countImages(refs []NewMediaReference) int {
	n := 0
	for _, ref := range refs {
		if MediaKindFromMime(ref.MimeType) == MediaKindImage {
			n++
		}
	}
	return n
}

// ValidateMinimumImages enforces the visual-proof rule: a quote or invoice
// needs at least three photos of the wheels before anything is persisted.
func ValidateMinimumImages(refs []NewMediaReference, minimum int) error {
	n := countImages(refs)
	if n < minimum {
		return &utils.ValidationError{
			Field:     "media",
			Message:   "at least 3 images of the wheels are required",
			Shortfall: minimum - n,
		}
	}
	return nil
}

func createMediaFilesTx(ctx context.Context, tx *gorm.DB, referenceType ParentType, referenceID int, refs []NewMediaReference) ([]*MediaFile, error) {
	files := make([]*MediaFile, 0, len(refs))
	// written one by one in input order
	for _, ref := range refs {
		file := MediaFile{
			ReferenceType: referenceType,
			ReferenceID:   referenceID,
			ObjectKey:     ref.ObjectKey,
			Name:          ref.Name,
			MimeType:      ref.MimeType,
			Kind:          MediaKindFromMime(ref.MimeType),
			URL:           utils.BuildObjectAccessURL(ref.ObjectKey),
		}
		if err := tx.WithContext(ctx).Create(&file).Error; err != nil {
			return nil, err
		}
		files = append(files, &file)
	}
	return files, nil
}

func ListMediaFiles(ctx context.Context, referenceType ParentType, referenceID int) ([]*MediaFile, error) {
	db := config.GetDB()
	var files []*MediaFile
	err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Order("created_at ASC, id ASC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// AttachMediaFiles records references on an existing document.
func AttachMediaFiles(ctx context.Context, referenceType ParentType, referenceID int, refs []NewMediaReference) ([]*MediaFile, error) {
	db := config.GetDB()
	if err := validateParentExists(ctx, db, referenceType, referenceID); err != nil {
		return nil, err
	}

	var files []*MediaFile
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		files, txErr = createMediaFilesTx(ctx, tx, referenceType, referenceID, refs)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// DeleteMediaFile removes the reference and returns the deleted row so the
// caller can clean up the stored object best-effort.
func DeleteMediaFile(ctx context.Context, id int) (*MediaFile, error) {

	file, err := utils.FetchModel[MediaFile](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

func deleteMediaForParentTx(ctx context.Context, tx *gorm.DB, referenceType ParentType, referenceID int) error {
	return tx.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Delete(&MediaFile{}).Error
}

func SetMediaThumbnail(ctx context.Context, id int, thumbnailURL string) (*MediaFile, error) {
	file, err := utils.FetchModel[MediaFile](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&file).Update("ThumbnailURL", thumbnailURL).Error
	if err != nil {
		return nil, err
	}
	file.ThumbnailURL = thumbnailURL
	return file, nil
}
