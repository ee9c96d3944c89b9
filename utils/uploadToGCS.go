package utils

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var (
	gcsClient     *storage.Client
	gcsClientOnce sync.Once
	gcsClientErr  error
)

func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	gcsClientOnce.Do(func() {
		credsJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON"))
		if credsJSON != "" {
			gcsClient, gcsClientErr = storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
			return
		}
		credsFile := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		if credsFile != "" {
			gcsClient, gcsClientErr = storage.NewClient(ctx, option.WithCredentialsFile(credsFile))
			return
		}
		gcsClient, gcsClientErr = storage.NewClient(ctx)
	})
	return gcsClient, gcsClientErr
}

// GetGCSClient exposes the shared storage client for handlers that stream
// objects directly. Callers must not close it.
func GetGCSClient(ctx context.Context) (*storage.Client, error) {
	return getGoogleClient(ctx)
}

func gcsBucketName() (string, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", fmt.Errorf("GCS_BUCKET is not configured")
	}
	return bucket, nil
}

// UploadFileToGCS streams a multipart upload into the media bucket and
// returns the public access URL for the stored object.
func UploadFileToGCS(ctx context.Context, file multipart.File, objectName string, contentType string) (string, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	bucket, err := gcsBucketName()
	if err != nil {
		return "", err
	}

	wc := client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		wc.ContentType = contentType
	}
	if _, err := io.Copy(wc, file); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return BuildObjectAccessURL(objectName), nil
}

// UploadBytesToGCS writes an in-memory payload (thumbnails, generated
// documents) to the media bucket.
func UploadBytesToGCS(ctx context.Context, data []byte, objectName string, contentType string) (string, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	bucket, err := gcsBucketName()
	if err != nil {
		return "", err
	}

	wc := client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		wc.ContentType = contentType
	}
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return BuildObjectAccessURL(objectName), nil
}

// DownloadFromGCS reads a stored object in full. Used for thumbnail
// generation on small wheel photos.
func DownloadFromGCS(ctx context.Context, objectName string) ([]byte, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	bucket, err := gcsBucketName()
	if err != nil {
		return nil, err
	}

	rc, err := client.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func DeleteImageFromGCS(ctx context.Context, objectName string) error {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	bucket, err := gcsBucketName()
	if err != nil {
		return err
	}

	err = client.Bucket(bucket).Object(objectName).Delete(ctx)
	if err == storage.ErrObjectNotExist {
		return nil
	}
	return err
}

func ObjectExistsInGCS(ctx context.Context, objectName string) (bool, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return false, err
	}
	bucket, err := gcsBucketName()
	if err != nil {
		return false, err
	}

	_, err = client.Bucket(bucket).Object(objectName).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CheckMediaExistInGCS verifies a finished client-side upload before the
// object is recorded against a quote or invoice, and reports the stored
// content type so the record can be classified as image or video.
func CheckMediaExistInGCS(ctx context.Context, objectName string) (string, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	bucket, err := gcsBucketName()
	if err != nil {
		return "", err
	}

	attrs, err := client.Bucket(bucket).Object(objectName).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return "", fmt.Errorf("uploaded object %s not found", objectName)
	}
	if err != nil {
		return "", err
	}
	return attrs.ContentType, nil
}
