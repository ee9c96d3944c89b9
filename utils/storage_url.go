package utils

import (
	"net/url"
	"os"
	"strings"
)

func BuildObjectAccessURL(objectKey string) string {
	base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL"))
	if base != "" {
		if strings.Contains(base, "{objectKey}") {
			escaped := objectKey
			if strings.Contains(base, "?") {
				escaped = url.QueryEscape(objectKey)
			}
			return strings.ReplaceAll(base, "{objectKey}", escaped)
		}
		if strings.Contains(base, "?") {
			return base + url.QueryEscape(objectKey)
		}
		return strings.TrimRight(base, "/") + "/" + objectKey
	}

	gcsURL := strings.TrimSpace(os.Getenv("GCS_URL"))
	gcsBucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if gcsURL != "" && gcsBucket != "" {
		return "https://" + gcsURL + "/" + gcsBucket + "/" + objectKey
	}

	return objectKey
}

func ExtractObjectKeyFromURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	// Allow passing raw object keys directly (e.g. "invoices/42/wheel.jpg").
	if !strings.Contains(rawURL, "://") && !strings.HasPrefix(rawURL, "/") && strings.Contains(rawURL, "/") {
		// Basic hardening: reject path traversal.
		if strings.Contains(rawURL, "..") {
			return ""
		}
		return rawURL
	}

	if strings.HasPrefix(rawURL, "gs://") {
		rawURL = strings.TrimPrefix(rawURL, "gs://")
		parts := strings.SplitN(rawURL, "/", 2)
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if key := parsed.Query().Get("key"); key != "" {
		return key
	}
	if key := parsed.Query().Get("objectKey"); key != "" {
		return key
	}

	// Handle common Google Cloud Storage URL formats even when env vars are
	// missing:
	// - https://storage.googleapis.com/<bucket>/<objectKey>
	// - https://<bucket>.storage.googleapis.com/<objectKey>
	// - https://storage.cloud.google.com/<bucket>/<objectKey>
	host := strings.ToLower(strings.TrimSpace(parsed.Host))
	p := strings.TrimPrefix(parsed.Path, "/")
	if host == "storage.googleapis.com" || host == "storage.cloud.google.com" {
		parts := strings.SplitN(p, "/", 2)
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
		return ""
	}
	if strings.HasSuffix(host, ".storage.googleapis.com") && p != "" {
		return p
	}

	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket != "" {
		marker := "/" + bucket + "/"
		if idx := strings.Index(parsed.Path, marker); idx >= 0 {
			return parsed.Path[idx+len(marker):]
		}
	}
	return ""
}
