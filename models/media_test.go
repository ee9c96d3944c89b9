package models

import (
	"errors"
	"testing"

	"github.com/myjantes/atelier_backend/utils"
)

func TestMediaKindFromMime(t *testing.T) {
	cases := []struct {
		mime     string
		expected MediaKind
	}{
		{"image/jpeg", MediaKindImage},
		{"image/png", MediaKindImage},
		{"IMAGE/WEBP", MediaKindImage},
		{" image/heic ", MediaKindImage},
		{"video/mp4", MediaKindVideo},
		{"video/quicktime", MediaKindVideo},
		{"application/pdf", MediaKindVideo},
		{"", MediaKindVideo},
	}
	for _, tc := range cases {
		if got := MediaKindFromMime(tc.mime); got != tc.expected {
			t.Fatalf("MediaKindFromMime(%q) expected %s, got %s", tc.mime, tc.expected, got)
		}
	}
}

func imageRefs(n int) []NewMediaReference {
	refs := make([]NewMediaReference, 0, n)
	for i := 0; i < n; i++ {
		refs = append(refs, NewMediaReference{ObjectKey: "quotes/a.jpg", MimeType: "image/jpeg"})
	}
	return refs
}

func TestValidateMinimumImages(t *testing.T) {
	if err := ValidateMinimumImages(imageRefs(3), MinimumDocumentImages); err != nil {
		t.Fatalf("3 images should pass, got %v", err)
	}
	if err := ValidateMinimumImages(imageRefs(5), MinimumDocumentImages); err != nil {
		t.Fatalf("5 images should pass, got %v", err)
	}

	err := ValidateMinimumImages(imageRefs(1), MinimumDocumentImages)
	if err == nil {
		t.Fatal("1 image should fail")
	}
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.Shortfall != 2 {
		t.Fatalf("expected shortfall 2, got %d", ve.Shortfall)
	}
	if ve.Field != "media" {
		t.Fatalf("expected field media, got %s", ve.Field)
	}
}

func TestValidateMinimumImages_VideosDoNotCount(t *testing.T) {
	refs := []NewMediaReference{
		{ObjectKey: "quotes/a.jpg", MimeType: "image/jpeg"},
		{ObjectKey: "quotes/b.jpg", MimeType: "image/png"},
		{ObjectKey: "quotes/c.mp4", MimeType: "video/mp4"},
		{ObjectKey: "quotes/d.mp4", MimeType: "video/mp4"},
	}
	err := ValidateMinimumImages(refs, MinimumDocumentImages)
	if err == nil {
		t.Fatal("2 images + 2 videos should fail the 3-image minimum")
	}
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.Shortfall != 1 {
		t.Fatalf("expected shortfall 1, got %d", ve.Shortfall)
	}
}

func TestValidateMinimumImages_EmptyList(t *testing.T) {
	err := ValidateMinimumImages(nil, MinimumDocumentImages)
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.Shortfall != 3 {
		t.Fatalf("expected shortfall 3, got %d", ve.Shortfall)
	}
}
