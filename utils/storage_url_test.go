package utils

import "testing"

func TestExtractObjectKeyFromURL(t *testing.T) {
	t.Setenv("GCS_BUCKET", "myjantes-media")

	cases := []struct {
		in       string
		expected string
	}{
		{"quotes/42/wheel.jpg", "quotes/42/wheel.jpg"},
		{"gs://myjantes-media/quotes/42/wheel.jpg", "quotes/42/wheel.jpg"},
		{"https://storage.googleapis.com/myjantes-media/quotes/42/wheel.jpg", "quotes/42/wheel.jpg"},
		{"https://myjantes-media.storage.googleapis.com/quotes/42/wheel.jpg", "quotes/42/wheel.jpg"},
		{"https://storage.cloud.google.com/myjantes-media/quotes/42/wheel.jpg", "quotes/42/wheel.jpg"},
		{"https://cdn.example.com/myjantes-media/quotes/42/wheel.jpg", "quotes/42/wheel.jpg"},
		{"https://api.example.com/media?key=quotes%2F42%2Fwheel.jpg", "quotes/42/wheel.jpg"},
		{"quotes/../secrets.txt", ""},
		{"gs://myjantes-media", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ExtractObjectKeyFromURL(tc.in); got != tc.expected {
			t.Fatalf("ExtractObjectKeyFromURL(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestBuildObjectAccessURL_Template(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://api.example.com/media/{objectKey}")
	got := BuildObjectAccessURL("quotes/42/wheel.jpg")
	if got != "https://api.example.com/media/quotes/42/wheel.jpg" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestBuildObjectAccessURL_QueryTemplateEscapes(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://api.example.com/media?key={objectKey}")
	got := BuildObjectAccessURL("quotes/42/wheel.jpg")
	if got != "https://api.example.com/media?key=quotes%2F42%2Fwheel.jpg" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestBuildObjectAccessURL_GCSFallback(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	t.Setenv("GCS_URL", "storage.googleapis.com")
	t.Setenv("GCS_BUCKET", "myjantes-media")
	got := BuildObjectAccessURL("quotes/42/wheel.jpg")
	if got != "https://storage.googleapis.com/myjantes-media/quotes/42/wheel.jpg" {
		t.Fatalf("unexpected url: %s", got)
	}
}
