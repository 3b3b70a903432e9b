package utils

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUtils_ShouldDownloadImage(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0, 0, 0} // JPEG magic bytes
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	f, err := DownloadImage(srv.URL)
	if err != nil {
		t.Fatalf("couldn't download test file: %v", err)
	}
	defer os.Remove(f.Name())

	if !strings.Contains(f.Name(), "pico-image") {
		t.Errorf("the downloaded image should have been saved in a temporary file")
	}
}

func TestUtils_DownloadImage_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := DownloadImage(srv.URL); err == nil {
		t.Errorf("expected an error for a non-200 response")
	}
}

func TestUtils_ShouldBeValidUrl(t *testing.T) {
	if !IsValidUrl("https://github.com/esimov/caire/") {
		t.Errorf("a valid URL should have been recognized as such")
	}
	if IsValidUrl("not-a-url") {
		t.Errorf("a malformed URL should not have been recognized as valid")
	}
}

func TestUtils_ShouldDetectValidFileType(t *testing.T) {
	dir := t.TempDir()
	sampleImg := filepath.Join(dir, "sample.jpg")
	if err := os.WriteFile(sampleImg, []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0, 0, 0}, 0o644); err != nil {
		t.Fatalf("could not write fixture file: %v", err)
	}

	ftype, err := DetectFileContentType(sampleImg)
	if err != nil {
		t.Fatalf("could not detect content type: %v", err)
	}

	if !strings.Contains(ftype.(string), "image") {
		t.Errorf("content type expected to be of type image, got: %v", ftype)
	}
}
