package content

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestImageFilename(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	pattern := regexp.MustCompile(`^my-holiday-photo-1700000000000-[0-9a-f]{6}\.png$`)

	got := ImageFilename("My Holiday Photo!.PNG", "image/png", now)
	if !pattern.MatchString(got) {
		t.Errorf("ImageFilename = %q, want match %s", got, pattern)
	}

	other := ImageFilename("My Holiday Photo!.PNG", "image/png", now)
	if other == got {
		t.Errorf("ImageFilename should be unique, got %q twice", got)
	}

	if got := ImageFilename("@@@.jpeg", "image/jpeg", now); !regexp.MustCompile(`^image-1700000000000-[0-9a-f]{6}\.jpeg$`).MatchString(got) {
		t.Errorf("symbol-only name = %q", got)
	}
	if got := ImageFilename("upload", "image/webp", now); !regexp.MustCompile(`\.webp$`).MatchString(got) {
		t.Errorf("extension from mime = %q", got)
	}
}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		size int64
		mime string
		want []error
	}{
		{1024, "image/png", nil},
		{1024, "image/jpg", nil},
		{1024, "image/webp", nil},
		{1024, "image/gif", nil},
		{1024, "IMAGE/JPEG; charset=binary", nil},
		{MaxImageSize + 1, "image/png", []error{ErrImageTooLarge}},
		{1024, "application/pdf", []error{ErrImageType}},
		{MaxImageSize + 1, "text/plain", []error{ErrImageTooLarge, ErrImageType}},
	}
	for _, tt := range tests {
		got := ValidateImage(tt.size, tt.mime)
		if len(got) != len(tt.want) {
			t.Errorf("ValidateImage(%d, %q) = %v, want %v", tt.size, tt.mime, got, tt.want)
			continue
		}
		for i := range got {
			if !errors.Is(got[i], tt.want[i]) {
				t.Errorf("ValidateImage(%d, %q)[%d] = %v, want %v", tt.size, tt.mime, i, got[i], tt.want[i])
			}
		}
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}
	uri := DataURI("image/png", data)
	mime, got, err := ParseDataURI(uri)
	if err != nil {
		t.Fatalf("ParseDataURI failed: %v", err)
	}
	if mime != "image/png" || !bytes.Equal(got, data) {
		t.Errorf("ParseDataURI = %q %v", mime, got)
	}
	if _, _, err := ParseDataURI("/api/images/x.png"); err == nil {
		t.Error("expected error for non data URI")
	}
}
