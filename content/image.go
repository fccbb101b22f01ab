package content

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted upload, in bytes.
const MaxImageSize = 5 << 20

// Image is the metadata of an uploaded image. The bytes live in the image
// store that holds it.
type Image struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// URL is the public path the image is served from.
func (img Image) URL() string {
	return ImageURL(img.Filename)
}

// ImageURL returns the public path for filename.
func ImageURL(filename string) string {
	return "/api/images/" + filename
}

var (
	ErrImageTooLarge = errors.New("image size must be less than 5MB")
	ErrImageType     = errors.New("only JPEG, PNG, WebP, and GIF images are allowed")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// NormalizeMimeType maps aliases such as image/jpg to their canonical form
// and strips parameters.
func NormalizeMimeType(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "image/jpg" || mime == "image/pjpeg" {
		return "image/jpeg"
	}
	return mime
}

// AllowedImageType reports whether mime is an accepted upload type.
func AllowedImageType(mime string) bool {
	_, ok := imageExtensions[NormalizeMimeType(mime)]
	return ok
}

// ValidateImage checks an upload's size and MIME type, returning every
// problem found.
func ValidateImage(size int64, mime string) []error {
	var errs []error
	if size > MaxImageSize {
		errs = append(errs, ErrImageTooLarge)
	}
	if !AllowedImageType(mime) {
		errs = append(errs, ErrImageType)
	}
	return errs
}

// ExtensionFor returns the file extension used for mime, or ".jpg".
func ExtensionFor(mime string) string {
	if ext, ok := imageExtensions[NormalizeMimeType(mime)]; ok {
		return ext
	}
	return ".jpg"
}

// MimeTypeFor guesses a MIME type from a file name's extension.
func MimeTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	}
	return "application/octet-stream"
}

// ImageFilename builds a unique, URL-safe filename for an upload:
// <slug-of-name>-<unix-millis>-<random><ext>. The extension comes from the
// original name when it is a known image extension, else from mime.
func ImageFilename(originalName, mime string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	base := Slugify(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	if base == "" {
		base = "image"
	}
	if MimeTypeFor(ext) == "application/octet-stream" {
		ext = ExtensionFor(mime)
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%d-%s%s", base, now.UnixMilli(), random, ext)
}

// DataURI encodes data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI decodes a base64 data URI produced by DataURI.
func ParseDataURI(uri string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("content: not a data URI")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("content: malformed data URI")
	}
	mime, _, _ = strings.Cut(header, ";")
	if mime == "" {
		mime = "image/jpeg"
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("content: decode data URI: %w", err)
	}
	return mime, data, nil
}
