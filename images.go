package lilac

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

const (
	jpegQuality = 85
	// maxImagePixels bounds width*height of an accepted upload. The header
	// is checked before any pixel data is decoded.
	maxImagePixels = 40_000_000
)

var errImageDimensions = errors.New("image dimensions too large")

type imageView struct {
	content.Image
	URL string `json:"url"`
}

func viewImage(img content.Image) imageView {
	return imageView{Image: img, URL: img.URL()}
}

// processImage inspects data and, for JPEG and PNG wider than maxWidth,
// scales it down preserving the aspect ratio. GIF and WebP are stored as
// uploaded. It returns the bytes to store and their dimensions.
func processImage(data []byte, mime string, maxWidth int) ([]byte, int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 || w > maxImagePixels/h {
		return nil, 0, 0, fmt.Errorf("%w: %dx%d", errImageDimensions, w, h)
	}
	if maxWidth <= 0 || w <= maxWidth || (mime != "image/jpeg" && mime != "image/png") {
		return data, w, h, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}
	newH := h * maxWidth / w
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if mime == "image/png" {
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), maxWidth, newH, nil
}

func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return statusError(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > a.Config.MaxUploadSize {
		return &content.ValidationError{Problems: []string{content.ErrImageTooLarge.Error()}}
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, a.Config.MaxUploadSize+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	mime := content.NormalizeMimeType(file.Header.Get(echo.HeaderContentType))
	if mime == "" || mime == "application/octet-stream" {
		mime = content.NormalizeMimeType(http.DetectContentType(data))
	}
	if errs := content.ValidateImage(int64(len(data)), mime); len(errs) > 0 {
		problems := make([]string, len(errs))
		for i, e := range errs {
			problems[i] = e.Error()
		}
		return &content.ValidationError{Problems: problems}
	}

	stored, w, h, err := processImage(data, mime, a.Config.ImageMaxWidth)
	if errors.Is(err, errImageDimensions) {
		return statusError(http.StatusBadRequest, "Image dimensions too large")
	}
	if err != nil {
		return statusError(http.StatusBadRequest, "Invalid image")
	}

	now := a.now()
	img := content.Image{
		Filename:     content.ImageFilename(file.Filename, mime, now),
		OriginalName: file.Filename,
		MimeType:     mime,
		Size:         int64(len(stored)),
		Width:        w,
		Height:       h,
		UploadedAt:   now.UTC(),
	}
	if err := a.Images.Save(c.Request().Context(), img, stored); err != nil {
		return err
	}
	c.Logger().Infof("images: stored %s (%d bytes)", img.Filename, img.Size)
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"imageUrl": img.URL(),
		"image":    viewImage(img),
	})
}

func (a *App) handleServeImage(c echo.Context) error {
	name := c.Param("filename")
	if err := storage.CheckName(name); err != nil {
		return err
	}
	img, data, err := a.Images.Get(c.Request().Context(), name)
	if err != nil {
		return err
	}
	mime := img.MimeType
	if mime == "" {
		mime = content.MimeTypeFor(name)
	}
	c.Response().Header().Set("X-Content-Type-Options", "nosniff")
	return c.Blob(http.StatusOK, mime, data)
}

func (a *App) handleImageList(c echo.Context) error {
	images, err := a.Images.List(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]imageView, len(images))
	for i, img := range images {
		out[i] = viewImage(img)
	}
	return c.JSON(http.StatusOK, map[string]any{"images": out})
}

func (a *App) handleImageDelete(c echo.Context) error {
	name := strings.TrimSpace(c.Param("filename"))
	if err := storage.CheckName(name); err != nil {
		return err
	}
	if err := a.Images.Delete(c.Request().Context(), name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return statusError(http.StatusNotFound, "Image not found")
		}
		return err
	}
	c.Logger().Infof("images: deleted %s", name)
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
