package lilac

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// withPNGSize rewrites the IHDR dimensions of an encoded PNG, leaving the
// pixel data as it was.
func withPNGSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	if string(out[12:16]) != "IHDR" {
		t.Fatalf("unexpected chunk %q", out[12:16])
	}
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func upload(t *testing.T, a *App, filename string, data []byte, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestProcessImage(t *testing.T) {
	tests := []struct {
		name         string
		width        int
		maxWidth     int
		wantW, wantH int
	}{
		{"narrow kept", 8, 10, 8, 4},
		{"wide scaled", 20, 10, 10, 5},
		{"no limit", 20, 0, 20, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, w, h, err := processImage(pngBytes(t, tt.width, tt.width/2), "image/png", tt.maxWidth)
			if err != nil {
				t.Fatalf("processImage: %v", err)
			}
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if format != "png" || cfg.Width != tt.wantW {
				t.Errorf("output = %s %dx%d", format, cfg.Width, cfg.Height)
			}
		})
	}
}

func TestProcessImageKeepsGIF(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewPaletted(image.Rect(0, 0, 40, 20), []color.Color{color.Black, color.White})
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	out, w, _, err := processImage(buf.Bytes(), "image/gif", 10)
	if err != nil {
		t.Fatalf("processImage: %v", err)
	}
	if w != 40 || !bytes.Equal(out, buf.Bytes()) {
		t.Errorf("gif should be stored unchanged, got width %d", w)
	}
}

func TestProcessImageRejectsGarbage(t *testing.T) {
	if _, _, _, err := processImage([]byte("not an image"), "image/png", 10); err == nil {
		t.Fatal("expected an error for undecodable data")
	}
}

func TestProcessImagePixelCap(t *testing.T) {
	tests := []struct {
		name    string
		w, h    uint32
		wantErr bool
	}{
		{"at the cap", 8000, 5000, false},
		{"over the cap", 8001, 5000, true},
		{"tall and narrow", 1, 40_000_001, true},
		{"huge both ways", 60000, 60000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := withPNGSize(t, pngBytes(t, 2, 2), tt.w, tt.h)
			_, w, h, err := processImage(data, "image/png", 0)
			if tt.wantErr {
				if !errors.Is(err, errImageDimensions) {
					t.Fatalf("err = %v, want errImageDimensions", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("processImage: %v", err)
			}
			if w != int(tt.w) || h != int(tt.h) {
				t.Errorf("size = %dx%d", w, h)
			}
		})
	}
}

func TestImageUploadLifecycle(t *testing.T) {
	a := newTestApp(t)
	cookie := login(t, a)
	data := pngBytes(t, 4, 2)

	rec := upload(t, a, "My Photo.png", data, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: status = %d: %s", rec.Code, rec.Body.String())
	}
	var up struct {
		Success  bool   `json:"success"`
		ImageURL string `json:"imageUrl"`
		Image    struct {
			Filename string `json:"filename"`
			MimeType string `json:"mimeType"`
			Width    int    `json:"width"`
		} `json:"image"`
	}
	decode(t, rec, &up)
	if !up.Success || !strings.HasPrefix(up.ImageURL, "/api/images/my-photo-") || !strings.HasSuffix(up.ImageURL, ".png") {
		t.Fatalf("upload response = %+v", up)
	}
	if up.Image.MimeType != "image/png" || up.Image.Width != 4 {
		t.Errorf("image = %+v", up.Image)
	}

	rec = serve(a, http.MethodGet, up.ImageURL, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("serve: status = %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Errorf("served bytes differ from upload")
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
		t.Errorf("Cache-Control = %q", got)
	}

	rec = serve(a, http.MethodGet, "/api/admin/images", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var list struct {
		Images []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"images"`
	}
	decode(t, rec, &list)
	if len(list.Images) != 1 || list.Images[0].URL != up.ImageURL {
		t.Errorf("images = %+v", list.Images)
	}

	rec = serve(a, http.MethodDelete, "/api/admin/images/"+up.Image.Filename, nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	if rec := serve(a, http.MethodGet, up.ImageURL, nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleted image still served: %d", rec.Code)
	}
	if rec := serve(a, http.MethodDelete, "/api/admin/images/"+up.Image.Filename, nil, cookie); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}
}

func TestImageUploadRejects(t *testing.T) {
	a := newTestApp(t)
	cookie := login(t, a)

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"not an image", "notes.txt", []byte("just some text")},
		{"too large", "big.png", append(pngBytes(t, 2, 2), make([]byte, 5<<20)...)},
		{"too many pixels", "huge.png", withPNGSize(t, pngBytes(t, 2, 2), 20000, 20000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, a, tt.file, tt.data, cookie)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", strings.NewReader(""))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: status = %d, want 400", rec.Code)
	}
}
