package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var imageExts = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// SniffImage checks that the upload is a well-formed image payload by content,
// not by filename, and returns the canonical extension for it.
func SniffImage(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	ct := http.DetectContentType(buf[:n])
	ext, ok := imageExts[ct]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", ct)
	}
	return ext, nil
}

// SaveImage stores a validated upload under mediaDir/posts/ with a random
// name and returns the public URL path of the stored file.
func SaveImage(fh *multipart.FileHeader, mediaDir string) (string, error) {
	ext, err := SniffImage(fh)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(mediaDir, "posts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return "/media/posts/" + name, nil
}
