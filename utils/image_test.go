package utils

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func uploadHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["image"][0]
}

func TestSniffImage(t *testing.T) {
	ext, err := SniffImage(uploadHeader(t, "pic.png", pngHeader))
	require.NoError(t, err)
	require.Equal(t, ".png", ext)

	// Content decides, not the filename.
	_, err = SniffImage(uploadHeader(t, "pic.png", []byte("just some text")))
	require.Error(t, err)

	_, err = SniffImage(uploadHeader(t, "empty.png", nil))
	require.Error(t, err)
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()

	url, err := SaveImage(uploadHeader(t, "pic.png", pngHeader), dir)
	require.NoError(t, err)
	require.Regexp(t, `^/media/posts/.+\.png$`, url)

	_, err = SaveImage(uploadHeader(t, "notes.txt", []byte("plain text")), dir)
	require.Error(t, err)
}
