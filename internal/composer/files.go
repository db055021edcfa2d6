package composer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fyrsmithlabs/connectify/internal/post"
)

// Accepted upload MIME types.
var (
	imageTypes = map[string]bool{
		"image/jpeg":    true,
		"image/jpg":     true,
		"image/png":     true,
		"image/gif":     true,
		"image/webp":    true,
		"image/bmp":     true,
		"image/svg+xml": true,
	}
	videoTypes = map[string]bool{
		"video/mp4":  true,
		"video/avi":  true,
		"video/mov":  true,
		"video/wmv":  true,
		"video/flv":  true,
		"video/webm": true,
		"video/mkv":  true,
		// Registered names reported by content sniffing for the same containers.
		"video/quicktime":  true,
		"video/x-msvideo":  true,
		"video/x-ms-wmv":   true,
		"video/x-ms-asf":   true,
		"video/x-flv":      true,
		"video/x-matroska": true,
	}
)

// File is a local file selected for upload. Exactly one of Path or Data
// supplies the content.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Path        string
	Data        []byte
}

// FileFromPath stats path and sniffs its content type.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	f := File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Path: path,
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		f.ContentType = baseType(mt.String())
	}
	return f, nil
}

// FileFromBytes wraps in-memory content. An empty contentType is sniffed.
func FileFromBytes(name, contentType string, data []byte) File {
	if contentType == "" {
		contentType = baseType(mimetype.Detect(data).String())
	}
	return File{Name: name, Size: int64(len(data)), ContentType: contentType, Data: data}
}

// open returns a reader over the file content.
func (f File) open() (io.ReadCloser, error) {
	if f.Path != "" {
		return os.Open(f.Path)
	}
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// mediaType classifies a content type, reporting false when it is not accepted.
func mediaType(contentType string) (post.MediaType, bool) {
	ct := baseType(contentType)
	switch {
	case imageTypes[ct]:
		return post.Image, true
	case videoTypes[ct]:
		return post.Video, true
	default:
		return "", false
	}
}

// validateFile checks size and type, returning the inferred media type or a
// user-facing rejection.
func validateFile(f File, maxSize int64) (post.MediaType, error) {
	if f.Size > maxSize {
		return "", fmt.Errorf("File %q exceeds %dMB limit", f.Name, maxSize/(1024*1024))
	}
	ct := f.ContentType
	if ct == "" && f.Data != nil {
		ct = mimetype.Detect(f.Data).String()
	}
	mt, ok := mediaType(ct)
	if !ok {
		return "", fmt.Errorf("File %q is not a supported image or video format", f.Name)
	}
	return mt, nil
}

func baseType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
