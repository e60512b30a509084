package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// File is one attachment ready to be sent.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// OpenFile opens path for upload and detects its content type. The caller
// closes the returned closer once the upload finished.
func OpenFile(path string) (File, io.Closer, error) {
	handle, err := os.Open(path)
	if err != nil {
		return File{}, nil, err
	}
	info, err := handle.Stat()
	if err != nil {
		_ = handle.Close()
		return File{}, nil, err
	}
	if info.IsDir() {
		_ = handle.Close()
		return File{}, nil, errors.New("cannot upload a directory")
	}

	contentType := "application/octet-stream"
	if detected, err := mimetype.DetectReader(handle); err == nil {
		contentType = detected.String()
	}
	if _, err := handle.Seek(0, io.SeekStart); err != nil {
		_ = handle.Close()
		return File{}, nil, fmt.Errorf("rewind %s: %w", path, err)
	}

	return File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Content:     handle,
	}, handle, nil
}
