package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/filepicker"
)

const pickerHeight = 12

// newFilePicker returns a fresh picker rooted at dir that only sends files
func newFilePicker(dir string) filepicker.Model {
	picker := filepicker.New()
	picker.CurrentDirectory = dir
	picker.DirAllowed = false
	picker.FileAllowed = true
	picker.Height = pickerHeight
	return picker
}

// defaultBrowsePath returns a sensible starting directory for the file picker
func defaultBrowsePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		// prefer the usual places people keep attachments
		for _, name := range []string{"Documents", "Downloads"} {
			candidate := filepath.Join(home, name)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				return candidate
			}
		}
		return home
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// formatFileSize returns the size label shown while an upload is in flight
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
