package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/vidscreen/constants"
)

// AllowedExt checks if a file extension is a supported video type.
func AllowedExt(ext string) bool {
	return constants.IsAllowedVideoExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// TitleFromPath is the file name without directory or extension.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
