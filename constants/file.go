package constants

import "strings"

// AllowedExtensions holds the video extensions accepted for registration.
var AllowedExtensions = map[string]struct{}{
	"mp4":  {},
	"mov":  {},
	"avi":  {},
	"mkv":  {},
	"webm": {},
	"m4v":  {},
}

var mimeTypes = map[string]string{
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"m4v":  "video/x-m4v",
}

// ThumbnailPublicPrefix is the URL prefix the static server exposes thumbnails under.
const ThumbnailPublicPrefix = "/uploads/thumbnails/"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedVideoExt reports whether ext (with or without dot) is a supported video type.
func IsAllowedVideoExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MimeTypeForExt returns the MIME type for ext, or application/octet-stream.
func MimeTypeForExt(ext string) string {
	if m, ok := mimeTypes[NormalizeExt(ext)]; ok {
		return m
	}
	return "application/octet-stream"
}
