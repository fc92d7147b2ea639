package filetype

import (
	"mime"
	"path/filepath"
	"strings"
)

// Category classifies a file by its extension. The zero value means the
// extension is not in any table.
type Category string

const (
	Unknown  Category = ""
	Image    Category = "image"
	Video    Category = "video"
	Audio    Category = "audio"
	Document Category = "document"
	Text     Category = "text"
	Archive  Category = "archive"
)

var categories = map[string]Category{
	".jpg": Image, ".jpeg": Image, ".png": Image, ".gif": Image,
	".bmp": Image, ".webp": Image, ".tiff": Image, ".tif": Image,
	".heic": Image, ".heif": Image, ".avif": Image, ".svg": Image,

	".mp4": Video, ".mov": Video, ".avi": Video, ".mkv": Video,
	".wmv": Video, ".flv": Video, ".webm": Video, ".m4v": Video,

	".mp3": Audio, ".wav": Audio, ".flac": Audio, ".aac": Audio,
	".ogg": Audio, ".m4a": Audio,

	".pdf": Document, ".doc": Document, ".docx": Document, ".xls": Document,
	".xlsx": Document, ".ppt": Document, ".pptx": Document,
	".odt": Document, ".ods": Document, ".odp": Document,

	".txt": Text, ".md": Text, ".csv": Text, ".log": Text,
	".json": Text, ".yaml": Text, ".yml": Text, ".xml": Text,
	".html": Text, ".htm": Text, ".py": Text, ".go": Text,

	".zip": Archive, ".tar": Archive, ".gz": Archive, ".tgz": Archive,
	".bz2": Archive, ".xz": Archive, ".7z": Archive, ".rar": Archive,
}

// Ext returns the filename suffix including the dot, as found on disk.
func Ext(path string) string {
	return filepath.Ext(path)
}

// Detect returns the Category for path based on its extension.
// Matching is case-insensitive.
func Detect(path string) Category {
	return categories[strings.ToLower(filepath.Ext(path))]
}

// MIME returns the registered MIME type for the extension of path, or ""
// when none is known. No content sniffing is done.
func MIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}
