package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FileKind classifies a stored file by its display purpose.
type FileKind string

const (
	KindImage FileKind = "image"
	KindVideo FileKind = "video"
	KindPDF   FileKind = "pdf"
	KindOther FileKind = "other"
)

var kindByExtension = map[string]FileKind{
	"jpg":  KindImage,
	"jpeg": KindImage,
	"png":  KindImage,
	"gif":  KindImage,
	"webp": KindImage,
	"svg":  KindImage,
	"mp4":  KindVideo,
	"webm": KindVideo,
	"ogg":  KindVideo,
	"mov":  KindVideo,
	"avi":  KindVideo,
	"pdf":  KindPDF,
}

// KindFromFilename classifies a file by its extension. Unknown extensions
// map to KindOther.
func KindFromFilename(name string) FileKind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if kind, ok := kindByExtension[ext]; ok {
		return kind
	}
	return KindOther
}

// ParseFileKind validates a kind value.
func ParseFileKind(raw string) (FileKind, error) {
	kind := FileKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case KindImage, KindVideo, KindPDF, KindOther:
		return kind, nil
	}
	return "", fmt.Errorf("invalid file kind %q", raw)
}

// FileRecord is one catalog entry for a stored file. Records are immutable:
// they are created with a successful blob write and deleted with its removal.
type FileRecord struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Kind       FileKind  `json:"kind"`
	SizeBytes  int64     `json:"size_bytes"`
	StorageKey string    `json:"storage_key"`
	CreatedAt  time.Time `json:"created_at"`
}
