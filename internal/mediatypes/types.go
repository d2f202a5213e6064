package mediatypes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the classification of a directory entry.
type Kind string

const (
	// KindVideo is a supported video file.
	KindVideo Kind = "video"
	// KindPhoto is a supported photo file.
	KindPhoto Kind = "photo"
	// KindIgnore is anything the indexer does not process.
	KindIgnore Kind = "ignore"
)

// VideoExtensions is the built-in video allow-list.
var VideoExtensions = []string{
	".mp4", ".mov", ".m4v", ".avi", ".mkv", ".wmv", ".flv", ".webm",
	".mpg", ".mpeg", ".3gp", ".mts", ".m2ts", ".mxf",
}

// PhotoExtensions is the built-in photo allow-list.
var PhotoExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tif", ".tiff",
	".heic", ".heif", ".avif", ".raw", ".dng", ".cr2", ".cr3", ".nef",
	".arw", ".raf", ".orf", ".rw2",
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",

	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".m4v":  "video/x-m4v",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".3gp":  "video/3gpp",
	".mts":  "video/mp2t",
	".m2ts": "video/mp2t",
}

// Classifier decides whether a directory entry is a video, a photo or ignorable.
// The zero value ignores everything except hidden-file handling.
type Classifier struct {
	Video map[string]bool
	Photo map[string]bool
}

// Default returns a classifier backed by the built-in extension tables.
func Default() *Classifier {
	return New(VideoExtensions, PhotoExtensions)
}

// New builds a classifier from extension lists. Extensions are normalised to
// lower case with a leading dot.
func New(video, photo []string) *Classifier {
	return &Classifier{
		Video: extensionSet(video),
		Photo: extensionSet(photo),
	}
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if n := NormalizeExt(ext); n != "" {
			set[n] = true
		}
	}
	return set
}

// NormalizeExt lower-cases ext and ensures it starts with a dot.
// Returns "" for blank input.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// IsHidden reports whether name is a dot-file, which includes the "._"
// AppleDouble sidecars macOS writes on foreign volumes.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Classify returns the Kind of a directory entry name.
func (c *Classifier) Classify(name string) Kind {
	if IsHidden(name) {
		return KindIgnore
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return KindIgnore
	}
	if c.Video[ext] {
		return KindVideo
	}
	if c.Photo[ext] {
		return KindPhoto
	}
	return KindIgnore
}

// Extensions returns the sorted allow-list for kind.
func (c *Classifier) Extensions(kind Kind) []string {
	var set map[string]bool
	switch kind {
	case KindVideo:
		set = c.Video
	case KindPhoto:
		set = c.Photo
	default:
		return nil
	}

	exts := make([]string, 0, len(set))
	for ext := range set {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// tableFile is the on-disk shape of a media type table.
type tableFile struct {
	Video []string `yaml:"video"`
	Photo []string `yaml:"photo"`
}

// LoadFile reads extension tables from a YAML file:
//
//	video: [mp4, mov]
//	photo: [.jpg, .JPEG, heic]
//
// A kind missing from the file keeps the built-in list.
func LoadFile(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading media types file: %w", err)
	}

	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing media types file: %w", err)
	}

	video, photo := tf.Video, tf.Photo
	if video == nil {
		video = VideoExtensions
	}
	if photo == nil {
		photo = PhotoExtensions
	}

	c := New(video, photo)
	for ext := range c.Video {
		if c.Photo[ext] {
			return nil, fmt.Errorf("extension %s is listed as both video and photo", ext)
		}
	}
	return c, nil
}

// MimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func MimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}
