package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Archive stores the original ticket images as submitted, for later review.
type Archive interface {
	// Save stores a file and returns the name it was stored under.
	Save(filename string, data []byte) (string, error)
}

// LocalArchive implements the Archive interface on the local filesystem.
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates a LocalArchive rooted at basePath, creating the
// directory if needed.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_.]`)
	multiSpace  = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames before they hit the
// filesystem.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = unsafeChars.ReplaceAllString(base, "")
	base = multiSpace.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "ticket"
	}
	return base + ext
}

// Save writes the file under a sanitized name.
func (a *LocalArchive) Save(filename string, data []byte) (string, error) {
	name := sanitizeFilename(filename)
	if err := os.WriteFile(filepath.Join(a.basePath, name), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}
