package utils

import (
	"html"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const maxFilenameBytes = 255

var filenamePolicy = bluemonday.StrictPolicy()

// SanitizeFilename strips markup and directory components from a client
// supplied filename. The result is plain text for storage and JSON, not HTML.
func SanitizeFilename(name string) string {
	// StrictPolicy escapes the text it keeps; undo that after the tags are gone.
	name = html.UnescapeString(filenamePolicy.Sanitize(name))
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(filepath.Base(name))
	if name == "." || name == "/" {
		return ""
	}
	if len(name) > maxFilenameBytes {
		cut := maxFilenameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}
