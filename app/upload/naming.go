package upload

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/lysyi3m/opendata-harvest/app/dataset"
)

const maxTitleLength = 50

// Filename decides the name the file server receives. ext includes the leading dot.
//
// Order: the custom name, then the dataset's file data name, then <id>_<title>, then <id>.
func Filename(custom string, metadata *dataset.Metadata, id dataset.ID, ext string) string {
	if custom != "" {
		return custom + ext
	}

	if metadata != nil && metadata.FileDataName != "" {
		name := sanitize(metadata.FileDataName, true)
		if name != "" {
			if filepath.Ext(name) != "" {
				return name
			}
			return name + ext
		}
	}

	if metadata != nil && metadata.Title != "" {
		title := sanitize(metadata.Title, false)
		if runes := []rune(title); len(runes) > maxTitleLength {
			title = string(runes[:maxTitleLength])
		}
		if title != "" {
			return id.String() + "_" + title + ext
		}
	}

	return id.String() + ext
}

// sanitize keeps letters, digits, spaces, '_' and '-' (and '.' when allowDot), then turns
// spaces into underscores.
func sanitize(s string, allowDot bool) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		case r == '.' && allowDot:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}
