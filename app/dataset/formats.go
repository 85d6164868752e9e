package dataset

import (
	"strings"
)

// ExtensionMap maps portal format labels to the file extension used for the stored payload.
var ExtensionMap = map[string]string{
	"CSV":  "csv",
	"XLSX": "xlsx",
	"XLS":  "xls",
	"DOCX": "docx",
	"HWP":  "hwp",
	"HWPX": "hwpx",
	"JSON": "json",
	"XML":  "xml",
	"JPG":  "jpg",
	"PNG":  "png",
	"GIF":  "gif",
	"ZIP":  "zip",
	"PDF":  "pdf",
	"SHP":  "zip", // shapefiles are distributed zipped
}

// SplitFormats turns a detail page extension cell such as "CSV, XLSX" into upper-case labels.
func SplitFormats(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '/' || r == ' ' || r == '+'
	})
	formats := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(field), "."))
		if field != "" {
			formats = append(formats, field)
		}
	}
	return formats
}

// ExtensionFor returns the payload extension implied by the first known format label.
func ExtensionFor(formats []string) (string, bool) {
	for _, format := range formats {
		if ext, ok := ExtensionMap[strings.ToUpper(format)]; ok {
			return ext, true
		}
	}
	return "", false
}
