package storage

import (
	"bytes"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// confidentDetection is the chardet confidence above which a non-Korean charset is trusted
// and the payload is left untouched.
const confidentDetection = 90

// NormalizeCSV converts CSV content to UTF-8. Korean legacy encodings (EUC-KR, CP949) and
// UTF-16 with a byte order mark are decoded. It returns the input unchanged with an empty
// source name when the data already is UTF-8, when the detector is confident it holds
// some other charset, or when it cannot be decoded cleanly.
func NormalizeCSV(data []byte) ([]byte, string) {
	if utf8.Valid(bytes.TrimPrefix(data, utf8BOM)) {
		return data, ""
	}

	// x/text's EUC-KR decoder covers the CP949 extension.
	var enc encoding.Encoding = korean.EUCKR
	source := "EUC-KR"

	results, err := chardet.NewTextDetector().DetectAll(data)
	if err == nil && len(results) > 0 {
		best := results[0]
		slog.Debug("CSV charset detected", "charset", best.Charset, "confidence", best.Confidence)

		switch {
		case best.Charset == "UTF-16LE":
			enc, source = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), best.Charset
		case best.Charset == "UTF-16BE":
			enc, source = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), best.Charset
		case hasKorean(results):
		case best.Confidence >= confidentDetection:
			slog.Warn("CSV is not in a Korean encoding, keeping original bytes", "charset", best.Charset, "confidence", best.Confidence)
			return data, ""
		default:
			// Short samples rarely score well; the portal only serves Korean legacy
			// encodings, so EUC-KR is still tried.
			source = "EUC-KR (detected " + best.Charset + ")"
		}
	}

	converted, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil || bytes.ContainsRune(converted, utf8.RuneError) {
		slog.Warn("CSV encoding conversion failed, keeping original bytes", "from", source, "error", err)
		return data, ""
	}

	return converted, source
}

func hasKorean(results []chardet.Result) bool {
	for _, r := range results {
		if isKoreanCharset(r.Charset) {
			return true
		}
	}
	return false
}

func isKoreanCharset(charset string) bool {
	switch strings.ToUpper(charset) {
	case "EUC-KR", "CP949", "UHC", "ISO-2022-KR":
		return true
	}
	return false
}
