package importer

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrUnknownEncoding aborts the whole import: without readable text there is
// nothing to report row-by-row.
var ErrUnknownEncoding = errors.New("could not detect file encoding")

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeText turns spreadsheet bytes of unknown encoding into UTF-8 text.
// Detection order: BOM (UTF-8/UTF-16), then valid UTF-8 as-is, then a
// Windows-1252 fallback, which covers the legacy exports these sheets usually
// come from. Bytes that fit none of those fail the run.
func DecodeText(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		data = data[len(bomUTF8):]
		if !utf8.Valid(data) {
			return "", ErrUnknownEncoding
		}
		return string(data), nil
	case bytes.HasPrefix(data, bomUTF16LE):
		return decodeUTF16(data, unicode.LittleEndian)
	case bytes.HasPrefix(data, bomUTF16BE):
		return decodeUTF16(data, unicode.BigEndian)
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	// Windows-1252 maps every byte except a handful of control slots; a NUL
	// or one of those slots means this is not single-byte text at all.
	for _, b := range data {
		switch b {
		case 0x00, 0x81, 0x8D, 0x8F, 0x90, 0x9D:
			return "", ErrUnknownEncoding
		}
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", ErrUnknownEncoding
	}
	return string(decoded), nil
}

func decodeUTF16(data []byte, endianness unicode.Endianness) (string, error) {
	dec := unicode.UTF16(endianness, unicode.UseBOM).NewDecoder()
	decoded, err := dec.Bytes(data)
	if err != nil {
		return "", ErrUnknownEncoding
	}
	return string(decoded), nil
}
