package ingest

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText converts raw uploaded bytes to UTF-8 text. The charset is
// detected statistically; unknown or low-confidence results fall back to
// UTF-8 when the bytes are valid, windows-1252 otherwise.
func decodeText(buf []byte) (string, error) {
	buf = bytes.TrimPrefix(buf, utf8BOM)

	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(buf)

	var enc encoding.Encoding
	if err == nil {
		enc = encodingFor(result.Charset)
	}
	if enc == nil {
		if utf8.Valid(buf) {
			return string(buf), nil
		}
		enc = charmap.Windows1252
	}

	decoded, err := enc.NewDecoder().Bytes(buf)
	if err != nil {
		return strings.ToValidUTF8(string(buf), "�"), nil
	}
	return string(decoded), nil
}

func encodingFor(charset string) encoding.Encoding {
	switch strings.ToUpper(charset) {
	case "UTF-8":
		return nil // already UTF-8
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case "GB18030", "GB2312", "GBK":
		return simplifiedchinese.GB18030
	case "BIG5":
		return traditionalchinese.Big5
	case "SHIFT_JIS":
		return japanese.ShiftJIS
	case "EUC-JP":
		return japanese.EUCJP
	case "EUC-KR":
		return korean.EUCKR
	case "ISO-8859-1":
		return charmap.ISO8859_1
	case "ISO-8859-2":
		return charmap.ISO8859_2
	case "ISO-8859-5":
		return charmap.ISO8859_5
	case "ISO-8859-9":
		return charmap.ISO8859_9
	case "KOI8-R":
		return charmap.KOI8R
	case "WINDOWS-1251":
		return charmap.Windows1251
	case "WINDOWS-1252":
		return charmap.Windows1252
	default:
		return nil
	}
}
