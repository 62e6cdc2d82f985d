package lexer

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultEncoding is the source encoding used when none is configured.
const DefaultEncoding = "utf-8"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decoder converts raw source lines to UTF-8.
// A nil enc means the source is already UTF-8 and is validated instead.
type decoder struct {
	name string
	enc  encoding.Encoding
}

func isUTF8(name string) bool {
	n := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(name))

	return n == "" || n == "utf8"
}

// lookupEncoding resolves an encoding by IANA or WHATWG name.
func lookupEncoding(name string) (decoder, error) {
	if isUTF8(name) {
		return decoder{name: name}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		enc, err = htmlindex.Get(name)
	}

	if err != nil || enc == nil {
		return decoder{}, ErrUnknownEncoding.
			With(slog.String("encoding", name)).
			Wrap(fmt.Errorf("%q", name))
	}

	return decoder{name: name, enc: enc}, nil
}

// LookupEncoding returns the encoding registered under name, or a nil
// Encoding for UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	d, err := lookupEncoding(name)

	return d.enc, err
}

// ValidEncoding reports whether name is a supported source encoding.
func ValidEncoding(name string) bool {
	_, err := lookupEncoding(name)

	return err == nil
}

// decode converts one raw line. first strips a leading byte order mark.
func (d decoder) decode(b []byte, first bool, pos Position) (string, error) {
	if d.enc == nil {
		if first {
			b = bytes.TrimPrefix(b, utf8BOM)
		}

		if !utf8.Valid(b) {
			return "", errorAt(ErrEncoding, pos, "input is not valid UTF-8")
		}

		return string(b), nil
	}

	out, err := d.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", errorAt(ErrEncoding, pos, "decode %s: %v", d.name, err)
	}

	return string(out), nil
}
