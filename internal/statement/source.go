package statement

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxLineSize bounds a single statement line.
const maxLineSize = 1 << 20

// LookupEncoding resolves a name such as "utf-8", "latin1" or
// "windows-1252" to an encoding. An empty name means UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	if strings.TrimSpace(name) == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

// newLineScanner decodes r from enc to UTF-8 and splits it into lines.
// A leading byte order mark selects its own Unicode encoding and is dropped.
func newLineScanner(r io.Reader, enc encoding.Encoding) *bufio.Scanner {
	if enc == nil {
		enc = unicode.UTF8
	}
	decoded := transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))
	sc := bufio.NewScanner(decoded)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}
