package housekeeping

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/justapithecus/anxeod/iox"
)

// DefaultEncoding is used when no input encoding is configured.
const DefaultEncoding = "utf-8"

// LookupEncoding maps a configured encoding name to a decoder.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		// strips a leading BOM if the scanner software wrote one
		return unicode.UTF8BOM, nil
	case "latin-1", "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "windows-1251", "cp1251":
		return charmap.Windows1251, nil
	}
	return nil, fmt.Errorf("unsupported input encoding %q", name)
}

// ReadBarcodes loads one barcode per line from path. Lines are trimmed and
// blank lines dropped; order and duplicates are preserved.
func ReadBarcodes(path, enc string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer iox.DiscardClose(f)

	barcodes, err := DecodeBarcodes(f, enc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return barcodes, nil
}

// DecodeBarcodes is ReadBarcodes over an arbitrary reader.
func DecodeBarcodes(r io.Reader, enc string) ([]string, error) {
	e, err := LookupEncoding(enc)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(transform.NewReader(r, e.NewDecoder()))
	var out []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
