package launcher

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// LookupEncoding resolves an IANA charset name such as "ISO-8859-1" or
// "windows-1252". Empty, "default" and UTF-8 return nil, meaning bytes are
// passed through as the host's native UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q is not supported", name)
	}
	return enc, nil
}
