package discovery

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const beaconPrefix = "AMXB"

var ErrNotBeacon = errors.New("discovery: not a Global Caché beacon")

// ParseBeacon parses an AMXB beacon such as
//
//	AMXB<-UUID=GlobalCache_000C1E060E8E><-Model=iTachIP2SL><-Status=Ready>
//
// into its key/value fields. A field without '=' maps to "".
func ParseBeacon(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, beaconPrefix) {
		return nil, ErrNotBeacon
	}

	fields := make(map[string]string)
	parts := strings.Split(raw, "<-")
	for _, part := range parts[1:] {
		part = strings.TrimRight(part, "> \r\n\t")
		if part == "" {
			continue
		}

		key, value, _ := strings.Cut(part, "=")
		fields[key] = value
	}

	if len(fields) == 0 {
		return nil, errors.New("discovery: empty beacon")
	}

	return fields, nil
}

// sanitize keeps printable ASCII and replaces everything else.
func sanitize(payload []byte) string {
	var b strings.Builder
	b.Grow(len(payload))

	for _, c := range payload {
		switch {
		case c >= 0x20 && c < 0x7F, c == '\r', c == '\n', c == '\t':
			b.WriteByte(c)
		default:
			b.WriteRune(utf8.RuneError)
		}
	}

	return strings.TrimSpace(b.String())
}
