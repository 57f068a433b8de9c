package protocol

import (
	"fmt"
	"strconv"
)

// MaxRatio is the largest ratio (preset) id representable on the wire.
const MaxRatio = 999

// Ratio is a preset id. On the wire it is always three ASCII digits.
type Ratio uint16

// NewRatio validates id and returns it as a Ratio.
func NewRatio(id int) (Ratio, error) {
	if id < 0 || id > MaxRatio {
		return 0, fmt.Errorf("protocol: ratio id %d out of range [0, %d]", id, MaxRatio)
	}

	return Ratio(id), nil
}

// ParseRatio parses the three-digit wire form ("178", "000").
func ParseRatio(s string) (Ratio, error) {
	if len(s) != 3 {
		return 0, fmt.Errorf("protocol: ratio id %q must be three digits long", s)
	}

	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("protocol: ratio id %q must be numeric", s)
		}
	}

	id, _ := strconv.Atoi(s)

	return Ratio(id), nil
}

// String returns the three-digit wire form.
func (r Ratio) String() string {
	return fmt.Sprintf("%03d", uint16(r))
}
