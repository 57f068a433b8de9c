package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is a decoded status reply.
type Status struct {
	Code     StatusCode
	Ratio    Ratio
	HasRatio bool
}

// State maps the status onto the motion state machine.
func (s Status) State() MotionState { return s.Code.State() }

func (s Status) String() string {
	if s.HasRatio {
		return s.Code.String() + "(" + s.Ratio.String() + ")"
	}

	return s.Code.String()
}

// ParseStatus decodes a status reply such as "[01P178]" or "[01H]".
func ParseStatus(f Frame) (Status, error) {
	p := string(f.Payload())
	if f.IsZero() || (len(p) != 1 && len(p) != 4) {
		return Status{}, unexpected("status", f, "bad length")
	}

	st := Status{Code: StatusCode(p[0])}
	if !st.Code.Valid() {
		return Status{}, unexpected("status", f, "unknown status code")
	}

	if len(p) == 4 {
		r, err := ParseRatio(p[1:])
		if err != nil {
			return Status{}, unexpected("status", f, err.Error())
		}
		st.Ratio, st.HasRatio = r, true
	}

	return st, nil
}

// MotorPosition is one motor's position in percent of its range.
type MotorPosition struct {
	Motor   MotorID
	Percent float64
}

const pctWidth = 4

// ParsePositions decodes "[01<n>(<motor><pct>){n}]" with n in 1..4.
func ParsePositions(f Frame) ([]MotorPosition, error) {
	p := string(f.Payload())
	if len(p) < 1 || p[0] < '1' || p[0] > '4' {
		return nil, unexpected("positions", f, "bad motor count")
	}

	n := int(p[0] - '0')
	entries := p[1:]
	if len(entries) != n*(1+pctWidth) {
		return nil, unexpected("positions", f, fmt.Sprintf("expected %d motor entries", n))
	}

	out := make([]MotorPosition, 0, n)
	for i := range n {
		entry := entries[i*(1+pctWidth) : (i+1)*(1+pctWidth)]

		motor := MotorID(entry[0])
		if !motor.Valid() {
			return nil, unexpected("positions", f, "unknown motor id")
		}

		pct, err := parsePercent(entry[1:])
		if err != nil {
			return nil, unexpected("positions", f, err.Error())
		}

		out = append(out, MotorPosition{Motor: motor, Percent: pct})
	}

	return out, nil
}

// Serial is a screen serial number "XX-MMYY-PPPPP".
type Serial struct {
	ModelCode        string
	Month            int
	Year             int
	ProductionNumber string
}

const serialLen = 13

// ParseSerial parses the "XX-MMYY-PPPPP" form. The production number keeps
// any padding.
func ParseSerial(s string) (Serial, error) {
	if len(s) != serialLen || s[2] != '-' || s[7] != '-' || !isDigits(s[3:7]) {
		return Serial{}, fmt.Errorf("protocol: malformed serial number %q", s)
	}

	month, _ := strconv.Atoi(s[3:5])
	year, _ := strconv.Atoi(s[5:7])

	return Serial{
		ModelCode:        s[:2],
		Month:            month,
		Year:             year,
		ProductionNumber: s[8:],
	}, nil
}

func (s Serial) String() string {
	return fmt.Sprintf("%s-%02d%02d-%s", s.ModelCode, s.Month, s.Year, s.ProductionNumber)
}

// SystemInfo describes the screen.
type SystemInfo struct {
	Model        string
	WidthInches  float64
	HeightInches float64
	Serial       Serial
	MaskIDs      []MotorID
}

const (
	sysModelLen = 20
	sysSizeLen  = 6
	sysFixedLen = sysModelLen + 2*sysSizeLen + serialLen
	maxMaskIDs  = 5
)

// ParseSystemInfo decodes the fixed-width system info reply: model (20),
// width (6), height (6), serial (13), then one to five mask ids from LRTB.
func ParseSystemInfo(f Frame) (SystemInfo, error) {
	p := string(f.Payload())
	if len(p) <= sysFixedLen || len(p) > sysFixedLen+maxMaskIDs {
		return SystemInfo{}, unexpected("system info", f, "bad length")
	}

	width, err := parseSize(p[sysModelLen : sysModelLen+sysSizeLen])
	if err != nil {
		return SystemInfo{}, unexpected("system info", f, err.Error())
	}

	height, err := parseSize(p[sysModelLen+sysSizeLen : sysModelLen+2*sysSizeLen])
	if err != nil {
		return SystemInfo{}, unexpected("system info", f, err.Error())
	}

	serial, err := ParseSerial(p[sysModelLen+2*sysSizeLen : sysFixedLen])
	if err != nil {
		return SystemInfo{}, unexpected("system info", f, err.Error())
	}

	masks := make([]MotorID, 0, len(p)-sysFixedLen)
	for i := sysFixedLen; i < len(p); i++ {
		switch m := MotorID(p[i]); m {
		case MotorLeft, MotorRight, MotorTop, MotorBottom:
			masks = append(masks, m)
		default:
			return SystemInfo{}, unexpected("system info", f, "unknown mask id")
		}
	}

	return SystemInfo{
		Model:        strings.TrimSpace(p[:sysModelLen]),
		WidthInches:  width,
		HeightInches: height,
		Serial:       serial,
		MaskIDs:      masks,
	}, nil
}

// RatioSetting is one stored preset.
type RatioSetting struct {
	Ratio            Ratio
	Label            string
	WidthInches      float64
	HeightInches     float64
	MotorPositions   []float64
	MotorAdjustments []float64
}

const settingLabelLen = 8

// SettingEntryLen returns the width of one settings entry for the given motor count.
func SettingEntryLen(motors int) int {
	return 3 + settingLabelLen + 2*sysSizeLen + 2*motors*pctWidth
}

// ParseSettings decodes the ratio settings table:
// "<motors:1><count:2>" followed by count fixed-width entries.
func ParseSettings(f Frame) ([]RatioSetting, error) {
	p := string(f.Payload())
	if len(p) < 4 || !isDigits(p[:3]) {
		return nil, unexpected("settings", f, "bad header")
	}

	motors := int(p[0] - '0')
	count, _ := strconv.Atoi(p[1:3])
	entryLen := SettingEntryLen(motors)
	entries := p[3:]

	if len(entries) != count*entryLen {
		return nil, unexpected("settings", f,
			fmt.Sprintf("expected %d ratio entries of length %d, got %d bytes", count, entryLen, len(entries)))
	}

	out := make([]RatioSetting, 0, count)
	for i := range count {
		s, err := parseSettingEntry(entries[i*entryLen:(i+1)*entryLen], motors)
		if err != nil {
			return nil, unexpected("settings", f, fmt.Sprintf("entry %d: %v", i, err))
		}
		out = append(out, s)
	}

	return out, nil
}

func parseSettingEntry(entry string, motors int) (RatioSetting, error) {
	r, err := ParseRatio(entry[:3])
	if err != nil {
		return RatioSetting{}, err
	}

	off := 3 + settingLabelLen
	width, err := parseSize(entry[off : off+sysSizeLen])
	if err != nil {
		return RatioSetting{}, err
	}
	off += sysSizeLen

	height, err := parseSize(entry[off : off+sysSizeLen])
	if err != nil {
		return RatioSetting{}, err
	}
	off += sysSizeLen

	readPcts := func() ([]float64, error) {
		vals := make([]float64, motors)
		for i := range motors {
			v, err := parsePercent(entry[off : off+pctWidth])
			if err != nil {
				return nil, err
			}
			vals[i] = v
			off += pctWidth
		}

		return vals, nil
	}

	positions, err := readPcts()
	if err != nil {
		return RatioSetting{}, err
	}

	adjustments, err := readPcts()
	if err != nil {
		return RatioSetting{}, err
	}

	return RatioSetting{
		Ratio:            r,
		Label:            strings.TrimSpace(entry[3 : 3+settingLabelLen]),
		WidthInches:      width,
		HeightInches:     height,
		MotorPositions:   positions,
		MotorAdjustments: adjustments,
	}, nil
}

// parseSize accepts digits and dots only.
func parseSize(s string) (float64, error) {
	for i := range len(s) {
		if (s[i] < '0' || s[i] > '9') && s[i] != '.' {
			return 0, fmt.Errorf("invalid size %q", s)
		}
	}

	return strconv.ParseFloat(s, 64)
}

// parsePercent accepts digits, dots and a minus sign, e.g. "-10." or "50.0".
func parsePercent(s string) (float64, error) {
	for i := range len(s) {
		if (s[i] < '0' || s[i] > '9') && s[i] != '.' && s[i] != '-' {
			return 0, fmt.Errorf("invalid percentage %q", s)
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percentage %q", s)
	}

	return v, nil
}

func isDigits(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return s != ""
}

func unexpected(what string, f Frame, reason string) error {
	return fmt.Errorf("%w: malformed %s reply %q: %s", ErrUnexpectedResponse, what, f.Bytes(), reason)
}
