package catalog

import "strings"

// DriveMode is a closed set of drive modes. Each carries the vendor code
// written to DriveModeFunction, a stable key and a display name.
type DriveMode struct {
	code    int
	key     string
	display string
}

var (
	ModeComfort  = DriveMode{code: 1, key: "comfort", display: "Comfort"}
	ModeEco      = DriveMode{code: 2, key: "eco", display: "Eco"}
	ModeSport    = DriveMode{code: 3, key: "sport", display: "Sport"}
	ModeAdaptive = DriveMode{code: 4, key: "adaptive", display: "Adaptive"}
	ModeUnknown  = DriveMode{code: -1, key: "unknown", display: "Unknown"}
)

// DriveModes lists the modes the hardware accepts.
var DriveModes = []DriveMode{ModeSport, ModeEco, ModeComfort, ModeAdaptive}

func (m DriveMode) Code() int           { return m.code }
func (m DriveMode) Key() string         { return m.key }
func (m DriveMode) DisplayName() string { return m.display }
func (m DriveMode) String() string      { return m.key }

// IsKnown reports whether m can be written to the hardware.
func (m DriveMode) IsKnown() bool { return m != ModeUnknown }

// ModeFromCode returns the mode for a vendor code, or ModeUnknown.
func ModeFromCode(code int) DriveMode {
	for _, m := range DriveModes {
		if m.code == code {
			return m
		}
	}
	return ModeUnknown
}

// ModeFromKey returns the mode for a key or display name, case-insensitive,
// or ModeUnknown.
func ModeFromKey(key string) DriveMode {
	key = strings.TrimSpace(key)
	for _, m := range DriveModes {
		if strings.EqualFold(m.key, key) || strings.EqualFold(m.display, key) {
			return m
		}
	}
	return ModeUnknown
}
