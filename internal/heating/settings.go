package heating

import (
	"strings"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/errors"
)

const (
	MaxLevel             = 3
	DefaultThreshold     = 10.0
	DefaultLevel         = 2
	DefaultSilenceWindow = 5 * time.Minute
)

// Mode selects the seats under automatic control.
type Mode string

const (
	ModeOff       Mode = "off"
	ModeDriver    Mode = "driver"
	ModePassenger Mode = "passenger"
	ModeBoth      Mode = "both"
)

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeOff, ModeDriver, ModePassenger, ModeBoth:
		return m, nil
	default:
		return "", errors.New().WithData(ErrInvalidMode, s)
	}
}

// Seats returns the seats the mode controls.
func (m Mode) Seats() []Seat {
	switch m {
	case ModeDriver:
		return []Seat{SeatDriver}
	case ModePassenger:
		return []Seat{SeatPassenger}
	case ModeBoth:
		return []Seat{SeatDriver, SeatPassenger}
	default:
		return nil
	}
}

// Source is the temperature reading adaptive heating follows.
type Source string

const (
	SourceCabin   Source = "cabin"
	SourceAmbient Source = "ambient"
)

func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	switch src {
	case SourceCabin, SourceAmbient:
		return src, nil
	default:
		return "", errors.New().WithData(ErrInvalidSource, s)
	}
}

// Seat is a heated seat.
type Seat int

const (
	SeatDriver Seat = iota
	SeatPassenger
)

var allSeats = []Seat{SeatDriver, SeatPassenger}

func (s Seat) Area() catalog.AreaID {
	if s == SeatPassenger {
		return catalog.AreaPassenger
	}
	return catalog.AreaDriver
}

func (s Seat) String() string {
	if s == SeatPassenger {
		return "passenger"
	}
	return "driver"
}

// Levels holds one heating level per seat, indexed by Seat.
type Levels [2]int

// AnyOn reports whether any seat is heating.
func (l Levels) AnyOn() bool {
	return l[SeatDriver] > 0 || l[SeatPassenger] > 0
}

// Settings are the user preferences the controller follows.
type Settings struct {
	Mode     Mode `json:"mode"`
	Adaptive bool `json:"adaptive"`
	// Level is used when Adaptive is false.
	Level int `json:"level"`
	// Threshold in °C below which adaptive heating turns on.
	Threshold      float64       `json:"threshold"`
	AutoOffMinutes int           `json:"auto_off_minutes"`
	Source         Source        `json:"source"`
	SilenceWindow  time.Duration `json:"silence_window"`
}

func DefaultSettings() Settings {
	return Settings{
		Mode:          ModeOff,
		Adaptive:      true,
		Level:         DefaultLevel,
		Threshold:     DefaultThreshold,
		Source:        SourceCabin,
		SilenceWindow: DefaultSilenceWindow,
	}
}

func (s Settings) Validate() error {
	errFactory := errors.New()

	if _, err := ParseMode(string(s.Mode)); err != nil {
		return errFactory.Wrap(ErrInvalidSettings, err)
	}
	if _, err := ParseSource(string(s.Source)); err != nil {
		return errFactory.Wrap(ErrInvalidSettings, err)
	}
	if s.Level < 0 || s.Level > MaxLevel {
		return errFactory.Wrap(ErrInvalidSettings, errFactory.WithData(ErrInvalidLevel, s.Level))
	}
	if s.AutoOffMinutes < 0 || s.SilenceWindow < 0 {
		return errFactory.Wrap(ErrInvalidSettings, errFactory.WithData(ErrInvalidDuration, struct {
			AutoOffMinutes int
			SilenceWindow  string
		}{
			AutoOffMinutes: s.AutoOffMinutes,
			SilenceWindow:  s.SilenceWindow.String(),
		}))
	}

	return nil
}

// AutoOff returns the auto-off timer, zero when disabled.
func (s Settings) AutoOff() time.Duration {
	return time.Duration(s.AutoOffMinutes) * time.Minute
}

// AdaptiveLevel maps how far temp is below threshold to a level: 1 when
// below, 2 from 5 °C below, 3 from 10 °C below. At or above the threshold
// the level is 0.
func AdaptiveLevel(temp, threshold float64) int {
	below := threshold - temp
	switch {
	case below <= 0:
		return 0
	case below >= 10:
		return 3
	case below >= 5:
		return 2
	default:
		return 1
	}
}
