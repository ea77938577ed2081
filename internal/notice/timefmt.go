package notice

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBadTime is returned when a feed timestamp can't be parsed.
var ErrBadTime = errors.New("notice: malformed timestamp")

// DisplayZone is the fixed zone used for rendered times (UTC+8).
var DisplayZone = time.FixedZone("UTC+8", 8*60*60)

const (
	displayLayout = "2006-01-02 15:04:05"
	naiveLayout   = "2006-01-02T15:04:05.000000"
	fracDigits    = 6
)

// NormalizeTime converts a feed timestamp into "YYYY-MM-DD HH:MM:SS" in UTC+8.
//
// Fractional seconds are cut or padded to microseconds and any offset suffix
// (Z, +hh:mm, -hh:mm) is dropped; the remaining wall time is read as UTC.
func NormalizeTime(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if len(s) < len("2006-01-02T15:04:05") {
		return "", fmt.Errorf("%w: %q", ErrBadTime, raw)
	}
	date, clock := s[:10], s[11:]
	if sep := s[10]; sep != 'T' && sep != 't' && sep != ' ' {
		return "", fmt.Errorf("%w: %q", ErrBadTime, raw)
	}

	if i := strings.IndexAny(clock, "Zz+-"); i >= 0 {
		clock = clock[:i]
	}

	whole, frac, _ := strings.Cut(clock, ".")
	if len(frac) > fracDigits {
		frac = frac[:fracDigits]
	}
	frac += strings.Repeat("0", fracDigits-len(frac))

	t, err := time.ParseInLocation(naiveLayout, date+"T"+whole+"."+frac, time.UTC)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrBadTime, raw, err)
	}
	return t.In(DisplayZone).Format(displayLayout), nil
}
