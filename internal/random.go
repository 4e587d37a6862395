package internal

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	tabIDPrefix     = "tab_"
	tabIDSuffixSize = 9
)

// NewTabID returns "tab_<unix-ms>_<suffix>". The millisecond stamp orders tabs by
// creation; the random suffix keeps tabs opened within the same millisecond apart.
func NewTabID(now time.Time) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	suffix := strings.ReplaceAll(id.String(), "-", "")[:tabIDSuffixSize]

	var b strings.Builder
	b.Grow(len(tabIDPrefix) + 14 + 1 + tabIDSuffixSize)
	b.WriteString(tabIDPrefix)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')
	b.WriteString(suffix)
	return b.String(), nil
}

// TabIDTime extracts the creation time embedded in a tab identifier.
func TabIDTime(tabID string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(tabID, tabIDPrefix)
	if !ok {
		return time.Time{}, false
	}
	stamp, _, ok := strings.Cut(rest, "_")
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
