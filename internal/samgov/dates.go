package samgov

import (
	"strconv"
	"strings"
	"time"
)

const (
	naiveLayout    = "2006-01-02T15:04:05"
	storageLayout  = "2006-01-02 15:04:05"
	defaultOffsetH = -4
	targetOffsetH  = -7
)

var targetZone = time.FixedZone("UTC-7", targetOffsetH*3600)

// NormalizeOffsetTimestamp converts "2022-04-08T16:00:00-04:00" into the
// storage layout at UTC-7. Input that does not parse is returned unchanged.
func NormalizeOffsetTimestamp(raw string) string {
	if len(raw) <= 6 {
		return raw
	}
	naive, err := time.Parse(naiveLayout, raw[:len(raw)-6])
	if err != nil {
		return raw
	}
	return shiftToTarget(naive, offsetHour(raw))
}

// NormalizeFractionalTimestamp converts "2022-07-22T21:50:57.483+00:00" into
// the storage layout at UTC-7. Input that does not parse is returned unchanged.
func NormalizeFractionalTimestamp(raw string) string {
	head, _, _ := strings.Cut(raw, ".")
	naive, err := time.Parse(naiveLayout, head)
	if err != nil {
		return raw
	}
	return shiftToTarget(naive, offsetHour(raw))
}

// offsetHour reads the hour part of a trailing "+HH:MM"/"-HH:MM" suffix.
// Minutes are ignored; anything unreadable yields the source default of -4.
func offsetHour(raw string) int {
	if len(raw) < 6 {
		return defaultOffsetH
	}
	hourPart, _, _ := strings.Cut(raw[len(raw)-6:], ":")
	h, err := strconv.Atoi(hourPart)
	if err != nil || h <= -24 || h >= 24 {
		return defaultOffsetH
	}
	return h
}

func shiftToTarget(naive time.Time, offsetHours int) string {
	zone := time.FixedZone("", offsetHours*3600)
	local := time.Date(
		naive.Year(), naive.Month(), naive.Day(),
		naive.Hour(), naive.Minute(), naive.Second(), 0, zone,
	)
	return local.In(targetZone).Format(storageLayout)
}
