package ingestion

import (
	"strings"
	"time"

	"github.com/dennisdiepolder/cdrstats/internal/types"
)

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"2006/01/02",
	"Jan 2, 2006",
	"02-Jan-2006",
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
	"3:04:05PM",
	"3:04PM",
}

// Normalize turns a raw row into a CallEvent. rowNum is the 1-based data row
// number. Dates carry no zone in the export and are read in loc. Only an
// unknown direction is an error.
func Normalize(row Row, rowNum int, loc *time.Location) (types.CallEvent, error) {
	var dir types.Direction
	switch rawDir := row[ColCallDirection]; rawDir {
	case types.RawDirectionTerminating:
		dir = types.DirectionIncoming
	case types.RawDirectionOriginating:
		dir = types.DirectionOutgoing
	default:
		return types.CallEvent{}, &RowError{Row: rowNum, Value: rawDir, Err: ErrUnknownDirection}
	}

	// A zero Timestamp marks an unusable date/time
	ts, _ := parseTimestamp(row[ColCallDate], row[ColCallTime], loc)

	raw := make(map[string]string, len(row))
	for k, v := range row {
		raw[k] = v
	}

	special := row[ColSpecialType]
	return types.CallEvent{
		Row:            rowNum,
		Timestamp:      ts,
		Direction:      dir,
		InternalNumber: row[ColPhoneNumber],
		SpecialType:    types.ParseSpecialType(special),
		RawSpecialType: special,
		CalledNumber:   row[ColCalledNumber],
		CallingNumber:  row[ColCallingNumber],
		CallerName:     row[ColCallerName],
		CallCategory:   row[ColCallCategory],
		Raw:            raw,
	}, nil
}

func parseTimestamp(date, clock string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return time.Time{}, false
	}

	if clock == "" {
		for _, dl := range dateLayouts {
			if t, err := time.ParseInLocation(dl, date, loc); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}

	value := date + " " + clock
	for _, dl := range dateLayouts {
		for _, tl := range timeLayouts {
			if t, err := time.ParseInLocation(dl+" "+tl, value, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
