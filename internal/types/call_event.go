package types

import "time"

// Direction is the leg direction as logged by the PBX
type Direction string

const (
	DirectionIncoming Direction = "incoming" // "Terminating" in the export
	DirectionOutgoing Direction = "outgoing" // "Originating" in the export
)

// Raw "Call Direction" values found in BroadWorks exports
const (
	RawDirectionTerminating = "Terminating"
	RawDirectionOriginating = "Originating"
)

// SpecialType is the closed set of "Special Call Type" tags the classifier knows.
// Anything else is kept as SpecialTypeUnrecognized with the raw string on the event.
type SpecialType string

const (
	SpecialTypeNone             SpecialType = ""
	SpecialTypeForwardNoAnswer  SpecialType = "Call Forward No Answer"
	SpecialTypeForwardBusy      SpecialType = "Call Forward Busy"
	SpecialTypeForwardAlways    SpecialType = "Call Forward Always"
	SpecialTypeForwardSelective SpecialType = "Call Forward Selective"
	SpecialTypeAnywhereLocation SpecialType = "BroadWorks Anywhere Location"
	SpecialTypeUnrecognized     SpecialType = "unrecognized"
)

var knownSpecialTypes = map[string]SpecialType{
	string(SpecialTypeForwardNoAnswer):  SpecialTypeForwardNoAnswer,
	string(SpecialTypeForwardBusy):      SpecialTypeForwardBusy,
	string(SpecialTypeForwardAlways):    SpecialTypeForwardAlways,
	string(SpecialTypeForwardSelective): SpecialTypeForwardSelective,
	string(SpecialTypeAnywhereLocation): SpecialTypeAnywhereLocation,
}

// ParseSpecialType maps a raw tag onto the closed set
func ParseSpecialType(raw string) SpecialType {
	if raw == "" {
		return SpecialTypeNone
	}
	if st, ok := knownSpecialTypes[raw]; ok {
		return st
	}
	return SpecialTypeUnrecognized
}

// CallEvent is one normalized CDR row. It is built once and never mutated.
type CallEvent struct {
	Row            int               `json:"row"` // 1-based data row number in the export
	Timestamp      time.Time         `json:"timestamp"`
	Direction      Direction         `json:"direction"`
	InternalNumber string            `json:"internalNumber"`
	SpecialType    SpecialType       `json:"specialType,omitempty"`
	RawSpecialType string            `json:"rawSpecialType,omitempty"`
	CalledNumber   string            `json:"calledNumber,omitempty"`
	CallingNumber  string            `json:"callingNumber,omitempty"`
	CallerName     string            `json:"callerName,omitempty"`
	CallCategory   string            `json:"callCategory,omitempty"`
	Raw            map[string]string `json:"raw,omitempty"`
}

// HasTime reports whether the row carried a usable date/time
func (e CallEvent) HasTime() bool {
	return !e.Timestamp.IsZero()
}

// DateKey returns the civil date of the event in its own offset (YYYY-MM-DD)
func (e CallEvent) DateKey() string {
	return e.Timestamp.Format(DateLayout)
}

// DateLayout is the layout used for every date key
const DateLayout = "2006-01-02"

// EventCategory is the semantic category assigned by the classifier
type EventCategory string

const (
	CategorySentToVoicemail    EventCategory = "sent_to_voicemail"
	CategorySentToAttendant    EventCategory = "sent_to_attendant"
	CategoryForwarded          EventCategory = "forwarded"
	CategoryAttemptedCellRing  EventCategory = "attempted_cell_ring"
	CategoryVoicePortalAccess  EventCategory = "voice_portal_access"
	CategoryPlainOutgoing      EventCategory = "plain_outgoing"
	CategoryPlainIncoming      EventCategory = "plain_incoming"
	CategoryUnhandledRedirect  EventCategory = "unhandled_redirect"
	CategoryUnknownSpecialType EventCategory = "unknown_special_type"
)

// AllCategories lists every category in report order
var AllCategories = []EventCategory{
	CategorySentToVoicemail,
	CategorySentToAttendant,
	CategoryForwarded,
	CategoryAttemptedCellRing,
	CategoryVoicePortalAccess,
	CategoryPlainOutgoing,
	CategoryPlainIncoming,
	CategoryUnhandledRedirect,
	CategoryUnknownSpecialType,
}

// IsPlain reports whether the category feeds the window counters
func (c EventCategory) IsPlain() bool {
	return c == CategoryPlainIncoming || c == CategoryPlainOutgoing
}

// IsRedirect reports whether the category has its own named bucket
func (c EventCategory) IsRedirect() bool {
	switch c {
	case CategorySentToVoicemail, CategorySentToAttendant, CategoryForwarded,
		CategoryAttemptedCellRing, CategoryVoicePortalAccess:
		return true
	}
	return false
}
