// Package classifier decides what a CDR row really was.
//
// The PBX logs one redirected inbound call as several rows: the inbound leg
// plus a synthetic outbound leg for every hop of the redirect. Those synthetic
// legs are diverted into named buckets and flagged as skip so they never show
// up as real outbound calls.
package classifier

import (
	"github.com/dennisdiepolder/cdrstats/internal/alerts"
	"github.com/dennisdiepolder/cdrstats/internal/types"
)

// Defaults observed on the BroadWorks exports this tool was written against
const (
	DefaultAttendantNumber = "500"
	DefaultVoicePortalName = "Voice Portal Voice Portal"
	privateCallCategory    = "private"
)

// Rules holds the site-specific values the decision procedure depends on
type Rules struct {
	AttendantNumber string // called number of the auto attendant
	VoicePortalName string // caller name the voice portal legs carry
}

// DefaultRules returns the stock rule set
func DefaultRules() Rules {
	return Rules{
		AttendantNumber: DefaultAttendantNumber,
		VoicePortalName: DefaultVoicePortalName,
	}
}

// Result is the outcome of classifying one event
type Result struct {
	Category types.EventCategory
	Skip     bool        // excluded from the plain window counters
	Anomaly  alerts.Kind // empty when the row fits a known shape
}

// Classifier is a stateless decision procedure over a rule set
type Classifier struct {
	rules Rules
}

// New creates a classifier. Zero fields in rules fall back to the defaults.
func New(rules Rules) Classifier {
	if rules.AttendantNumber == "" {
		rules.AttendantNumber = DefaultAttendantNumber
	}
	if rules.VoicePortalName == "" {
		rules.VoicePortalName = DefaultVoicePortalName
	}
	return Classifier{rules: rules}
}

// Classify assigns a category to ev. internalNumber is the extension the row
// belongs to and is compared against the calling number of voice portal legs.
func (c Classifier) Classify(ev types.CallEvent, internalNumber string) Result {
	if ev.Direction == types.DirectionIncoming {
		return plain(types.CategoryPlainIncoming)
	}

	switch ev.SpecialType {
	case types.SpecialTypeForwardNoAnswer, types.SpecialTypeForwardBusy:
		return skip(types.CategorySentToVoicemail)

	case types.SpecialTypeForwardAlways:
		return skip(types.CategoryForwarded)

	case types.SpecialTypeForwardSelective:
		if ev.CalledNumber == c.rules.AttendantNumber {
			return skip(types.CategorySentToAttendant)
		}
		return warn(types.CategoryUnhandledRedirect, alerts.KindUnhandledRedirect)

	case types.SpecialTypeAnywhereLocation:
		return skip(types.CategoryAttemptedCellRing)

	case types.SpecialTypeNone:
		return c.classifyUntagged(ev, internalNumber)

	default:
		return warn(types.CategoryUnknownSpecialType, alerts.KindUnknownSpecialType)
	}
}

// classifyUntagged handles outgoing rows without a special call type
func (c Classifier) classifyUntagged(ev types.CallEvent, internalNumber string) Result {
	switch {
	case ev.CallerName == c.rules.VoicePortalName:
		// Owner dialing into their own mailbox vs. a caller dropped into it
		if ev.CallingNumber == internalNumber {
			return skip(types.CategoryVoicePortalAccess)
		}
		return skip(types.CategorySentToVoicemail)

	case ev.CallCategory == privateCallCategory:
		// inter-office
		return plain(types.CategoryPlainOutgoing)

	case ev.CallerName == "":
		// external
		return plain(types.CategoryPlainOutgoing)
	}
	return warn(types.CategoryUnknownSpecialType, alerts.KindUnrecognizedEmptyType)
}

func plain(category types.EventCategory) Result {
	return Result{Category: category}
}

func skip(category types.EventCategory) Result {
	return Result{Category: category, Skip: true}
}

func warn(category types.EventCategory, kind alerts.Kind) Result {
	return Result{Category: category, Skip: true, Anomaly: kind}
}
