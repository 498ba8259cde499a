package classifier

import (
	"testing"
	"time"

	"github.com/dennisdiepolder/cdrstats/internal/alerts"
	"github.com/dennisdiepolder/cdrstats/internal/types"
)

const ext = "6175550100"

func outgoing(special string) types.CallEvent {
	return types.CallEvent{
		Timestamp:      time.Date(2020, 2, 10, 9, 0, 0, 0, time.UTC),
		Direction:      types.DirectionOutgoing,
		InternalNumber: ext,
		SpecialType:    types.ParseSpecialType(special),
		RawSpecialType: special,
	}
}

func TestClassify(t *testing.T) {
	c := New(DefaultRules())

	tests := []struct {
		name     string
		event    func() types.CallEvent
		category types.EventCategory
		skip     bool
		anomaly  alerts.Kind
	}{
		{
			name: "incoming is always plain",
			event: func() types.CallEvent {
				ev := outgoing("Call Forward Always")
				ev.Direction = types.DirectionIncoming
				return ev
			},
			category: types.CategoryPlainIncoming,
		},
		{
			name:     "forward no answer goes to voicemail",
			event:    func() types.CallEvent { return outgoing("Call Forward No Answer") },
			category: types.CategorySentToVoicemail,
			skip:     true,
		},
		{
			name:     "forward busy goes to voicemail",
			event:    func() types.CallEvent { return outgoing("Call Forward Busy") },
			category: types.CategorySentToVoicemail,
			skip:     true,
		},
		{
			name:     "forward always",
			event:    func() types.CallEvent { return outgoing("Call Forward Always") },
			category: types.CategoryForwarded,
			skip:     true,
		},
		{
			name: "selective forward to attendant",
			event: func() types.CallEvent {
				ev := outgoing("Call Forward Selective")
				ev.CalledNumber = "500"
				return ev
			},
			category: types.CategorySentToAttendant,
			skip:     true,
		},
		{
			name: "selective forward elsewhere is unhandled",
			event: func() types.CallEvent {
				ev := outgoing("Call Forward Selective")
				ev.CalledNumber = "6175550199"
				return ev
			},
			category: types.CategoryUnhandledRedirect,
			skip:     true,
			anomaly:  alerts.KindUnhandledRedirect,
		},
		{
			name:     "anywhere location rings the cell",
			event:    func() types.CallEvent { return outgoing("BroadWorks Anywhere Location") },
			category: types.CategoryAttemptedCellRing,
			skip:     true,
		},
		{
			name: "owner dialing the voice portal",
			event: func() types.CallEvent {
				ev := outgoing("")
				ev.CallerName = "Voice Portal Voice Portal"
				ev.CallingNumber = ext
				return ev
			},
			category: types.CategoryVoicePortalAccess,
			skip:     true,
		},
		{
			name: "caller dropped into the voice portal",
			event: func() types.CallEvent {
				ev := outgoing("")
				ev.CallerName = "Voice Portal Voice Portal"
				ev.CallingNumber = "2125550000"
				return ev
			},
			category: types.CategorySentToVoicemail,
			skip:     true,
		},
		{
			name: "private category is inter-office",
			event: func() types.CallEvent {
				ev := outgoing("")
				ev.CallerName = "Front Desk"
				ev.CallCategory = "private"
				return ev
			},
			category: types.CategoryPlainOutgoing,
		},
		{
			name:     "no caller name is external",
			event:    func() types.CallEvent { return outgoing("") },
			category: types.CategoryPlainOutgoing,
		},
		{
			name: "named caller without category is unrecognized",
			event: func() types.CallEvent {
				ev := outgoing("")
				ev.CallerName = "Jane Doe"
				ev.CallCategory = "national"
				return ev
			},
			category: types.CategoryUnknownSpecialType,
			skip:     true,
			anomaly:  alerts.KindUnrecognizedEmptyType,
		},
		{
			name:     "unknown special type",
			event:    func() types.CallEvent { return outgoing("Sequential Ring") },
			category: types.CategoryUnknownSpecialType,
			skip:     true,
			anomaly:  alerts.KindUnknownSpecialType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.event(), ext)

			if got.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, got.Category)
			}
			if got.Skip != tt.skip {
				t.Errorf("expected skip %v, got %v", tt.skip, got.Skip)
			}
			if got.Anomaly != tt.anomaly {
				t.Errorf("expected anomaly %q, got %q", tt.anomaly, got.Anomaly)
			}
		})
	}
}

func TestClassifyOnlyPlainIsNotSkipped(t *testing.T) {
	c := New(DefaultRules())
	specials := []string{
		"", "Call Forward No Answer", "Call Forward Busy", "Call Forward Always",
		"Call Forward Selective", "BroadWorks Anywhere Location", "Something New",
	}

	for _, special := range specials {
		for _, name := range []string{"", "Voice Portal Voice Portal", "Jane Doe"} {
			ev := outgoing(special)
			ev.CallerName = name
			got := c.Classify(ev, ext)
			if got.Skip == got.Category.IsPlain() {
				t.Errorf("special %q caller %q: skip=%v but category %s", special, name, got.Skip, got.Category)
			}
		}
	}
}

func TestCustomRules(t *testing.T) {
	c := New(Rules{AttendantNumber: "700", VoicePortalName: "Portal"})

	ev := outgoing("Call Forward Selective")
	ev.CalledNumber = "700"
	if got := c.Classify(ev, ext); got.Category != types.CategorySentToAttendant {
		t.Errorf("expected attendant with custom number, got %s", got.Category)
	}

	ev.CalledNumber = "500"
	if got := c.Classify(ev, ext); got.Category != types.CategoryUnhandledRedirect {
		t.Errorf("expected unhandled redirect for default number, got %s", got.Category)
	}

	ev = outgoing("")
	ev.CallerName = "Portal"
	ev.CallingNumber = ext
	if got := c.Classify(ev, ext); got.Category != types.CategoryVoicePortalAccess {
		t.Errorf("expected voice portal access with custom name, got %s", got.Category)
	}
}

func TestNewFillsDefaults(t *testing.T) {
	c := New(Rules{})
	if c.rules.AttendantNumber != DefaultAttendantNumber {
		t.Errorf("expected attendant %s, got %s", DefaultAttendantNumber, c.rules.AttendantNumber)
	}
	if c.rules.VoicePortalName != DefaultVoicePortalName {
		t.Errorf("expected voice portal %q, got %q", DefaultVoicePortalName, c.rules.VoicePortalName)
	}
}
