package types

// PerNumberStats holds the counters for one internal number.
// Counters only ever grow.
type PerNumberStats struct {
	Total int `json:"total"`

	SentToVoicemail   int `json:"sentToVoicemail"`
	SentToAttendant   int `json:"sentToAttendant"`
	Forwarded         int `json:"forwarded"`
	AttemptedCellRing int `json:"attemptedCellRing"`
	VoicePortalAccess int `json:"voicePortalAccess"`

	IncomingWeek  int `json:"incomingWeek"`
	IncomingMonth int `json:"incomingMonth"`
	Incoming60    int `json:"incoming60"`
	OutgoingWeek  int `json:"outgoingWeek"`
	OutgoingMonth int `json:"outgoingMonth"`
	Outgoing60    int `json:"outgoing60"`
}

// RedirectCount is one named redirect bucket with its value
type RedirectCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Redirects returns the five redirect buckets in display order
func (s PerNumberStats) Redirects() []RedirectCount {
	return []RedirectCount{
		{Label: "Sent to voicemail", Count: s.SentToVoicemail},
		{Label: "Sent to AA", Count: s.SentToAttendant},
		{Label: "Forwarded", Count: s.Forwarded},
		{Label: "Attempted to ring to cell", Count: s.AttemptedCellRing},
		{Label: "Calls to portal from handset", Count: s.VoicePortalAccess},
	}
}

// WindowTotal is the sum of all six window counters
func (s PerNumberStats) WindowTotal() int {
	return s.IncomingWeek + s.IncomingMonth + s.Incoming60 +
		s.OutgoingWeek + s.OutgoingMonth + s.Outgoing60
}

// DayCount is one entry of the daily histogram
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}
