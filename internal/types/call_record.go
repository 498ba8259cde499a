package types

// RunRecord describes one report run for persistence
type RunRecord struct {
	RunID       string `json:"runId" dynamodbav:"RunID"`             // partition key
	GeneratedAt string `json:"generatedAt" dynamodbav:"GeneratedAt"` // RFC3339, sort key
	Source      string `json:"source" dynamodbav:"Source"`
	AsOf        string `json:"asOf" dynamodbav:"AsOf"`         // RFC3339
	Month       string `json:"month" dynamodbav:"Month"`       // YYYY-MM
	Earliest    string `json:"earliest" dynamodbav:"Earliest"` // RFC3339, empty when no plain calls
	Latest      string `json:"latest" dynamodbav:"Latest"`     // RFC3339, empty when no plain calls
	Rows        int    `json:"rows" dynamodbav:"Rows"`
	Anomalies   int    `json:"anomalies" dynamodbav:"Anomalies"`
}

// NumberStatsRecord is the per-number counter set of a run
type NumberStatsRecord struct {
	RunID  string `json:"runId" dynamodbav:"RunID"`   // partition key
	Number string `json:"number" dynamodbav:"Number"` // sort key

	Total             int `json:"total" dynamodbav:"Total"`
	SentToVoicemail   int `json:"sentToVoicemail" dynamodbav:"SentToVoicemail"`
	SentToAttendant   int `json:"sentToAttendant" dynamodbav:"SentToAttendant"`
	Forwarded         int `json:"forwarded" dynamodbav:"Forwarded"`
	AttemptedCellRing int `json:"attemptedCellRing" dynamodbav:"AttemptedCellRing"`
	VoicePortalAccess int `json:"voicePortalAccess" dynamodbav:"VoicePortalAccess"`
	IncomingWeek      int `json:"incomingWeek" dynamodbav:"IncomingWeek"`
	IncomingMonth     int `json:"incomingMonth" dynamodbav:"IncomingMonth"`
	Incoming60        int `json:"incoming60" dynamodbav:"Incoming60"`
	OutgoingWeek      int `json:"outgoingWeek" dynamodbav:"OutgoingWeek"`
	OutgoingMonth     int `json:"outgoingMonth" dynamodbav:"OutgoingMonth"`
	Outgoing60        int `json:"outgoing60" dynamodbav:"Outgoing60"`
}

// NewNumberStatsRecord flattens stats into a record
func NewNumberStatsRecord(runID, number string, s PerNumberStats) NumberStatsRecord {
	return NumberStatsRecord{
		RunID:             runID,
		Number:            number,
		Total:             s.Total,
		SentToVoicemail:   s.SentToVoicemail,
		SentToAttendant:   s.SentToAttendant,
		Forwarded:         s.Forwarded,
		AttemptedCellRing: s.AttemptedCellRing,
		VoicePortalAccess: s.VoicePortalAccess,
		IncomingWeek:      s.IncomingWeek,
		IncomingMonth:     s.IncomingMonth,
		Incoming60:        s.Incoming60,
		OutgoingWeek:      s.OutgoingWeek,
		OutgoingMonth:     s.OutgoingMonth,
		Outgoing60:        s.Outgoing60,
	}
}

// Stats converts the record back into counters
func (r NumberStatsRecord) Stats() PerNumberStats {
	return PerNumberStats{
		Total:             r.Total,
		SentToVoicemail:   r.SentToVoicemail,
		SentToAttendant:   r.SentToAttendant,
		Forwarded:         r.Forwarded,
		AttemptedCellRing: r.AttemptedCellRing,
		VoicePortalAccess: r.VoicePortalAccess,
		IncomingWeek:      r.IncomingWeek,
		IncomingMonth:     r.IncomingMonth,
		Incoming60:        r.Incoming60,
		OutgoingWeek:      r.OutgoingWeek,
		OutgoingMonth:     r.OutgoingMonth,
		Outgoing60:        r.Outgoing60,
	}
}

// DailyCountRecord is one histogram bucket of a run
type DailyCountRecord struct {
	RunID   string `json:"runId" dynamodbav:"RunID"`     // partition key
	DateKey string `json:"dateKey" dynamodbav:"DateKey"` // YYYY-MM-DD (sort key)
	Count   int    `json:"count" dynamodbav:"Count"`
}
