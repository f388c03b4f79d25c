package quota

// MinutesAdmission is the admission verdict for a conversation request.
// Used carries the unrounded monthly accumulator.
type MinutesAdmission struct {
	Admitted bool    `json:"admitted"`
	Used     float64 `json:"used"`
	Limit    float64 `json:"limit"`
}

// TTSAdmission is the admission verdict for a premium synthesis request.
type TTSAdmission struct {
	Admitted bool `json:"admitted"`
	Used     int  `json:"used"`
	Limit    int  `json:"limit"`
}

// UsageStatus is the API response showing the caller's consumption
// against both metered resources.
type UsageStatus struct {
	MinutesUsed   float64 `json:"minutes_used"`
	MinutesLimit  float64 `json:"minutes_limit"`
	TTSUsedToday  int     `json:"tts_used_today"`
	TTSDailyLimit int     `json:"tts_daily_limit"`
	QuotaExempt   bool    `json:"quota_exempt"`
}
