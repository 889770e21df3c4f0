package domain

import "time"

// Leak channels in their fixed evaluation order. A verdict's LeakChannel is
// the comma-joined subset of these that applied, or ChannelOther when a term
// matched but none of the structural indicators were present.
const (
	ChannelURLParameter = "url_parameter"
	ChannelPageTitle    = "page_title"
	ChannelSearchQuery  = "search_query"
	ChannelFormData     = "form_data"
	ChannelOther        = "other"
	ChannelNone         = "none"
)

// LeakageVerdict records the classification outcome for one TrackingEvent.
// Verdicts are append-only: one event yields at most one verdict and stored
// rows are never updated.
type LeakageVerdict struct {
	ID           int64
	SessionID    string
	HasLeak      bool
	MatchedTerms []string
	LeakChannel  string
	AnalyzedAt   time.Time
}
