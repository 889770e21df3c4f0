package detect

import (
	"encoding/json"
	"strings"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/domain"
)

// Verdict is the outcome of classifying one event. It is a plain value; the
// persisted LeakageVerdict row is derived from it at ingestion time.
type Verdict struct {
	HasLeak      bool
	MatchedTerms []string
	LeakChannel  string
}

// Classifier decides whether an event payload discloses sensitive topics.
// Classification is pure: identical input always yields an identical verdict,
// and no field access can fail; absent fields read as empty.
type Classifier struct {
	catalog *Catalog
}

func NewClassifier(catalog *Catalog) *Classifier {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Classifier{catalog: catalog}
}

// Classify scans the serialized event for catalog phrases and, when any
// match, derives the leak channel from the structured payload. raw is the
// event exactly as received; payload is its decoded object form.
func (c *Classifier) Classify(raw []byte, payload map[string]any) Verdict {
	matched := c.catalog.Match(string(raw))
	if len(matched) == 0 {
		return Verdict{HasLeak: false, MatchedTerms: []string{}, LeakChannel: domain.ChannelNone}
	}

	return Verdict{
		HasLeak:      true,
		MatchedTerms: matched,
		LeakChannel:  deriveChannel(payload),
	}
}

// deriveChannel checks the four structural indicators independently, in
// fixed order, and joins the ones that apply. A term match with no indicator
// present is reported as "other".
func deriveChannel(payload map[string]any) string {
	var channels []string

	if strings.Contains(domain.StringField(payload, "page_url", "pageUrl", "url"), "?") {
		channels = append(channels, domain.ChannelURLParameter)
	}
	if domain.StringField(payload, "page_title", "pageTitle") != "" {
		channels = append(channels, domain.ChannelPageTitle)
	}
	if searchQuery(payload) != "" {
		channels = append(channels, domain.ChannelSearchQuery)
	}
	if hasFormData(payload) {
		channels = append(channels, domain.ChannelFormData)
	}

	if len(channels) == 0 {
		return domain.ChannelOther
	}
	return strings.Join(channels, ",")
}

func searchQuery(payload map[string]any) string {
	if q := domain.StringField(payload, "query", "search_query", "searchQuery"); q != "" {
		return q
	}
	return domain.StringField(eventData(payload), "query", "search_query", "searchQuery")
}

func hasFormData(payload map[string]any) bool {
	if _, ok := firstValue(payload, "form_data", "formData"); ok {
		return true
	}
	_, ok := firstValue(eventData(payload), "form_data", "formData")
	return ok
}

// eventData unwraps the nested event_data blob, which clients send either as
// an object or as a pre-serialized JSON string.
func eventData(payload map[string]any) map[string]any {
	v, ok := firstValue(payload, "event_data", "eventData")
	if !ok {
		return nil
	}
	switch data := v.(type) {
	case map[string]any:
		return data
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(data), &decoded); err == nil {
			return decoded
		}
	}
	return nil
}

func firstValue(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
