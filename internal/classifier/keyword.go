package classifier

import (
	"context"
	"strings"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/metrics"
)

// DefaultKeywords are the technology terms Keyword looks for. The spaced "it"
// forms avoid matching words like "kit" or "permit".
var DefaultKeywords = []string{
	"software", "hardware", "computer", "network", "cloud", "cyber", "data",
	"server", "programming", "development", "web", "application", "app", "ai",
	"machine learning", "algorithm", "security", "database", "it ", " it ", "information technology",
	"digital", "system", "platform", "infrastructure", "technology", "internet", "computing",
	"programmer", "developer", "analyst", "administrator", "engineer", "coding", "code",
	"automation", "automated", "interface", "api", "website", "online", "electronic",
	"virtualization", "virtual", "storage", "backup", "recovery", "disaster recovery",
	"firewall", "vpn", "encryption", "authentication", "authorization", "cyber security",
}

// Keyword matches lower-cased titles against a fixed keyword list.
type Keyword struct {
	keywords []string
}

// NewKeyword builds a matcher. An empty list uses DefaultKeywords.
func NewKeyword(keywords []string) *Keyword {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k != "" {
			lowered = append(lowered, strings.ToLower(k))
		}
	}
	return &Keyword{keywords: lowered}
}

// Classify implements crawler.RelevanceClassifier.
func (k *Keyword) Classify(_ context.Context, title string) bool {
	relevant := k.match(title)
	metrics.ObserveClassifier(ModeKeyword, relevant)
	return relevant
}

func (k *Keyword) match(title string) bool {
	if !crawler.IsPresent(title) {
		return false
	}
	lower := strings.ToLower(title)
	for _, kw := range k.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
