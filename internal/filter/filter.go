// Package filter decides whether an assembled opportunity is worth storing.
package filter

import (
	"context"
	"strings"
	"time"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

// DefaultDeadlineThresholdDays drops opportunities closing in fewer days than this.
const DefaultDeadlineThresholdDays = 14

// DefaultDefenseKeywords are matched case-insensitively against the department.
var DefaultDefenseKeywords = []string{
	"department of defense",
	"dod",
	"defense",
	"army",
	"navy",
	"air force",
	"marine corps",
	"space force",
	"national guard",
	"pentagon",
}

// DeadlineLayouts are tried in order; the first successful parse wins.
var DeadlineLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
	"02/01/2006",
	"2006/01/02",
}

// Config tunes the chain. Zero values fall back to the defaults above.
type Config struct {
	DefenseKeywords       []string `mapstructure:"defense_keywords"`
	DeadlineThresholdDays int      `mapstructure:"deadline_threshold_days"`
	ReferenceTimezone     string   `mapstructure:"reference_timezone"`
}

// Decision is the outcome of running the chain on one record.
type Decision struct {
	Keep   bool
	Reason crawler.DropReason
}

func keep() Decision { return Decision{Keep: true} }

func drop(reason crawler.DropReason) Decision { return Decision{Reason: reason} }

// Chain runs defense, deadline and relevance checks in that order and stops
// at the first drop, so the classifier is only paid for when the cheap checks pass.
type Chain struct {
	defense   *Defense
	deadline  *Deadline
	relevance *Relevance
}

// NewChain wires the three predicates.
func NewChain(cfg Config, clock crawler.Clock, classifier crawler.RelevanceClassifier) *Chain {
	return &Chain{
		defense:   NewDefense(cfg.DefenseKeywords),
		deadline:  NewDeadline(clock, cfg.DeadlineThresholdDays, cfg.ReferenceTimezone),
		relevance: NewRelevance(classifier),
	}
}

// Evaluate applies the predicates to opp.
func (c *Chain) Evaluate(ctx context.Context, opp crawler.Opportunity) Decision {
	if c.defense.Excludes(opp.Department) {
		return drop(crawler.DropDefense)
	}
	if c.deadline.Excludes(opp.ResponseDate) {
		return drop(crawler.DropDeadline)
	}
	if !c.relevance.Includes(ctx, opp.Title) {
		return drop(crawler.DropRelevance)
	}
	return keep()
}

// Defense matches departments belonging to the defense establishment.
type Defense struct {
	keywords []string
}

// NewDefense lower-cases keywords once. An empty list uses DefaultDefenseKeywords.
func NewDefense(keywords []string) *Defense {
	if len(keywords) == 0 {
		keywords = DefaultDefenseKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(k); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Defense{keywords: lowered}
}

// Excludes reports whether department contains any defense keyword.
func (d *Defense) Excludes(department string) bool {
	if !crawler.IsPresent(department) {
		return false
	}
	lower := strings.ToLower(department)
	for _, k := range d.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Deadline drops records whose response date is too close to now.
type Deadline struct {
	clock     crawler.Clock
	threshold int
	location  *time.Location
}

// NewDeadline builds the predicate. An unknown timezone falls back to a fixed UTC-7.
func NewDeadline(clock crawler.Clock, thresholdDays int, timezone string) *Deadline {
	if thresholdDays <= 0 {
		thresholdDays = DefaultDeadlineThresholdDays
	}
	if timezone == "" {
		timezone = "America/Denver"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.FixedZone("UTC-7", -7*60*60)
	}
	return &Deadline{clock: clock, threshold: thresholdDays, location: loc}
}

// Excludes reports whether the deadline is fewer than threshold days away.
// An absent or unparseable date never excludes.
func (d *Deadline) Excludes(responseDate string) bool {
	days, ok := d.DaysUntil(responseDate)
	if !ok {
		return false
	}
	return days < d.threshold
}

// DaysUntil returns floor((deadline - now) / 24h) with both sides compared as
// wall-clock times in the reference zone.
func (d *Deadline) DaysUntil(responseDate string) (int, bool) {
	if !crawler.IsPresent(strings.TrimSpace(responseDate)) {
		return 0, false
	}
	deadline, ok := parseDeadline(strings.TrimSpace(responseDate))
	if !ok {
		return 0, false
	}
	now := naive(d.clock.Now().In(d.location))
	diff := deadline.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff < 0 && diff%(24*time.Hour) != 0 {
		days--
	}
	return days, true
}

func parseDeadline(value string) (time.Time, bool) {
	for _, layout := range DeadlineLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// naive drops the zone, keeping the wall clock.
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Relevance delegates to a classifier. Missing titles never pass.
type Relevance struct {
	classifier crawler.RelevanceClassifier
}

// NewRelevance wraps classifier.
func NewRelevance(classifier crawler.RelevanceClassifier) *Relevance {
	return &Relevance{classifier: classifier}
}

// Includes reports whether title is in scope.
func (r *Relevance) Includes(ctx context.Context, title string) bool {
	if !crawler.IsPresent(strings.TrimSpace(title)) {
		return false
	}
	if r.classifier == nil {
		return false
	}
	return r.classifier.Classify(ctx, title)
}
