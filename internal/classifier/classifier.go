package classifier

import (
	"regexp"
	"strings"
	"time"

	"agent-bridge/internal/models"
)

// Classifier maps a raw utterance to an intent and a payload suggestion.
type Classifier interface {
	Classify(text string) models.IntentResult
}

// leaveSummary is the fixed label for weekday leave events; it is not
// derived from the utterance.
const leaveSummary = "有休"

var (
	memoKeywords = []string{"メモ", "日報", "memo"}
	memoPrefixRe = regexp.MustCompile(`^(メモ[:：]?)`)
)

// RuleClassifier is the ordered-rule intent pipeline. It is stateless
// apart from its clock and safe for concurrent use.
type RuleClassifier struct {
	now func() time.Time
}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{now: time.Now}
}

// NewRuleClassifierWithClock pins the reference clock, for tests.
func NewRuleClassifierWithClock(now func() time.Time) *RuleClassifier {
	return &RuleClassifier{now: now}
}

// Classify evaluates the rules in strict priority order: memo keyword,
// weekday all-day leave, timed event, unknown. The wall clock is read
// once so every derived date within one call shares the same "now".
func (c *RuleClassifier) Classify(text string) models.IntentResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return models.IntentResult{Intent: models.IntentUnknown}
	}
	now := c.now().In(models.JST)

	if containsAny(t, memoKeywords) {
		body := strings.TrimSpace(memoPrefixRe.ReplaceAllString(t, ""))
		row := []string{now.Format(models.MemoTimestampLayout), "memo", body}
		return models.IntentResult{
			Intent:           models.IntentMemo,
			SuggestedPayload: &models.MemoPayload{Values: [][]string{row}},
		}
	}

	if target, ok := resolveLeaveDay(t, now); ok {
		return models.IntentResult{
			Intent: models.IntentCalendar,
			SuggestedPayload: &models.CalendarPayload{
				Summary: leaveSummary,
				Start:   models.EventTime{At: target, AllDay: true},
				End:     models.EventTime{At: target.AddDate(0, 0, 1), AllDay: true},
			},
		}
	}

	if strings.Contains(t, "時") || colonTimeRe.MatchString(t) {
		start, end := resolveWindow(t, now)
		return models.IntentResult{
			Intent: models.IntentCalendar,
			SuggestedPayload: &models.CalendarPayload{
				Summary: extractTitle(t),
				Start:   models.EventTime{At: start},
				End:     models.EventTime{At: end},
			},
		}
	}

	return models.IntentResult{Intent: models.IntentUnknown}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
