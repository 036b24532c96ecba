package classifier

import (
	"regexp"
	"strings"
)

// placeholderTitle is used when stripping temporal tokens leaves nothing.
const placeholderTitle = "無題の予定"

// titleNoiseRe matches the temporal tokens and connecting particles
// that are removed from the utterance to leave the event title.
var titleNoiseRe = regexp.MustCompile(`\d+時|\d+分|\d{1,2}:\d{2}|明日|今日|あした|きょう|tomorrow|today|に|から`)

// extractTitle strips recognized temporal tokens and particles from the
// utterance and trims whitespace. Pure text transformation.
func extractTitle(text string) string {
	title := strings.TrimSpace(titleNoiseRe.ReplaceAllString(text, ""))
	if title == "" {
		return placeholderTitle
	}
	return title
}
