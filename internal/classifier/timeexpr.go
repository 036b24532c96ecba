package classifier

import (
	"regexp"
	"strconv"
	"time"

	"agent-bridge/internal/models"
)

const (
	defaultHour        = 10
	defaultMinute      = 0
	defaultDurationMin = 30
)

var (
	jpClockRe   = regexp.MustCompile(`(\d{1,2})\s*時\s*(\d{1,2})?\s*分?`)
	colonTimeRe = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	durationRe  = regexp.MustCompile(`(\d{1,3})\s*分`)

	// Optional 来週, a single weekday kanji before 曜, an all-day
	// marker and a leave marker, in that order.
	leaveRe = regexp.MustCompile(`(来週)?([月火水木金土日])曜.*?(終日|全日).*(有休|休暇)`)

	tomorrowKeywords = []string{"明日", "あした", "tomorrow"}
	todayKeywords    = []string{"今日", "きょう", "today"}
)

// weekdayIndex maps weekday kanji to ISO indices, Monday=0.
var weekdayIndex = map[string]int{
	"月": 0, "火": 1, "水": 2, "木": 3, "金": 4, "土": 5, "日": 6,
}

// relativeBase resolves 明日/今日 keywords to a midnight in JST.
// Tomorrow keywords win over today keywords; absent both, today.
func relativeBase(text string, now time.Time) time.Time {
	day := now
	if containsAny(text, tomorrowKeywords) {
		day = now.AddDate(0, 0, 1)
	} else if containsAny(text, todayKeywords) {
		day = now
	}
	return midnight(day)
}

// extractClock finds the first clock-time fragment, preferring the
// Japanese 時/分 form over the colon form. It reports the byte span the
// match consumed so the duration search can skip it. Without a match
// it falls back to 10:00.
func extractClock(text string) (hour, minute, spanStart, spanEnd int, ok bool) {
	if loc := jpClockRe.FindStringSubmatchIndex(text); loc != nil {
		hour, _ = strconv.Atoi(text[loc[2]:loc[3]])
		if loc[4] >= 0 {
			minute, _ = strconv.Atoi(text[loc[4]:loc[5]])
		}
		return hour, minute, loc[0], loc[1], true
	}
	if loc := colonTimeRe.FindStringSubmatchIndex(text); loc != nil {
		hour, _ = strconv.Atoi(text[loc[2]:loc[3]])
		minute, _ = strconv.Atoi(text[loc[4]:loc[5]])
		return hour, minute, loc[0], loc[1], true
	}
	return defaultHour, defaultMinute, 0, 0, false
}

// extractDuration finds a standalone minute count. The clock-time match
// is cut out of the text first, so digits already consumed by the time
// never double as a duration: "10時15分" reads as 10:15 with the default
// 30 minute duration, not as a 15 minute meeting.
func extractDuration(text string, spanStart, spanEnd int, hasClock bool) int {
	rest := text
	if hasClock {
		rest = text[:spanStart] + text[spanEnd:]
	}
	if m := durationRe.FindStringSubmatch(rest); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return defaultDurationMin
}

// resolveWindow turns the utterance into a timed (start, end) window:
// base date from relative keywords, start time from the first clock
// fragment, end = start + extracted or defaulted duration.
func resolveWindow(text string, now time.Time) (start, end time.Time) {
	base := relativeBase(text, now)
	hour, minute, spanStart, spanEnd, hasClock := extractClock(text)
	dur := extractDuration(text, spanStart, spanEnd, hasClock)

	start = time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, models.JST)
	end = start.Add(time.Duration(dur) * time.Minute)
	return start, end
}

// resolveLeaveDay matches the weekday all-day leave pattern and returns
// the target date at midnight JST. With 来週 the date always lands in
// the following calendar week, even when today already is that weekday;
// without it, the same weekday in the current week, rolling forward
// only when the weekday has already passed.
func resolveLeaveDay(text string, now time.Time) (time.Time, bool) {
	m := leaveRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	wd := weekdayIndex[m[2]]
	today := midnight(now)

	if m[1] != "" {
		toMonday := (7 - isoWeekday(today)) % 7
		if toMonday == 0 {
			toMonday = 7
		}
		return today.AddDate(0, 0, toMonday+wd), true
	}

	ahead := ((wd-isoWeekday(today))%7 + 7) % 7
	return today.AddDate(0, 0, ahead), true
}

// isoWeekday returns the ISO weekday index, Monday=0 through Sunday=6.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, models.JST)
}
