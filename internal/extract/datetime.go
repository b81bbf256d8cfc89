package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateRule maps a keyword pattern to a day offset from now.
type dateRule struct {
	re      *regexp.Regexp
	resolve func(now time.Time) time.Time
}

// timeRule pairs a pattern with its parser. Order matters: the explicit
// 12-hour form with minutes is tried before the bare meridiem form, which is
// tried before bare 24-hour, so "2:30 pm" never half-matches as 24-hour
// "2:30".
type timeRule struct {
	re    *regexp.Regexp
	parse func(m []string) (hour, minute int)
}

var dateRules = []dateRule{
	{regexp.MustCompile(`\btoday\b`), func(now time.Time) time.Time { return now }},
	{regexp.MustCompile(`\btomorrow\b`), func(now time.Time) time.Time { return now.AddDate(0, 0, 1) }},
	{regexp.MustCompile(`\b(?:monday|mon)\b`), nextWeekdayFn(time.Monday)},
	{regexp.MustCompile(`\b(?:tuesday|tue)\b`), nextWeekdayFn(time.Tuesday)},
	{regexp.MustCompile(`\b(?:wednesday|wed)\b`), nextWeekdayFn(time.Wednesday)},
	{regexp.MustCompile(`\b(?:thursday|thu)\b`), nextWeekdayFn(time.Thursday)},
	{regexp.MustCompile(`\b(?:friday|fri)\b`), nextWeekdayFn(time.Friday)},
	{regexp.MustCompile(`\b(?:saturday|sat)\b`), nextWeekdayFn(time.Saturday)},
	{regexp.MustCompile(`\b(?:sunday|sun)\b`), nextWeekdayFn(time.Sunday)},
}

var timeRules = []timeRule{
	{regexp.MustCompile(`(\d{1,2}):(\d{2})\s*(am|pm)`), parse12h},
	{regexp.MustCompile(`(\d{1,2})\s*(am|pm)`), parse12hBare},
	{regexp.MustCompile(`(\d{1,2}):(\d{2})`), parse24h},
}

// nextWeekdayFn resolves to the next future occurrence of the weekday. When
// the weekday equals today's, it advances a full week: "monday" said on a
// Monday always means next Monday, never today.
func nextWeekdayFn(weekday time.Weekday) func(time.Time) time.Time {
	return func(now time.Time) time.Time {
		ahead := int(weekday-now.Weekday()+7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return now.AddDate(0, 0, ahead)
	}
}

func parse12h(m []string) (int, int) {
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return meridiemHour(hour, m[3]), minute
}

func parse12hBare(m []string) (int, int) {
	hour, _ := strconv.Atoi(m[1])
	return meridiemHour(hour, m[2]), 0
}

func parse24h(m []string) (int, int) {
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return hour, minute
}

func meridiemHour(hour int, meridiem string) int {
	switch strings.ToLower(meridiem) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour
}

// Instant extracts a requested appointment instant from the utterance.
// A date plus a time yields the combined localized instant; a date alone
// defaults to the clinic's opening hour; a time alone yields nothing.
func (p *Pipeline) Instant(text string) (time.Time, bool) {
	lower := strings.ToLower(text)
	now := p.now().In(p.loc)

	var day time.Time
	dateFound := false
	for _, rule := range dateRules {
		if rule.re.MatchString(lower) {
			day = rule.resolve(now)
			dateFound = true
			break
		}
	}
	if !dateFound {
		return time.Time{}, false
	}

	hour, minute := p.defaultHour, 0
	for _, rule := range timeRules {
		if m := rule.re.FindStringSubmatch(lower); m != nil {
			hour, minute = rule.parse(m)
			break
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, false
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, p.loc), true
}
