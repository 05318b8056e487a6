package crawler

import (
	"fmt"
	"regexp"
	"sort"
)

// PageMeta is the schedule information recovered from a page's full text
type PageMeta struct {
	Day   string
	Stage string
	Time  string
}

// MetaParser recovers day, stage and time from the normalized page text
type MetaParser func(text string) PageMeta

var metaParsers = map[string]MetaParser{
	"czech":   ParseCzechSchedule,
	"showday": ParseShowDaySchedule,
}

// ParserFor returns the free-text parser registered under name
func ParserFor(name string) (MetaParser, error) {
	p, ok := metaParsers[name]
	if !ok {
		return nil, fmt.Errorf("unknown page parser %q (known: %v)", name, ParserNames())
	}
	return p, nil
}

// ParserNames lists the registered free-text parsers
func ParserNames() []string {
	names := make([]string, 0, len(metaParsers))
	for name := range metaParsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var czechDayRe = regexp.MustCompile(
	`(?i)(Pondělí|Úterý|Středa|Čtvrtek|Pátek|Sobota|Neděle|Mon|Tue|Wed|Thu|Fri|Sat|Sun)[^\d]{0,10}\s?(\d{1,2}\.\s*\d{1,2}\.)`)

// ParseCzechSchedule finds a weekday followed by a "D. M." date, e.g. "Čtvrtek 11. 6.".
// Stage and time are never present in this page text.
func ParseCzechSchedule(text string) PageMeta {
	return PageMeta{Day: czechDayRe.FindString(NormalizeText(text))}
}

var (
	showDayBlockRe = regexp.MustCompile(`(?i)SHOW DAY\s+(.+?)\s+STAGE\s+(.+?)\s+STAGE TIME\s+(\S+)`)
	weekdayMonthRe = regexp.MustCompile(
		`(?i)(Mon|Tue|Wed|Thu|Fri|Sat|Sun)[^\d]{0,10}\s?\d{1,2}\.\s*` +
			`(January|February|March|April|May|June|July|August|September|October|November|December|` +
			`Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)`)
	anyTimeRe   = regexp.MustCompile(`(\d{1,2}:\d{2})`)
	stageNameRe = regexp.MustCompile(`(?i)STAGE\s+([A-Za-z0-9\- ]{2,40})`)
)

// ParseShowDaySchedule reads a "SHOW DAY <day> STAGE <stage> STAGE TIME <time>"
// block. Without one it falls back to independent weekday/month, H:MM and
// "STAGE <name>" tokens.
func ParseShowDaySchedule(text string) PageMeta {
	normalized := NormalizeText(text)

	if m := showDayBlockRe.FindStringSubmatch(normalized); m != nil {
		return PageMeta{
			Day:   NormalizeText(m[1]),
			Stage: NormalizeText(m[2]),
			Time:  NormalizeText(m[3]),
		}
	}

	var meta PageMeta
	meta.Day = weekdayMonthRe.FindString(normalized)
	if m := anyTimeRe.FindStringSubmatch(normalized); m != nil {
		meta.Time = m[1]
	}
	if m := stageNameRe.FindStringSubmatch(normalized); m != nil {
		meta.Stage = NormalizeText(m[1])
	}
	return meta
}
