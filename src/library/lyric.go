package library

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// A LyricLine is a single timestamped line of a lyric, optionally accompanied
// by a translation that carries the same timestamp.
type LyricLine struct {
	Time  time.Duration `json:"time"`
	Text  string        `json:"text"`
	Trans string        `json:"trans,omitempty"`
}

// A Lyric is the parsed form of an LRC document, ordered by line time.
type Lyric struct {
	Lines []LyricLine `json:"lines"`
}

// LineAt returns the index of the line active at the specified playback
// position, or -1 if the position precedes the first line.
func (l *Lyric) LineAt(pos time.Duration) int {
	i := sort.Search(len(l.Lines), func(i int) bool {
		return l.Lines[i].Time > pos
	})
	return i - 1
}

var (
	lrcTimeTag     = regexp.MustCompile(`\[(\d+:\d+(?:[.:]\d+)?)\]`)
	lrcTime        = regexp.MustCompile(`^(\d+):(\d+)(?:[.:](\d+))?`)
	lrcSymbolsOnly = regexp.MustCompile(`^[/\-*~\s\\：:.。，,]+$`)
	lrcTimeMarker  = regexp.MustCompile(`^\(\d+(?:,\d+)*\)$`)
)

// ParseLRC parses an LRC document. An optional second document holding
// translated lines is merged in by matching timestamps.
//
// Lines without usable text, such as pure punctuation or interlude markers,
// are dropped. A line prefixed by multiple time tags is emitted once per tag.
func ParseLRC(text string, trans string) *Lyric {
	textMap := parseLRCMap(text)
	transMap := parseLRCMap(trans)

	times := make([]time.Duration, 0, len(textMap))
	for t := range textMap {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	lyric := &Lyric{Lines: make([]LyricLine, 0, len(times))}
	for _, t := range times {
		lyric.Lines = append(lyric.Lines, LyricLine{
			Time:  t,
			Text:  textMap[t],
			Trans: transMap[t],
		})
	}
	return lyric
}

func parseLRCMap(lrc string) map[time.Duration]string {
	result := map[time.Duration]string{}
	if lrc == "" {
		return result
	}

	cleaned := strings.NewReplacer("\uFEFF", "", "\r", "").Replace(lrc)
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			continue
		}

		var times []time.Duration
		for _, match := range lrcTimeTag.FindAllStringSubmatch(line, -1) {
			if t, ok := parseLRCTime(match[1]); ok {
				times = append(times, t)
			}
		}

		text := strings.TrimSpace(lrcTimeTag.ReplaceAllString(line, ""))
		if text == "" || invalidLyricText(text) {
			continue
		}
		for _, t := range times {
			result[t] = text
		}
	}
	return result
}

// parseLRCTime parses a [mm:ss.xx], [mm:ss:xx] or [mm:ss] time tag.
func parseLRCTime(s string) (time.Duration, bool) {
	match := lrcTime.FindStringSubmatch(s)
	if match == nil {
		return 0, false
	}

	minutes, _ := strconv.Atoi(match[1])
	seconds, _ := strconv.Atoi(match[2])
	var millis int
	if match[3] != "" {
		millis, _ = strconv.Atoi(match[3])
		// Two-digit fractions are centiseconds.
		if len(match[3]) == 2 {
			millis *= 10
		}
	}

	return time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, true
}

func invalidLyricText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || lrcSymbolsOnly.MatchString(trimmed) {
		return true
	}
	return lrcTimeMarker.MatchString(trimmed)
}
