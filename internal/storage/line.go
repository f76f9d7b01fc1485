package storage

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the timestamp format inside the brackets of a log line.
const TimeLayout = "2006-01-02 15:04:05"

const separator = "] "

// FormatLine renders an entry as "[YYYY-MM-DD HH:MM:SS] text".
func FormatLine(e Entry) string {
	return fmt.Sprintf("[%s] %s", e.Time.Format(TimeLayout), e.Text)
}

// ParseLine splits a log line on the first "] ". Lines without the bracket
// prefix or with an empty message are rejected. A timestamp that does not
// parse leaves Time zero but keeps the text.
func ParseLine(line string) (Entry, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "[") {
		return Entry{}, false
	}
	stamp, text, found := strings.Cut(line[1:], separator)
	if !found {
		return Entry{}, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, false
	}
	ts, err := time.ParseInLocation(TimeLayout, stamp, time.Local)
	if err != nil {
		ts = time.Time{}
	}
	return Entry{Time: ts, Text: text}, true
}
