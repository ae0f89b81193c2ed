package stream

import (
	"regexp"
	"strings"
	"time"

	"github.com/docsmith-io/docsmith/internal/model"
)

// The tagged-log grammar: a bracketed tag token, case-insensitive on
// the tag letters, exact on the bracket delimiters. A line containing
// the tag word without brackets must not match.
var tagRx = regexp.MustCompile(`\[((?i)PROGRESS|WARNING|ERROR)\]`)

// Classify recognizes the tagged-log grammar in one line and yields a
// structured event, or nothing. Untagged process chatter is discarded
// on purpose, only explicitly tagged lines become visible telemetry.
// A trailing carriage return before the terminator is tolerated.
func Classify(line string, origin model.StreamOrigin) (model.LogEvent, bool) {
	line = strings.TrimSuffix(line, "\r")

	m := tagRx.FindStringSubmatchIndex(line)
	if m == nil {
		return model.LogEvent{}, false
	}

	kind := model.EventKind(strings.ToLower(line[m[2]:m[3]]))
	message := strings.TrimSpace(line[m[1]:])

	return model.LogEvent{
		Kind:      kind,
		Message:   message,
		Origin:    origin,
		EmittedAt: time.Now().UTC(),
	}, true
}
