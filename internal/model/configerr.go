package model

import (
	"fmt"
	"regexp"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

var (
	reIncomplete = regexp.MustCompile(`(?i)incomplete value`)
	reNotAllowed = regexp.MustCompile(`(?i)not allowed|unknown field`)
	reConflict   = regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible`)
)

// CueErrDetails renders a CUE validation error as one human line per
// underlying problem, so config mistakes can be logged individually.
func CueErrDetails(err error) []string {
	if err == nil {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, e := range cueerrors.Errors(err) {
		raw, _ := e.Msg()
		path := normalizePath(e.Path())
		line := humanize(raw, path)
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	if out == nil {
		out = []string{err.Error()}
	}
	return out
}

func humanize(raw, path string) string {
	field := path
	if field == "" {
		field = "config"
	}
	switch {
	case reNotAllowed.MatchString(raw):
		return fmt.Sprintf("%s: field is not allowed", field)
	case reIncomplete.MatchString(raw):
		return fmt.Sprintf("%s: required field is missing or empty", field)
	case reConflict.MatchString(raw):
		return fmt.Sprintf("%s: conflicting value (%s)", field, raw)
	default:
		return fmt.Sprintf("%s: %s", field, raw)
	}
}

func normalizePath(p []string) string {
	if len(p) == 0 {
		return ""
	}
	// drop the leading #Config definition
	if strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}
