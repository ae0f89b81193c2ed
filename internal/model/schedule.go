package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseCron validates a sweep schedule: a 5 field cron expression or a
// @macro like @hourly or @every 1h.
func ParseCron(expr string) error {
	e := strings.TrimSpace(expr)
	if e == "" {
		return fmt.Errorf("empty cron expression")
	}

	// ParseStandard handles macros and @every.
	if strings.HasPrefix(e, "@") {
		_, err := cron.ParseStandard(e)
		return err
	}

	parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser5.Parse(e)
	return err
}

var ageRx = regexp.MustCompile(`^(\d+d)?(\d+h)?(\d+m)?(\d+s)?$`)

// ParseAge parses ordered day/hour/minute/second segments, e.g. "1d12h"
// or "30m". Empty strings are rejected.
func ParseAge(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("empty duration")
	}
	m := ageRx.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.New("invalid duration format")
	}
	var total time.Duration
	var found bool
	for _, seg := range m[1:] {
		if seg == "" {
			continue
		}
		found = true
		n, err := strconv.Atoi(seg[:len(seg)-1])
		if err != nil {
			return 0, fmt.Errorf("parsing duration segment %q: %w", seg, err)
		}
		switch seg[len(seg)-1] {
		case 'd':
			total += time.Duration(n) * 24 * time.Hour
		case 'h':
			total += time.Duration(n) * time.Hour
		case 'm':
			total += time.Duration(n) * time.Minute
		case 's':
			total += time.Duration(n) * time.Second
		}
	}
	if !found {
		return 0, errors.New("invalid duration format")
	}
	if total == 0 {
		return 0, errors.New("duration must be positive")
	}
	return total, nil
}
