package scheduler

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// cronPattern matches cron expressions (5 or 6 fields)
var cronPattern = regexp.MustCompile(`^(\S+\s+){4,5}\S+$`)

// alignment maps a duration unit onto a clock-aligned cron step.
type alignment struct {
	unit   time.Duration
	cycle  int    // steps must divide the enclosing cycle evenly
	format string // cron template taking the step
	name   string
}

var alignments = []alignment{
	{unit: time.Second, cycle: 60, format: "*/%d * * * * *", name: "second"},
	{unit: time.Minute, cycle: 60, format: "*/%d * * * *", name: "minute"},
	{unit: time.Hour, cycle: 24, format: "0 */%d * * *", name: "hour"},
}

// isCronExpression checks if a string is a cron expression (vs duration)
func isCronExpression(s string) bool {
	return cronPattern.MatchString(s)
}

// cronWithSeconds reports whether a cron expression carries a seconds field.
func cronWithSeconds(expr string) bool {
	return len(strings.Fields(expr)) == 6
}

// durationToCron converts a duration string to a clock-aligned cron expression:
// "5m" runs at :00, :05, :10 and so on rather than five minutes after startup.
func durationToCron(durationStr string) (string, error) {
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return "", fmt.Errorf("invalid duration format: %w", err)
	}
	if d <= 0 {
		return "", fmt.Errorf("interval must be positive (got %s)", durationStr)
	}

	var a alignment
	switch {
	case d < time.Minute:
		a = alignments[0]
	case d < time.Hour:
		a = alignments[1]
	default:
		a = alignments[2]
	}

	if d%a.unit != 0 {
		return "", fmt.Errorf("duration must be whole seconds, minutes, or hours (got %s)", durationStr)
	}
	step := int(d / a.unit)
	if a.cycle%step != 0 {
		return "", fmt.Errorf("%s intervals must divide evenly into %d (got %s)", a.name, a.cycle, durationStr)
	}
	return fmt.Sprintf(a.format, step), nil
}

// ValidateScheduleInterval validates a schedule interval (duration or cron).
// Empty disables the schedule.
func ValidateScheduleInterval(interval string) error {
	if interval == "" {
		return nil
	}
	if isCronExpression(interval) {
		// gocron does the deeper validation
		return nil
	}
	if strings.Contains(strings.TrimSpace(interval), " ") {
		return errors.New("cron expression must have 5 or 6 fields")
	}
	_, err := durationToCron(interval)
	return err
}

// DescribeSchedule provides a human-readable description of the schedule
func DescribeSchedule(interval string, timezone *time.Location) string {
	if timezone == nil {
		timezone = time.UTC
	}
	if interval == "" {
		return "disabled"
	}

	if isCronExpression(interval) {
		return fmt.Sprintf("cron: %s (%s)", interval, timezone)
	}

	d, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Sprintf("invalid: %s", interval)
	}

	cronExpr, err := durationToCron(interval)
	if err != nil {
		return fmt.Sprintf("duration: %s (non-aligned)", interval)
	}

	return fmt.Sprintf("every %s (aligned to clock, cron: %s, %s)", d, cronExpr, timezone)
}
