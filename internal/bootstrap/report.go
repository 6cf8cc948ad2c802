package bootstrap

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"journiv/internal/metrics"
)

// OutcomesEnvVar carries every step's status and duration into the
// handed-off server, which exports them as metrics. The entrypoint process
// itself is replaced before anything could scrape it.
const OutcomesEnvVar = "JOURNIV_BOOTSTRAP_OUTCOMES"

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusSucceeded, StatusFailedContinue, StatusFailedAbort} {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

// FormatOutcomes renders outcomes as step:status:milliseconds, comma separated.
// Errors are not carried; they were logged when the step ran.
func FormatOutcomes(outcomes []Outcome) string {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, fmt.Sprintf("%s:%s:%d", o.Step, o.Status, o.Duration.Milliseconds()))
	}
	return strings.Join(parts, ",")
}

// ParseOutcomes reads an OutcomesEnvVar value. Malformed entries are skipped.
func ParseOutcomes(value string) []Outcome {
	var outcomes []Outcome
	for _, part := range strings.Split(value, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 3 || fields[0] == "" {
			continue
		}
		status, ok := ParseStatus(fields[1])
		if !ok {
			continue
		}
		ms, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || ms < 0 {
			continue
		}
		outcomes = append(outcomes, Outcome{
			Step:     fields[0],
			Status:   status,
			Duration: time.Duration(ms) * time.Millisecond,
		})
	}
	return outcomes
}

// RecordOutcomes exports step outcomes as bootstrap metrics. The server
// calls it once at startup with the outcomes handed over by the entrypoint
// and a succeeded handoff appended.
func RecordOutcomes(outcomes []Outcome) {
	for _, o := range outcomes {
		metrics.BootstrapStepsTotal.WithLabelValues(o.Step, o.Status.String()).Inc()
		metrics.BootstrapStepDuration.WithLabelValues(o.Step).Observe(o.Duration.Seconds())
	}
}

func degradedSteps(outcomes []Outcome) []string {
	var names []string
	for _, o := range outcomes {
		if o.Status == StatusFailedContinue {
			names = append(names, o.Step)
		}
	}
	return names
}
