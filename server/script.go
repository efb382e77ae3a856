package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Step is one scripted upstream reply.
type Step struct {
	Status int
	// RetryAfter is sent verbatim as the Retry-After header when non-empty.
	RetryAfter string
	// Delay holds the reply back, e.g. to provoke a client timeout.
	Delay time.Duration
}

func (s Step) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(s.Status))
	if s.RetryAfter != "" {
		b.WriteString("@" + s.RetryAfter)
	}
	if s.Delay > 0 {
		b.WriteString("~" + s.Delay.String())
	}
	return b.String()
}

// Script is the ordered list of replies for one logical request. The last
// step repeats once the script runs out.
type Script []Step

// ParseScript parses a script of STATUS[@RETRY_AFTER][~DELAY] steps, for
// example "503,429@2,200~1s". Steps are separated by ";" when the script
// contains one and by "," otherwise, so an HTTP-date Retry-After needs ";":
// "429@Wed, 21 Oct 2030 07:28:00 GMT;200".
func ParseScript(s string) (Script, error) {
	var script Script
	for i, token := range strings.Split(s, separator(s)) {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("step %d: empty", i+1)
		}
		step, err := parseStep(token)
		if err != nil {
			return nil, fmt.Errorf("step %d %q: %w", i+1, token, err)
		}
		script = append(script, step)
	}
	return script, nil
}

func separator(s string) string {
	if strings.Contains(s, ";") {
		return ";"
	}
	return ","
}

func parseStep(token string) (Step, error) {
	var step Step

	if head, delay, ok := strings.Cut(token, "~"); ok {
		d, err := time.ParseDuration(delay)
		if err != nil || d < 0 {
			return Step{}, fmt.Errorf("invalid delay %q", delay)
		}
		step.Delay = d
		token = head
	}

	if head, ra, ok := strings.Cut(token, "@"); ok {
		if ra == "" {
			return Step{}, fmt.Errorf("empty Retry-After")
		}
		step.RetryAfter = ra
		token = head
	}

	code, err := strconv.Atoi(token)
	if err != nil || code < 200 || code > 599 {
		return Step{}, fmt.Errorf("invalid status %q", token)
	}
	if http.StatusText(code) == "" {
		return Step{}, fmt.Errorf("unknown status %d", code)
	}
	step.Status = code
	return step, nil
}

// At returns the step for the 0-based hit index.
func (s Script) At(i int) Step {
	if len(s) == 0 {
		return Step{Status: http.StatusOK}
	}
	return s[min(max(i, 0), len(s)-1)]
}

func (s Script) String() string {
	sep := ","
	parts := make([]string, len(s))
	for i, step := range s {
		parts[i] = step.String()
		if strings.Contains(step.RetryAfter, ",") {
			sep = ";"
		}
	}
	return strings.Join(parts, sep)
}
