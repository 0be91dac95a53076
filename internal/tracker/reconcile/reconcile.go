// Package reconcile decides how a freshly extracted email event changes a
// company's pipeline status, honoring the company's advance policy and the
// signature history that keeps repeated emails from double-advancing.
package reconcile

import (
	"strings"

	"github.com/monorhythm/shukatsu/internal/tracker/models"
	"github.com/monorhythm/shukatsu/internal/tracker/stage"
)

// Decision is the outcome of reconciling one event against a company.
type Decision struct {
	// Status is the resulting pipeline stage, in the flow's own notation.
	Status string
	// Advanced reports whether the pipeline moved forward because of a
	// previously unseen event date.
	Advanced bool
}

// Signature builds the idempotency key for an event: trimmed date and
// trimmed, lower-cased location joined by a delimiter.
func Signature(date, location string) string {
	return strings.TrimSpace(date) + "|" + strings.ToLower(strings.TrimSpace(location))
}

// shouldAdvanceByDate reports whether the event carries a date the company
// has not seen before.
func shouldAdvanceByDate(c *models.Company, date, location string) bool {
	if strings.TrimSpace(date) == "" {
		return false
	}
	return !c.HasSignature(Signature(date, location))
}

// AppendHistory returns the event history with the incoming event's
// signature added. Set semantics: duplicates collapse. Events without a
// date leave the history untouched.
func AppendHistory(c *models.Company, date, location string) []string {
	if strings.TrimSpace(date) == "" {
		return c.EventHistory
	}
	sig := Signature(date, location)
	if c.HasSignature(sig) {
		return c.EventHistory
	}
	out := make([]string, 0, len(c.EventHistory)+1)
	out = append(out, c.EventHistory...)
	return append(out, sig)
}

// Decide computes the company's next status for an incoming
// (event, date, location) triple.
//
// manual never moves status. byDate with a flow advances one stage per new
// signature; a duplicate signature with an event label snaps status onto the
// flow without counting as an advance. Every other combination falls back to
// keyword behavior: snap the event label onto the flow (or canonicalize it
// directly when no flow exists), or advance to the next flow stage when only
// a flow is available.
func Decide(c *models.Company, event, date, location string) Decision {
	policy := c.AdvancePolicy
	if policy == "" {
		policy = models.AdvanceByDate
	}
	flow := stage.ParseFlow(c.InterviewFlow)
	hasFlow := len(flow) > 0
	current := c.Status

	if policy == models.AdvanceManual {
		return Decision{Status: current}
	}

	if policy == models.AdvanceByDate && hasFlow {
		if shouldAdvanceByDate(c, date, location) {
			next := stage.NextInFlow(flow, current)
			if next == "" {
				next = current
			}
			return Decision{Status: next, Advanced: true}
		}
		if event != "" {
			return Decision{Status: stage.Snap(flow, event)}
		}
		return Decision{Status: current}
	}

	switch {
	case event != "" && hasFlow:
		return Decision{Status: stage.Snap(flow, event)}
	case event != "":
		return Decision{Status: stage.Canonicalize(event)}
	case hasFlow:
		next := stage.NextInFlow(flow, current)
		if next == "" {
			next = current
		}
		return Decision{Status: next, Advanced: true}
	default:
		return Decision{Status: current}
	}
}
