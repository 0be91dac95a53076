// Package metrics exposes Prometheus counters for the tracker's core
// operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmailsParsed counts extractor invocations through the API.
	EmailsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shukatsu_emails_parsed_total",
		Help: "Number of email texts run through the field extractor.",
	})

	// AppliesTotal counts parsed-email applications by resulting action.
	AppliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shukatsu_email_applies_total",
		Help: "Number of parsed-email reconciliations by action.",
	}, []string{"action"})

	// StageAdvances counts pipeline advances triggered by new event dates.
	StageAdvances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shukatsu_stage_advances_total",
		Help: "Number of automatic pipeline stage advances.",
	})
)
