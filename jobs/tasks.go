package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/staydesk/staydesk/internal/reports"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportWarmup precomputes the common report periods so their records
	// sit in the record cache before users ask for them.
	TaskReportWarmup = "reports:warmup"
)

// DefaultWarmupPeriods are warmed when a payload names none.
var DefaultWarmupPeriods = []reports.Period{
	reports.PeriodToday,
	reports.PeriodLast7Days,
	reports.PeriodLast30Days,
	reports.PeriodThisMonth,
}

// ReportWarmupPayload selects what a warmup run covers.
type ReportWarmupPayload struct {
	Periods []string `json:"periods,omitempty"`
	// PerProperty warms each property individually in addition to the
	// all-properties scope.
	PerProperty bool `json:"perProperty"`
}

// NewReportWarmupTask constructs the warmup task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	for _, p := range payload.Periods {
		period, err := reports.ParsePeriod(p)
		if err != nil {
			return nil, err
		}
		if period == reports.PeriodCustom {
			return nil, fmt.Errorf("jobs: custom period cannot be warmed")
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}

func (p ReportWarmupPayload) periods() ([]reports.Period, error) {
	if len(p.Periods) == 0 {
		return DefaultWarmupPeriods, nil
	}
	out := make([]reports.Period, 0, len(p.Periods))
	for _, raw := range p.Periods {
		period, err := reports.ParsePeriod(raw)
		if err != nil {
			return nil, err
		}
		if period == reports.PeriodCustom {
			continue
		}
		out = append(out, period)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("jobs: no warmable periods in %v", p.Periods)
	}
	return out, nil
}
