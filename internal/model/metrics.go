package model

import "math"

// FleetMetrics is the aggregate view computed on demand from current trips.
type FleetMetrics struct {
	Active         int `json:"active"`
	Completed      int `json:"completed"`
	Total          int `json:"total"`
	AvgProgress    int `json:"avg_progress"`
	TotalAlerts    int `json:"total_alerts"`
	ProgressOver50 int `json:"progress_over_50"`
	ProgressOver80 int `json:"progress_over_80"`
}

// ComputeFleetMetrics scans trips. Progress figures only consider trips that
// are in progress; avg_progress is 0 when none are.
func ComputeFleetMetrics(trips []Trip) FleetMetrics {
	m := FleetMetrics{Total: len(trips)}
	var sum float64
	for _, t := range trips {
		m.TotalAlerts += len(t.Alerts)
		switch t.Status {
		case StatusCompleted:
			m.Completed++
		case StatusInProgress:
			m.Active++
			sum += t.Progress
			if t.Progress >= 50 {
				m.ProgressOver50++
			}
			if t.Progress >= 80 {
				m.ProgressOver80++
			}
		}
	}
	if m.Active > 0 {
		m.AvgProgress = int(math.Round(sum / float64(m.Active)))
	}
	return m
}
