package nep

import (
	"time"

	"github.com/jgoulah/gridexporter/pkg/models"
)

const (
	// DefaultHistoryDays is how far back the usage window starts
	DefaultHistoryDays = 200
	// FrequencyMonthly asks the usage endpoint for monthly buckets
	FrequencyMonthly = "M"

	dateLayout = "2006-01-02"
)

// UsageQuery is the request body of the usage endpoint
type UsageQuery struct {
	Admin     bool           `json:"admin"`
	StartDate string         `json:"startDate"`
	EndDate   string         `json:"endDate"`
	Frequency string         `json:"frequency"`
	PremiseID string         `json:"premiseId"`
	Service   models.Service `json:"service"`
}

// DateWindow is the YYYY-MM-DD range shared by every query of one collection
type DateWindow struct {
	Start string
	End   string
}

// NewDateWindow returns the window ending tomorrow and starting historyDays
// before today, both at day granularity in now's location
func NewDateWindow(now time.Time, historyDays int) DateWindow {
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}
	return DateWindow{
		Start: now.AddDate(0, 0, -historyDays).Format(dateLayout),
		End:   now.AddDate(0, 0, 1).Format(dateLayout),
	}
}

// Query builds the usage request for one service at one premise
func (w DateWindow) Query(service models.Service, premiseID, frequency string) UsageQuery {
	if frequency == "" {
		frequency = FrequencyMonthly
	}
	return UsageQuery{
		Admin:     false,
		StartDate: w.Start,
		EndDate:   w.End,
		Frequency: frequency,
		PremiseID: premiseID,
		Service:   service,
	}
}
