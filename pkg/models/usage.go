package models

import "fmt"

// Service identifies a metered utility on the NEP usage API
type Service string

const (
	ServiceWater    Service = "WATER"
	ServiceElectric Service = "ELECTRIC"
)

// DefaultServices is the fixed collection order used when none is configured
var DefaultServices = []Service{ServiceWater, ServiceElectric}

// ParseService validates a service name from config or the command line
func ParseService(s string) (Service, error) {
	switch Service(s) {
	case ServiceWater, ServiceElectric:
		return Service(s), nil
	default:
		return "", fmt.Errorf("unknown service: %s (available: WATER, ELECTRIC)", s)
	}
}

// UsageSnapshot is the latest reading for one service at one premise
type UsageSnapshot struct {
	Service   Service `json:"service"`
	PremiseID string  `json:"premise_id"`
	Value     float64 `json:"value"`
}
