package domain

import "time"

// CycleSummary resume un batch de ticks procesado por el engine.
type CycleSummary struct {
	At         time.Time
	Ticks      int
	Signals    int
	Actionable int
	Opened     int
	Closed     int
	Ambiguous  int
	Denied     map[DenyReason]int
	Balance    float64
}
