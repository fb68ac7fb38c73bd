package model

// HouseholdResult is the stored outcome for one household of a run.
type HouseholdResult struct {
	RunID                 string      `json:"run_id"`
	ID                    HouseholdID `json:"cpsid"`
	Weight                float64     `json:"weight"`
	PovertyPercent        float64     `json:"poverty_percent"`
	NSubunits             int         `json:"n_subunits"`
	Ambiguous             bool        `json:"ambiguous"`
	PartialResources      *float64    `json:"partial_resources,omitempty"`
	PartialPovertyPercent *float64    `json:"partial_poverty_percent,omitempty"`
}

// SubunitResult is the stored outcome for one subunit. The partial figures
// are set only for doubling-up households whose resources split cleanly.
type SubunitResult struct {
	ID               SubunitID            `json:"subunit"`
	Lines            []LineNo             `json:"lines"`
	Allocation       map[Resource]float64 `json:"allocation,omitempty"`
	PartialResources *float64             `json:"partial_resources,omitempty"`
	Threshold        *float64             `json:"threshold,omitempty"`
	PovertyPercent   *float64             `json:"poverty_percent,omitempty"`
}
