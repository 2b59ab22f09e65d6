package model

// MoverSnapshot is the observable state of a mover after a tick.
type MoverSnapshot struct {
	ID        string  `json:"id"`
	Segment   string  `json:"segment,omitempty"`
	Offset    float64 `json:"offset"`
	Position  Point   `json:"position"`
	Speed     float64 `json:"speed"` // mm/s, signed
	State     string  `json:"state"`
	Blocked   bool    `json:"blocked,omitempty"`
	AtPathEnd bool    `json:"at_path_end,omitempty"`
	Station   string  `json:"station,omitempty"`
}

// StationSnapshot is the observable state of a station after a tick.
type StationSnapshot struct {
	ID        string   `json:"id"`
	Occupant  string   `json:"occupant,omitempty"`
	Waiting   []string `json:"waiting,omitempty"`
	MovingIn  []string `json:"moving_in,omitempty"`
	MovingOut []string `json:"moving_out,omitempty"`
}

// CarrierSnapshot is the observable state of a chain carrier.
type CarrierSnapshot struct {
	ID       string  `json:"id"`
	Chain    string  `json:"chain"`
	Offset   float64 `json:"offset"`
	Position Point   `json:"position"`
}

// Snapshot is the full observable state after one tick.
type Snapshot struct {
	Tick     int               `json:"tick"`
	Time     float64           `json:"time"` // simulated seconds
	Movers   []MoverSnapshot   `json:"movers"`
	Stations []StationSnapshot `json:"stations,omitempty"`
	Carriers []CarrierSnapshot `json:"carriers,omitempty"`
}
