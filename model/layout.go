package model

// Point is a position or vector in world space, in metres. Y is up.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SegmentKind selects the segment geometry.
type SegmentKind string

const (
	SegmentLine  SegmentKind = "line"
	SegmentCurve SegmentKind = "curve"
)

// Layout is an authored transport network: drives, segments and what runs
// on them.
type Layout struct {
	Name string `json:"name"`

	// SnapTolerance enables proximity snapping of coincident anchors when > 0.
	SnapTolerance float64 `json:"snap_tolerance,omitempty"`

	Drives    []DriveDefinition    `json:"drives"`
	Segments  []SegmentDefinition  `json:"segments"`
	Chains    []ChainDefinition    `json:"chains,omitempty"`
	Stations  []StationDefinition  `json:"stations,omitempty"`
	Movers    []MoverDefinition    `json:"movers,omitempty"`
	Junctions []JunctionDefinition `json:"junctions,omitempty"`
}

// DriveDefinition describes a speed source. Speeds are in mm/s.
type DriveDefinition struct {
	ID           string  `json:"id"`
	Speed        float64 `json:"speed"`
	Acceleration float64 `json:"acceleration,omitempty"`
	Reverse      bool    `json:"reverse,omitempty"`
	Running      *bool   `json:"running,omitempty"` // defaults to true
}

// SegmentDefinition describes one path segment.
type SegmentDefinition struct {
	ID        string      `json:"id"`
	Kind      SegmentKind `json:"kind"`
	Drive     string      `json:"drive,omitempty"`
	Thickness float64     `json:"thickness,omitempty"`

	// AttachTo places the segment after another; otherwise Origin and
	// Heading (degrees about the vertical axis) place it.
	AttachTo string  `json:"attach_to,omitempty"`
	Origin   Point   `json:"origin"`
	Heading  float64 `json:"heading,omitempty"`

	// Line
	Length float64 `json:"length,omitempty"`

	// Curve
	Radius     float64 `json:"radius,omitempty"`
	StartAngle float64 `json:"start_angle,omitempty"`
	Degrees    float64 `json:"degrees,omitempty"`
	Clockwise  *bool   `json:"clockwise,omitempty"` // defaults to true

	// Successors are snapped explicitly in addition to AttachTo.
	Successors []string `json:"successors,omitempty"`
	Strategy   string   `json:"strategy,omitempty"` // round_robin | random | prefer:<id>,<id>
}

// ChainDefinition describes a closed loop with carriers on it.
type ChainDefinition struct {
	ID       string    `json:"id"`
	Start    string    `json:"start"`
	Drive    string    `json:"drive,omitempty"`
	Carriers []float64 `json:"carriers,omitempty"` // normalized offsets
}

// StationKind selects the station hooks.
type StationKind string

const (
	StationHold    StationKind = "hold" // occupant stays until released
	StationGate    StationKind = "gate"
	StationProcess StationKind = "process"
)

// StationDefinition describes a station zone.
type StationDefinition struct {
	ID            string      `json:"id"`
	Kind          StationKind `json:"kind"`
	Center        Point       `json:"center"`
	Dimensions    Point       `json:"dimensions"`
	WorkTime      float64     `json:"work_time,omitempty"` // seconds, process stations
	LimitToOnPath bool        `json:"limit_to_on_path,omitempty"`
}

// MoverDefinition describes a mover and where it starts.
type MoverDefinition struct {
	ID        string   `json:"id,omitempty"` // generated when empty
	Segment   string   `json:"segment"`
	Offset    float64  `json:"offset,omitempty"`
	Drive     string   `json:"drive,omitempty"` // own drive
	LeavePath *bool    `json:"leave_path,omitempty"`
	Prefer    []string `json:"prefer,omitempty"`
}

// JunctionDefinition guards a set of segments so only one mover at a time
// is inside. The lock is applied to the entry segments' strategies.
type JunctionDefinition struct {
	ID       string   `json:"id"`
	Segments []string `json:"segments"`
	Entries  []string `json:"entries"`
}
