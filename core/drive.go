package core

import "math"

// Updater is implemented by collaborators that evolve once per tick.
type Updater interface {
	Update(dt float64)
}

// SimDrive is a simple ramped speed source. Speeds are in mm/s and the
// acceleration in mm/s²; an acceleration of 0 changes speed instantly.
type SimDrive struct {
	id           string
	targetSpeed  float64
	acceleration float64
	reverse      bool
	override     float64

	current      float64
	accelerating bool
	decelerating bool
}

// NewSimDrive returns a stopped drive.
func NewSimDrive(id string, targetSpeed, acceleration float64) *SimDrive {
	return &SimDrive{
		id:           id,
		targetSpeed:  math.Abs(targetSpeed),
		acceleration: math.Abs(acceleration),
		override:     1,
	}
}

// NewRunningDrive returns a drive already at its target speed.
func NewRunningDrive(id string, targetSpeed float64) *SimDrive {
	d := NewSimDrive(id, targetSpeed, 0)
	d.Accelerate()
	return d
}

func (d *SimDrive) ID() string { return d.id }

func (d *SimDrive) CurrentSpeed() float64 { return d.current }

func (d *SimDrive) Reverse() bool { return d.reverse }

// SetReverse flips the travel direction of everything the drive moves.
func (d *SimDrive) SetReverse(r bool) { d.reverse = r }

func (d *SimDrive) TargetSpeed() float64 { return d.targetSpeed }

// SetTargetSpeed changes the speed the drive ramps towards.
func (d *SimDrive) SetTargetSpeed(s float64) {
	d.targetSpeed = math.Abs(s)
	if d.acceleration == 0 && d.accelerating {
		d.current = d.target()
	}
}

// SetSpeedOverride scales the target speed, e.g. 0.5 for half speed.
func (d *SimDrive) SetSpeedOverride(f float64) {
	if f < 0 {
		f = 0
	}
	d.override = f
	if d.acceleration == 0 && d.accelerating {
		d.current = d.target()
	}
}

func (d *SimDrive) target() float64 { return d.targetSpeed * d.override }

// Accelerate starts ramping up to the target speed.
func (d *SimDrive) Accelerate() {
	d.accelerating = true
	d.decelerating = false
	if d.acceleration == 0 {
		d.current = d.target()
	}
}

// Decelerate starts ramping down to a standstill.
func (d *SimDrive) Decelerate() {
	d.accelerating = false
	d.decelerating = true
	if d.acceleration == 0 {
		d.current = 0
		d.decelerating = false
	}
}

// Stop halts the drive immediately.
func (d *SimDrive) Stop() {
	d.current = 0
	d.accelerating = false
	d.decelerating = false
}

func (d *SimDrive) IsStopped() bool {
	return d.current == 0 && !d.accelerating
}

func (d *SimDrive) IsAtTargetSpeed() bool {
	return d.accelerating && d.current == d.target()
}

// Update advances the speed ramp by dt seconds.
func (d *SimDrive) Update(dt float64) {
	switch {
	case d.accelerating:
		if d.acceleration == 0 {
			d.current = d.target()
			return
		}
		d.current = math.Min(d.current+d.acceleration*dt, d.target())
	case d.decelerating:
		if d.acceleration == 0 {
			d.current = 0
		} else {
			d.current = math.Max(d.current-d.acceleration*dt, 0)
		}
		if d.current == 0 {
			d.decelerating = false
		}
	}
}
