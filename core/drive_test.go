package core

import "testing"

func TestSimDriveRamps(t *testing.T) {
	d := NewSimDrive("d", 1000, 500)
	if !d.IsStopped() {
		t.Fatalf("new drive should be stopped")
	}
	d.Accelerate()
	if d.IsStopped() {
		t.Fatalf("accelerating drive reports stopped")
	}
	d.Update(1)
	if got := d.CurrentSpeed(); got != 500 {
		t.Fatalf("speed after 1s = %v, want 500", got)
	}
	d.Update(5)
	if got := d.CurrentSpeed(); got != 1000 || !d.IsAtTargetSpeed() {
		t.Fatalf("speed = %v at target = %v, want 1000/true", got, d.IsAtTargetSpeed())
	}

	d.Decelerate()
	if d.IsAtTargetSpeed() {
		t.Fatalf("decelerating drive reports at target")
	}
	d.Update(1)
	if got := d.CurrentSpeed(); got != 500 {
		t.Fatalf("speed after 1s braking = %v, want 500", got)
	}
	d.Update(1)
	if !d.IsStopped() {
		t.Fatalf("drive not stopped, speed %v", d.CurrentSpeed())
	}
}

func TestSimDriveInstant(t *testing.T) {
	d := NewRunningDrive("d", 800)
	if d.CurrentSpeed() != 800 || !d.IsAtTargetSpeed() {
		t.Fatalf("running drive at %v", d.CurrentSpeed())
	}
	d.SetSpeedOverride(0.5)
	if d.CurrentSpeed() != 400 {
		t.Fatalf("override speed = %v, want 400", d.CurrentSpeed())
	}
	d.Decelerate()
	if !d.IsStopped() {
		t.Fatalf("instant drive did not stop")
	}
	d.Accelerate()
	d.Stop()
	if !d.IsStopped() || d.CurrentSpeed() != 0 {
		t.Fatalf("Stop left speed %v", d.CurrentSpeed())
	}
}
