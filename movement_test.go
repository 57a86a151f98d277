package main

import (
	"math"
	"testing"
)

func newGroundedPlayer() *PlayerSession {
	p := NewPlayerSession("p1", "Tester", 0, Vec3{})
	p.Grounded = true
	return p
}

func TestGroundClamp(t *testing.T) {
	p := newGroundedPlayer()
	p.Pos.Y = 0.1
	p.Grounded = false
	p.VelY = -5
	StepMovement(p, TickDT)
	if p.Pos.Y != 0 || !p.Grounded || p.VelY != 0 {
		t.Errorf("falling player should clamp to the ground: y=%f grounded=%v vely=%f",
			p.Pos.Y, p.Grounded, p.VelY)
	}
}

func TestJumpOnlyWhenGrounded(t *testing.T) {
	p := newGroundedPlayer()
	p.MergeInput(ClientInput{Jump: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if p.Grounded {
		t.Fatal("jump should leave the ground")
	}
	velAfterJump := p.VelY
	if velAfterJump >= JumpVelocity {
		t.Errorf("gravity should apply within the jump tick, vely=%f", velAfterJump)
	}
	// Airborne jump request must not reset vertical velocity
	p.MergeInput(ClientInput{Jump: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if p.VelY >= velAfterJump {
		t.Errorf("airborne jump should be ignored, vely went %f -> %f", velAfterJump, p.VelY)
	}
}

func TestJumpBlockedWhileSitting(t *testing.T) {
	p := newGroundedPlayer()
	p.Posture = PostureSitting
	p.MergeInput(ClientInput{Jump: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if !p.Grounded {
		t.Error("sitting player should not jump")
	}
}

func TestPostureToggles(t *testing.T) {
	p := newGroundedPlayer()
	p.MergeInput(ClientInput{SitT: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if p.Posture != PostureSitting {
		t.Fatalf("sit toggle should sit, got posture %d", p.Posture)
	}
	p.MergeInput(ClientInput{SitT: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if p.Posture != PostureStanding {
		t.Errorf("second sit toggle should stand, got posture %d", p.Posture)
	}
	p.MergeInput(ClientInput{CrawlT: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if p.Posture != PostureCrawling {
		t.Errorf("crawl toggle should crawl, got posture %d", p.Posture)
	}
}

func TestPostureToggleIgnoredMidAir(t *testing.T) {
	p := newGroundedPlayer()
	p.Grounded = false
	p.Pos.Y = 2
	p.MergeInput(ClientInput{SitT: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if p.Posture != PostureStanding {
		t.Errorf("airborne posture toggle should be ignored, got %d", p.Posture)
	}
}

func TestRunSpeed(t *testing.T) {
	p := newGroundedPlayer()
	p.MergeInput(ClientInput{MoveZ: 1, Run: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	want := StandSpeed * RunMult * TickDT
	if !approx(p.Pos.Z, want, 1e-9) {
		t.Errorf("run forward at yaw 0 should move %f along +Z, got %f", want, p.Pos.Z)
	}
}

func TestCrawlSpeedAndNoRun(t *testing.T) {
	p := newGroundedPlayer()
	p.Posture = PostureCrawling
	p.MergeInput(ClientInput{MoveZ: 1, Run: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	want := CrawlSpeed * TickDT
	if !approx(p.Pos.Z, want, 1e-9) {
		t.Errorf("run should not apply while crawling, want %f got %f", want, p.Pos.Z)
	}
}

func TestDiagonalInputNormalized(t *testing.T) {
	p := newGroundedPlayer()
	p.MergeInput(ClientInput{MoveX: 1, MoveZ: 1})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	dist := math.Hypot(p.Pos.X, p.Pos.Z)
	want := StandSpeed * TickDT
	if !approx(dist, want, 1e-9) {
		t.Errorf("diagonal input should be normalized, moved %f want %f", dist, want)
	}
}

func TestDashCaptureAndCooldown(t *testing.T) {
	p := newGroundedPlayer()
	p.MergeInput(ClientInput{MoveX: 1, Dash: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if !p.Dashing() {
		t.Fatal("dash should start")
	}
	if !approx(p.DashDir.X, 1, 1e-9) {
		t.Errorf("dash should capture the input direction, got %+v", p.DashDir)
	}
	moved := p.Pos.X
	if !approx(moved, DashSpeed*TickDT, 1e-9) {
		t.Errorf("dash should move at DashSpeed, got %f", moved)
	}
	// Turning mid-dash must not steer it
	p.MergeInput(ClientInput{MoveZ: -1})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if p.Pos.Z < -1e-9 {
		t.Errorf("mid-dash input should not steer, z=%f", p.Pos.Z)
	}
	// Exhaust the dash, then try again inside the cooldown
	for i := 0; i < 10; i++ {
		p.SnapshotInput()
		StepMovement(p, TickDT)
	}
	if p.Dashing() {
		t.Fatal("dash should have ended")
	}
	p.MergeInput(ClientInput{Dash: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if p.Dashing() {
		t.Error("dash inside the cooldown should be refused")
	}
}

func TestDashIdleUsesFacing(t *testing.T) {
	p := newGroundedPlayer()
	p.MergeInput(ClientInput{Dash: true, Yaw: math.Pi / 2})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if !p.Dashing() || !approx(p.DashDir.X, 1, 1e-9) {
		t.Errorf("idle dash should use facing direction, got %+v", p.DashDir)
	}
}

func TestDeadPlayerDoesNotMove(t *testing.T) {
	p := newGroundedPlayer()
	p.Alive = false
	p.MergeInput(ClientInput{MoveZ: 1, Jump: true})
	p.SnapshotInput()
	StepMovement(p, TickDT)
	if p.Pos.Z != 0 {
		t.Errorf("dead player should not move, z=%f", p.Pos.Z)
	}
}

func TestClampToWorld(t *testing.T) {
	p := newGroundedPlayer()
	p.Pos = Vec3{X: 500, Z: -500}
	clampToWorld(p, GeomHalfSize)
	if p.Pos.X != GeomHalfSize || p.Pos.Z != -GeomHalfSize {
		t.Errorf("player should clamp to world extent, got %+v", p.Pos)
	}
}

func TestInputMergeAndConsume(t *testing.T) {
	var in InputIntent
	in.Merge(ClientInput{MoveX: 5, Jump: true, Fire: true, FireTime: 1234})
	if in.MoveX != 1 {
		t.Errorf("axes should clamp to [-1,1], got %f", in.MoveX)
	}
	in.Merge(ClientInput{MoveX: 0.5})
	if !in.Jump || !in.Fire || in.FireTime != 1234 {
		t.Error("edge flags should survive a later merge")
	}
	out := in.Consume()
	if !out.Jump || !out.Fire {
		t.Error("consume should return the accumulated flags")
	}
	if in.Jump || in.Fire {
		t.Error("consume should clear the edge flags")
	}
	if in.MoveX != 0.5 {
		t.Error("consume should keep the continuous channels")
	}
}
