package main

// StepMovement advances one player by one tick. All legality checks are
// server-side; client input that violates them is silently ignored so
// nothing about the thresholds leaks back to the sender.
func StepMovement(p *PlayerSession, dt float64) {
	in := p.intent

	p.Yaw = in.Yaw
	p.Pitch = in.Pitch
	p.AimState = in.AimState

	if !p.Alive {
		return
	}

	// Timed override re-arm
	if p.DashCD > 0 {
		p.DashCD -= dt
	}

	// Posture toggles: grounded only, never mid-dash
	if p.Grounded && !p.Dashing() {
		if in.SitT {
			if p.Posture == PostureSitting {
				p.Posture = PostureStanding
			} else {
				p.Posture = PostureSitting
			}
		}
		if in.CrawlT {
			if p.Posture == PostureCrawling {
				p.Posture = PostureStanding
			} else {
				p.Posture = PostureCrawling
			}
		}
	}

	// Dash: standing and grounded, off cooldown. Captures the current
	// input direction (or facing when idle) for its whole duration.
	if in.Dash && p.Grounded && p.Posture == PostureStanding && !p.Dashing() && p.DashCD <= 0 {
		dir := RotateYaw(Vec3{X: in.MoveX, Z: in.MoveZ}, p.Yaw)
		if dir.LengthSq() == 0 {
			dir = YawPitchDir(p.Yaw, 0)
		}
		p.DashT = DashDuration
		p.DashCD = DashCooldown
		p.DashDir = dir.Normalize()
	}

	// Jump: grounded, standing, not mid-dash
	if in.Jump && p.Grounded && p.Posture == PostureStanding && !p.Dashing() {
		p.VelY = JumpVelocity
		p.Grounded = false
	}

	var horiz Vec3
	if p.Dashing() {
		p.DashT -= dt
		horiz = p.DashDir.Scale(DashSpeed)
	} else {
		speed := baseSpeed(p.Posture)
		if in.Run && p.Posture == PostureStanding {
			speed *= RunMult
		}
		local := Vec3{X: in.MoveX, Z: in.MoveZ}
		if l := local.Length(); l > 1 {
			local = local.Scale(1 / l)
		}
		horiz = RotateYaw(local, p.Yaw).Scale(speed)
	}

	// Vertical integration with ground clamp at y=0
	p.VelY -= Gravity * dt
	p.Pos.X += horiz.X * dt
	p.Pos.Z += horiz.Z * dt
	p.Pos.Y += p.VelY * dt
	if p.Pos.Y <= 0 {
		p.Pos.Y = 0
		p.VelY = 0
		p.Grounded = true
	}

	// Reload request is legal whenever the weapon accepts it
	if in.Reload {
		p.Weapon.BeginReload()
	}
	p.Weapon.Update(dt)
}

func baseSpeed(posture int) float64 {
	switch posture {
	case PostureSitting:
		return SitSpeed
	case PostureCrawling:
		return CrawlSpeed
	default:
		return StandSpeed
	}
}

// clampToWorld keeps a player inside the playable extent
func clampToWorld(p *PlayerSession, half float64) {
	p.Pos.X = Clamp(p.Pos.X, -half, half)
	p.Pos.Z = Clamp(p.Pos.Z, -half, half)
}
