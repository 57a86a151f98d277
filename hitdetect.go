package main

import "math"

// HitRequest is one ray to resolve, consumed within the tick that
// validates it.
type HitRequest struct {
	ShooterID  string
	Origin     Vec3
	Dir        Vec3 // normalized
	Weapon     *WeaponSpec
	ClientTime int64 // ms, selects the lag-comp history snapshot
}

// HitResult is the outcome of one resolved ray
type HitResult struct {
	Hit      bool
	TargetID string
	Damage   int
	Headshot bool
	Impact   Vec3
}

// SampleConeDir perturbs dir within a cone of the given half-angle.
// Sampling is uniform over the disk the cone subtends at unit distance,
// not over the spherical cap; the result is slightly center-biased by
// area but matches the reference ballistics.
func SampleConeDir(dir Vec3, halfAngleRad float64) Vec3 {
	if halfAngleRad <= 0 {
		return dir
	}
	u, v := OrthoBasis(dir)
	maxR := math.Tan(halfAngleRad)
	r := maxR * math.Sqrt(randFloat())
	theta := 2 * math.Pi * randFloat()
	offset := u.Scale(r * math.Cos(theta)).Add(v.Scale(r * math.Sin(theta)))
	return dir.Add(offset).Normalize()
}

// ResolveHit casts one ray against static geometry and every living
// player except the shooter. The closest static hit caps the ray's
// travel; the nearest qualifying player intersection inside that range
// wins. Ties are broken by player insertion order, which is
// deterministic and arbitrary. players must be in insertion order.
func ResolveHit(geom *GeometryIndex, players []*PlayerSession, req HitRequest) HitResult {
	maxDist := req.Weapon.Range
	if t, ok := geom.RaycastStatic(req.Origin, req.Dir, maxDist); ok {
		maxDist = t
	}

	best := HitResult{}
	bestT := maxDist
	for _, p := range players {
		if p.ID == req.ShooterID || !p.Alive {
			continue
		}
		snap := p.HistoryAt(req.ClientTime)

		// Head checked first so an overlapping body sphere cannot mask
		// a closer head hit at the same distance
		head := snap.Pos
		head.Y += headHeight[snap.Posture]
		if t, ok := RaySphere(req.Origin, req.Dir, head, PlayerHeadRadius); ok && t < bestT {
			bestT = t
			best = HitResult{
				Hit:      true,
				TargetID: p.ID,
				Damage:   int(math.Round(float64(req.Weapon.BaseDamage) * req.Weapon.HeadshotMult)),
				Headshot: true,
				Impact:   req.Origin.Add(req.Dir.Scale(t)),
			}
			continue
		}

		body := snap.Pos
		body.Y += bodyHeight[snap.Posture]
		if t, ok := RaySphere(req.Origin, req.Dir, body, PlayerBodyRadius); ok && t < bestT {
			bestT = t
			best = HitResult{
				Hit:      true,
				TargetID: p.ID,
				Damage:   req.Weapon.BaseDamage,
				Impact:   req.Origin.Add(req.Dir.Scale(t)),
			}
		}
	}
	return best
}

// FireWeapon validates fire legality, spends a round and resolves every
// pellet of the shot. Returns nil when the shot was not legal (cooldown,
// reload, empty magazine) — the caller drops it silently.
func FireWeapon(p *PlayerSession, geom *GeometryIndex, players []*PlayerSession, clientTime int64) []HitResult {
	if !p.Alive || !p.Weapon.CanFire() {
		return nil
	}
	spreadDeg := p.Weapon.EffectiveSpreadDeg(p.AimState, p.Posture, p.MoveState())
	p.Weapon.OnShot(p.AimState, p.Posture)

	origin := p.Pos
	origin.Y += headHeight[p.Posture] // muzzle at eye height
	aimDir := YawPitchDir(p.Yaw, p.Pitch)
	halfAngle := spreadDeg * math.Pi / 180

	results := make([]HitResult, 0, p.Weapon.Spec.Pellets)
	for i := 0; i < p.Weapon.Spec.Pellets; i++ {
		dir := SampleConeDir(aimDir, halfAngle)
		req := HitRequest{
			ShooterID:  p.ID,
			Origin:     origin,
			Dir:        dir,
			Weapon:     p.Weapon.Spec,
			ClientTime: clientTime,
		}
		results = append(results, ResolveHit(geom, players, req))
	}
	return results
}
