package main

// Player tuning constants. Units are meters and seconds.
const (
	PlayerMaxHP      = 100
	PlayerBodyRadius = 0.45
	PlayerHeadRadius = 0.22

	StandSpeed = 4.2 // m/s
	SitSpeed   = 2.1
	CrawlSpeed = 1.0
	RunMult    = 1.6

	Gravity      = 24.0 // m/s^2
	JumpVelocity = 8.0  // m/s

	DashSpeed    = 12.0
	DashDuration = 0.25
	DashCooldown = 2.5

	// Lag compensation history window: 24 ticks = 1.2s at 20Hz
	HistoryTicks = 24
)

// Eye/body heights by posture: body sphere center and head sphere center
var bodyHeight = [3]float64{0.9, 0.55, 0.3}
var headHeight = [3]float64{1.62, 1.05, 0.45}

// posSnapshot is one entry in a player's position history ring,
// tagged with the server wall-clock time it was recorded at.
type posSnapshot struct {
	Pos     Vec3
	Posture int
	AtMs    int64
}

// PlayerSession is a player's authoritative in-room state. Owned
// exclusively by its Room; every field is guarded by the room mutex.
type PlayerSession struct {
	ID           string
	Name         string
	AuthPlayerID int64 // 0 = guest
	Team         int
	Seq          int // insertion order, used as the deterministic tie-break

	Pos      Vec3
	VelY     float64
	Yaw      float64
	Pitch    float64
	Posture  int
	AimState int
	Grounded bool

	Alive    bool
	HP       int
	MaxHP    int
	Kills    int
	Deaths   int
	Score    int
	RespawnT float64

	Weapon WeaponState

	DashT   float64 // remaining dash duration, 0 = not dashing
	DashCD  float64
	DashDir Vec3

	pending InputIntent // merged from the connection between ticks
	intent  InputIntent // snapshot consumed by the current tick

	// Fixed ring of recent positions for lag-compensated hit lookback
	history   [HistoryTicks]posSnapshot
	histHead  int
	histCount int
}

// NewPlayerSession creates a player at the given spawn position
func NewPlayerSession(id, name string, seq int, spawn Vec3) *PlayerSession {
	return &PlayerSession{
		ID:     id,
		Name:   name,
		Seq:    seq,
		Pos:    spawn,
		Alive:  true,
		HP:     PlayerMaxHP,
		MaxHP:  PlayerMaxHP,
		Weapon: NewWeaponState(DefaultWeaponID),
	}
}

// MergeInput folds a raw client input into the pending intent.
// Called with the room lock held.
func (p *PlayerSession) MergeInput(raw ClientInput) {
	p.pending.Merge(raw)
}

// SnapshotInput consumes the pending intent for this tick
func (p *PlayerSession) SnapshotInput() {
	p.intent = p.pending.Consume()
}

// Dashing reports whether the dash override is active
func (p *PlayerSession) Dashing() bool { return p.DashT > 0 }

// MoveState classifies the player's movement for the spread model
func (p *PlayerSession) MoveState() int {
	if !p.Grounded {
		return MoveAir
	}
	if p.intent.MoveX == 0 && p.intent.MoveZ == 0 && !p.Dashing() {
		return MoveIdle
	}
	if p.intent.Run || p.Dashing() {
		return MoveRun
	}
	return MoveWalk
}

// ApplyDamage reduces HP and returns true if the player died.
// Dead players take no further damage.
func (p *PlayerSession) ApplyDamage(dmg int) bool {
	if !p.Alive {
		return false
	}
	p.HP -= dmg
	if p.HP <= 0 {
		p.HP = 0
		p.Alive = false
		return true
	}
	return false
}

// Respawn resets the player at the given spawn position
func (p *PlayerSession) Respawn(spawn Vec3) {
	p.Pos = spawn
	p.VelY = 0
	p.HP = p.MaxHP
	p.Alive = true
	p.Grounded = true
	p.Posture = PostureStanding
	p.RespawnT = 0
	p.DashT = 0
	p.Weapon = NewWeaponState(p.Weapon.Spec.ID)
}

// RecordHistory pushes the current position into the lag-comp ring
func (p *PlayerSession) RecordHistory(nowMs int64) {
	p.history[p.histHead] = posSnapshot{Pos: p.Pos, Posture: p.Posture, AtMs: nowMs}
	p.histHead = (p.histHead + 1) % HistoryTicks
	if p.histCount < HistoryTicks {
		p.histCount++
	}
}

// HistoryAt returns the recorded snapshot closest to the given server
// time, falling back to the current state when the window is exceeded
// or no history exists yet.
func (p *PlayerSession) HistoryAt(atMs int64) posSnapshot {
	best := posSnapshot{Pos: p.Pos, Posture: p.Posture, AtMs: atMs}
	bestDiff := int64(-1)
	for i := 0; i < p.histCount; i++ {
		idx := (p.histHead - 1 - i + HistoryTicks*2) % HistoryTicks
		snap := p.history[idx]
		diff := snap.AtMs - atMs
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			best = snap
		}
	}
	return best
}

// ToState converts to the protocol state broadcast each tick
func (p *PlayerSession) ToState() PlayerState {
	return PlayerState{
		ID:       p.ID,
		Name:     p.Name,
		Team:     p.Team,
		Pos:      p.Pos,
		Yaw:      p.Yaw,
		Pitch:    p.Pitch,
		Posture:  p.Posture,
		Aim:      p.AimState,
		HP:       p.HP,
		MaxHP:    p.MaxHP,
		Alive:    p.Alive,
		Kills:    p.Kills,
		Deaths:   p.Deaths,
		Score:    p.Score,
		Weapon:   p.Weapon.Spec.ID,
		Magazine: p.Weapon.Magazine,
		Reserve:  p.Weapon.Reserve,
		Reload:   p.Weapon.Reloading,
		Recoil:   p.Weapon.Recoil,
		Dashing:  p.Dashing(),
		Grounded: p.Grounded,
	}
}
