package main

import "math"

// Aim states. Toggle gives the tightest spread; hold is a temporary aim
// while the button is pressed. The server trusts only the resulting
// discrete state, never press timing.
const (
	AimNone   = 0
	AimHold   = 1
	AimToggle = 2
)

// Postures
const (
	PostureStanding = 0
	PostureSitting  = 1
	PostureCrawling = 2
)

// Movement states feeding the additive spread term
const (
	MoveIdle = 0
	MoveWalk = 1
	MoveRun  = 2
	MoveAir  = 3
)

// Spread multipliers by aim state
var aimSpreadMult = [3]float64{1.0, 0.55, 0.3}

// Spread multipliers by posture (crawling tightest)
var postureSpreadMult = [3]float64{1.0, 0.75, 0.5}

// Additive spread per movement state, degrees
var moveSpreadAdd = [4]float64{0, 0.5, 1.2, 2.0}

// Recoil scale by aim state and posture
var aimRecoilMult = [3]float64{1.0, 0.7, 0.5}
var postureRecoilMult = [3]float64{1.0, 0.8, 0.6}

// WeaponSpec describes a weapon's fixed parameters
type WeaponSpec struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	BaseDamage    int     `json:"damage"`
	HeadshotMult  float64 `json:"headshotMult"`
	FireInterval  float64 `json:"fireInterval"` // seconds between shots
	ReloadTime    float64 `json:"reloadTime"`   // seconds
	MagazineSize  int     `json:"magazineSize"`
	ReserveAmmo   int     `json:"reserveAmmo"` // starting reserve
	Range         float64 `json:"range"`       // max ray travel, meters
	Pellets       int     `json:"pellets"`     // rays per shot (shotgun > 1)
	BaseSpreadDeg float64 `json:"baseSpread"`  // cone half-angle, degrees
	SpreadPerShot float64 `json:"spreadPerShot"`
	SpreadDecay   float64 `json:"spreadDecay"` // degrees/s while not firing
	SpreadMax     float64 `json:"spreadMax"`
	RecoilPerShot float64 `json:"recoilPerShot"` // pitch degrees
	RecoilMax     float64 `json:"recoilMax"`
	RecoilDecay   float64 `json:"recoilDecay"` // degrees/s
}

// WeaponCatalog is the full list of equippable weapons
var WeaponCatalog = []WeaponSpec{
	{ID: "rifle", Name: "Assault Rifle", BaseDamage: 24, HeadshotMult: 2.0,
		FireInterval: 0.1, ReloadTime: 2.2, MagazineSize: 30, ReserveAmmo: 90,
		Range: 120, Pellets: 1, BaseSpreadDeg: 1.5, SpreadPerShot: 0.25,
		SpreadDecay: 4.0, SpreadMax: 4.0, RecoilPerShot: 0.6, RecoilMax: 6.0,
		RecoilDecay: 8.0},
	{ID: "pistol", Name: "Pistol", BaseDamage: 18, HeadshotMult: 2.0,
		FireInterval: 0.25, ReloadTime: 1.4, MagazineSize: 12, ReserveAmmo: 48,
		Range: 60, Pellets: 1, BaseSpreadDeg: 1.0, SpreadPerShot: 0.3,
		SpreadDecay: 5.0, SpreadMax: 3.0, RecoilPerShot: 0.8, RecoilMax: 5.0,
		RecoilDecay: 10.0},
	{ID: "shotgun", Name: "Shotgun", BaseDamage: 9, HeadshotMult: 1.5,
		FireInterval: 0.8, ReloadTime: 2.8, MagazineSize: 6, ReserveAmmo: 24,
		Range: 30, Pellets: 8, BaseSpreadDeg: 4.0, SpreadPerShot: 0.5,
		SpreadDecay: 3.0, SpreadMax: 7.0, RecoilPerShot: 2.5, RecoilMax: 8.0,
		RecoilDecay: 6.0},
	{ID: "smg", Name: "SMG", BaseDamage: 16, HeadshotMult: 1.8,
		FireInterval: 0.07, ReloadTime: 1.8, MagazineSize: 35, ReserveAmmo: 105,
		Range: 70, Pellets: 1, BaseSpreadDeg: 2.0, SpreadPerShot: 0.2,
		SpreadDecay: 5.0, SpreadMax: 5.0, RecoilPerShot: 0.4, RecoilMax: 5.0,
		RecoilDecay: 9.0},
	{ID: "sniper", Name: "Sniper Rifle", BaseDamage: 80, HeadshotMult: 2.5,
		FireInterval: 1.4, ReloadTime: 3.2, MagazineSize: 5, ReserveAmmo: 20,
		Range: 300, Pellets: 1, BaseSpreadDeg: 0.8, SpreadPerShot: 1.0,
		SpreadDecay: 2.0, SpreadMax: 3.0, RecoilPerShot: 4.0, RecoilMax: 10.0,
		RecoilDecay: 5.0},
}

// WeaponCatalogMap provides O(1) lookup by weapon ID
var WeaponCatalogMap map[string]*WeaponSpec

func init() {
	WeaponCatalogMap = make(map[string]*WeaponSpec, len(WeaponCatalog))
	for i := range WeaponCatalog {
		WeaponCatalogMap[WeaponCatalog[i].ID] = &WeaponCatalog[i]
	}
}

// DefaultWeaponID is equipped when a player joins or a config names
// an unknown weapon
const DefaultWeaponID = "rifle"

// WeaponState is the per-player mutable state of an equipped weapon
type WeaponState struct {
	Spec        *WeaponSpec
	Magazine    int
	Reserve     int
	FireCD      float64 // seconds until the next shot is legal
	Reloading   bool
	ReloadT     float64 // reload time remaining
	AccumSpread float64 // degrees, grows per shot, linear decay
	Recoil      float64 // pitch degrees, advisory only
}

// NewWeaponState returns a fully loaded weapon
func NewWeaponState(id string) WeaponState {
	spec, ok := WeaponCatalogMap[id]
	if !ok {
		spec = WeaponCatalogMap[DefaultWeaponID]
	}
	return WeaponState{
		Spec:     spec,
		Magazine: spec.MagazineSize,
		Reserve:  spec.ReserveAmmo,
	}
}

// Update advances cooldowns and decays spread/recoil. Called once per tick.
func (w *WeaponState) Update(dt float64) {
	if w.FireCD > 0 {
		w.FireCD -= dt
	}
	if w.Reloading {
		w.ReloadT -= dt
		if w.ReloadT <= 0 {
			w.finishReload()
		}
	}
	// Linear decay while not firing; OnShot resets nothing, firing
	// simply outpaces the decay
	w.AccumSpread = math.Max(0, w.AccumSpread-w.Spec.SpreadDecay*dt)
	w.Recoil = math.Max(0, w.Recoil-w.Spec.RecoilDecay*dt)
}

// CanFire reports whether a shot is legal right now
func (w *WeaponState) CanFire() bool {
	return !w.Reloading && w.FireCD <= 0 && w.Magazine > 0
}

// OnShot consumes one round and applies per-shot spread/recoil growth.
// aim and posture scale the recoil increment.
func (w *WeaponState) OnShot(aim, posture int) {
	w.Magazine--
	w.FireCD = w.Spec.FireInterval
	w.AccumSpread = math.Min(w.Spec.SpreadMax, w.AccumSpread+w.Spec.SpreadPerShot)
	inc := w.Spec.RecoilPerShot * aimRecoilMult[aim] * postureRecoilMult[posture]
	w.Recoil = math.Min(w.Spec.RecoilMax, w.Recoil+inc)
}

// BeginReload starts a reload if one is useful and legal
func (w *WeaponState) BeginReload() bool {
	if w.Reloading || w.Reserve <= 0 || w.Magazine >= w.Spec.MagazineSize {
		return false
	}
	w.Reloading = true
	w.ReloadT = w.Spec.ReloadTime
	return true
}

func (w *WeaponState) finishReload() {
	w.Reloading = false
	w.ReloadT = 0
	need := w.Spec.MagazineSize - w.Magazine
	if need > w.Reserve {
		need = w.Reserve
	}
	w.Magazine += need
	w.Reserve -= need
}

// EffectiveSpreadDeg computes the cone half-angle for the next shot:
// base x aim x posture + movement additive + accumulated fire term.
func (w *WeaponState) EffectiveSpreadDeg(aim, posture, moveState int) float64 {
	return w.Spec.BaseSpreadDeg*aimSpreadMult[aim]*postureSpreadMult[posture] +
		moveSpreadAdd[moveState] + w.AccumSpread
}
