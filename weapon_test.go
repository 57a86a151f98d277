package main

import "testing"

func TestNewWeaponStateUnknownFallsBack(t *testing.T) {
	w := NewWeaponState("nonexistent")
	if w.Spec.ID != DefaultWeaponID {
		t.Errorf("unknown weapon should fall back to %q, got %q", DefaultWeaponID, w.Spec.ID)
	}
	if w.Magazine != w.Spec.MagazineSize || w.Reserve != w.Spec.ReserveAmmo {
		t.Errorf("weapon should start fully loaded: mag %d reserve %d", w.Magazine, w.Reserve)
	}
}

func TestEffectiveSpreadAimedStanding(t *testing.T) {
	w := NewWeaponState("rifle")
	// 1.5 * 0.3 * 1.0, no movement, no accumulation
	got := w.EffectiveSpreadDeg(AimToggle, PostureStanding, MoveIdle)
	if !approx(got, 0.45, 1e-9) {
		t.Errorf("expected 0.45 degrees, got %f", got)
	}
}

func TestEffectiveSpreadTerms(t *testing.T) {
	w := NewWeaponState("rifle")
	hip := w.EffectiveSpreadDeg(AimNone, PostureStanding, MoveIdle)
	if !approx(hip, 1.5, 1e-9) {
		t.Errorf("hip-fire standing idle should equal base spread, got %f", hip)
	}
	running := w.EffectiveSpreadDeg(AimNone, PostureStanding, MoveRun)
	if !approx(running, 2.7, 1e-9) {
		t.Errorf("running should add 1.2 degrees, got %f", running)
	}
	crawling := w.EffectiveSpreadDeg(AimNone, PostureCrawling, MoveIdle)
	if !approx(crawling, 0.75, 1e-9) {
		t.Errorf("crawling should halve base spread, got %f", crawling)
	}
	w.AccumSpread = 2.0
	accum := w.EffectiveSpreadDeg(AimNone, PostureStanding, MoveIdle)
	if !approx(accum, 3.5, 1e-9) {
		t.Errorf("accumulated spread should add linearly, got %f", accum)
	}
}

func TestSpreadAccumulatesAndDecays(t *testing.T) {
	w := NewWeaponState("rifle")
	for i := 0; i < 100; i++ {
		w.OnShot(AimNone, PostureStanding)
	}
	if w.AccumSpread != w.Spec.SpreadMax {
		t.Errorf("accumulated spread should cap at %f, got %f", w.Spec.SpreadMax, w.AccumSpread)
	}
	w.Update(0.5)
	want := w.Spec.SpreadMax - w.Spec.SpreadDecay*0.5
	if !approx(w.AccumSpread, want, 1e-9) {
		t.Errorf("spread should decay linearly to %f, got %f", want, w.AccumSpread)
	}
	for i := 0; i < 100; i++ {
		w.Update(0.1)
	}
	if w.AccumSpread != 0 {
		t.Errorf("spread should decay to exactly zero, got %f", w.AccumSpread)
	}
}

func TestFireCooldown(t *testing.T) {
	w := NewWeaponState("rifle")
	if !w.CanFire() {
		t.Fatal("fresh weapon should be able to fire")
	}
	w.OnShot(AimNone, PostureStanding)
	if w.CanFire() {
		t.Error("firing should start the cooldown")
	}
	w.Update(w.Spec.FireInterval)
	if !w.CanFire() {
		t.Error("cooldown should expire after FireInterval")
	}
}

func TestOnShotConsumesAmmo(t *testing.T) {
	w := NewWeaponState("pistol")
	w.OnShot(AimNone, PostureStanding)
	if w.Magazine != w.Spec.MagazineSize-1 {
		t.Errorf("shot should consume one round, magazine %d", w.Magazine)
	}
	w.Magazine = 0
	w.FireCD = 0
	if w.CanFire() {
		t.Error("empty magazine should block firing")
	}
}

func TestReloadRespectsReserve(t *testing.T) {
	w := NewWeaponState("pistol")
	w.Magazine = 2
	w.Reserve = 4
	if !w.BeginReload() {
		t.Fatal("partial magazine with reserve should allow reload")
	}
	if w.CanFire() {
		t.Error("reloading should block firing")
	}
	w.Update(w.Spec.ReloadTime + 0.01)
	if w.Reloading {
		t.Fatal("reload should finish after ReloadTime")
	}
	if w.Magazine != 6 || w.Reserve != 0 {
		t.Errorf("reload should move min(need, reserve) rounds: mag %d reserve %d", w.Magazine, w.Reserve)
	}
}

func TestReloadRefusedWhenUseless(t *testing.T) {
	w := NewWeaponState("pistol")
	if w.BeginReload() {
		t.Error("full magazine should refuse reload")
	}
	w.Magazine = 0
	w.Reserve = 0
	if w.BeginReload() {
		t.Error("empty reserve should refuse reload")
	}
	w.Reserve = 10
	if !w.BeginReload() {
		t.Fatal("reload should start")
	}
	if w.BeginReload() {
		t.Error("reload already in progress should refuse")
	}
}
