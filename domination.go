package main

// capturePoint is the live state of one domination objective
type capturePoint struct {
	Marker    Marker
	Owner     int // TeamNone until captured
	Capturing int // team currently making progress
	Progress  float64
}

// dominationMode: capture points need sustained uncontested presence for
// captureTime; an owned point pays pointsPerSecond to its team until
// recaptured. Ends at the score or time limit, score checked first.
type dominationMode struct {
	modeBase
	points     []*capturePoint
	spawns     *spawnTracker
	teamScores [3]float64
	scoreAccum float64 // for throttling score broadcasts
}

func newDominationMode(cfg ModeConfig) *dominationMode {
	return &dominationMode{
		modeBase: modeBase{cfg: cfg, phase: PhasePending, timeLeft: cfg.TimeLimit, countdown: cfg.Countdown},
		spawns:   newSpawnTracker(cfg.SpawnRecency),
	}
}

func (m *dominationMode) Begin(r *Room) {
	for _, mk := range r.mapDoc.MarkersOf(MarkerCapture, -1) {
		m.points = append(m.points, &capturePoint{Marker: mk})
	}
	for _, id := range r.order {
		p := r.players[id]
		if p.Team == TeamNone {
			p.Team = assignTeam(r.players)
		}
		m.spawnPlayer(r, p)
		p.Weapon = NewWeaponState(m.cfg.WeaponID)
	}
}

func (m *dominationMode) spawnPlayer(r *Room, p *PlayerSession) {
	candidates := spawnMarkersFor(r.mapDoc, p.Team, true)
	if mk, ok := m.spawns.pick(candidates, p.Team); ok {
		p.Respawn(mk.Pos)
		return
	}
	p.Respawn(Vec3{})
}

func (m *dominationMode) Update(r *Room, dt float64) {
	if m.phase == PhaseEnded {
		return
	}
	m.spawns.advance(dt)
	if m.tickCountdown(dt) {
		r.broadcastEventLocked(EvtGameModePhase, PhaseMsg{Phase: m.phase})
	}
	if m.phase != PhaseActive {
		return
	}

	for _, id := range r.order {
		p := r.players[id]
		if !p.Alive && p.RespawnT > 0 {
			p.RespawnT -= dt
			if p.RespawnT <= 0 {
				m.spawnPlayer(r, p)
				r.broadcastEventLocked(EvtGameRespawn, RespawnMsg{PlayerID: p.ID, Pos: p.Pos})
			}
		}
	}

	for _, cp := range m.points {
		m.updatePoint(r, cp, dt)
	}

	// Owned points accrue score every tick
	for _, cp := range m.points {
		if cp.Owner != TeamNone {
			m.teamScores[cp.Owner] += m.cfg.PointsPerSecond * dt
		}
	}

	m.scoreAccum += dt
	if m.scoreAccum >= 1 {
		m.scoreAccum = 0
		r.broadcastEventLocked(EvtGameScore, ScoreMsg{Teams: map[int]int{
			TeamRed:  int(m.teamScores[TeamRed]),
			TeamBlue: int(m.teamScores[TeamBlue]),
		}})
	}

	if m.cfg.ScoreLimit > 0 {
		for _, team := range [2]int{TeamRed, TeamBlue} {
			if int(m.teamScores[team]) >= m.cfg.ScoreLimit {
				m.end(r, team)
				return
			}
		}
	}
	if m.tickClock(dt) {
		switch {
		case m.teamScores[TeamRed] > m.teamScores[TeamBlue]:
			m.end(r, TeamRed)
		case m.teamScores[TeamBlue] > m.teamScores[TeamRed]:
			m.end(r, TeamBlue)
		default:
			m.end(r, TeamNone)
		}
	}
}

// updatePoint advances capture progress for one objective. Progress
// requires sustained uncontested presence; a contested point holds its
// progress, an empty point decays it.
func (m *dominationMode) updatePoint(r *Room, cp *capturePoint, dt float64) {
	red, blue := 0, 0
	for _, id := range r.order {
		p := r.players[id]
		if !p.Alive {
			continue
		}
		if HorizontalDist(p.Pos, cp.Marker.Pos) > MarkerRadius {
			continue
		}
		switch p.Team {
		case TeamRed:
			red++
		case TeamBlue:
			blue++
		}
	}

	contested := red > 0 && blue > 0
	var presence int
	switch {
	case contested:
		return // progress frozen while contested
	case red > 0:
		presence = TeamRed
	case blue > 0:
		presence = TeamBlue
	default:
		// Unoccupied: progress bleeds away
		cp.Progress -= dt
		if cp.Progress <= 0 {
			cp.Progress = 0
			cp.Capturing = TeamNone
		}
		return
	}

	if presence == cp.Owner {
		cp.Progress = 0
		cp.Capturing = TeamNone
		return
	}
	if cp.Capturing != presence {
		cp.Capturing = presence
		cp.Progress = 0
	}
	cp.Progress += dt
	if cp.Progress >= m.cfg.CaptureTime {
		cp.Owner = presence
		cp.Capturing = TeamNone
		cp.Progress = 0
		r.broadcastEventLocked(EvtGameCapture, CaptureMsg{MarkerID: cp.Marker.ID, Team: presence})
	}
}

func (m *dominationMode) OnDeath(r *Room, victim, killer *PlayerSession) {
	victim.Deaths++
	victim.RespawnT = m.cfg.RespawnDelay
	if killer != nil && killer.ID != victim.ID {
		killer.Kills++
		killer.Score++
	}
}

func (m *dominationMode) OnLeave(r *Room, p *PlayerSession) {}

func (m *dominationMode) end(r *Room, team int) {
	m.phase = PhaseEnded
	res := ModeResult{WinnerTeam: team, Draw: team == TeamNone}
	for i, id := range r.order {
		p := r.players[id]
		res.Ranks = append(res.Ranks, RankEntry{Rank: i + 1, PlayerID: id, Name: p.Name, Score: p.Score})
	}
	m.result = res
}
