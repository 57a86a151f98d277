package main

import "sort"

// raceRunner tracks one player's progress through the course
type raceRunner struct {
	nextCheckpoint int // index into the ordered checkpoint list
	finished       bool
	finishTime     float64
}

// raceMode: everyone spawns at start markers, a synchronized countdown
// opens the course, crossing the end marker with every checkpoint done
// in order records a finish rank. Ends when all players finish or the
// time limit elapses.
type raceMode struct {
	modeBase
	runners     map[string]*raceRunner
	checkpoints []Marker // sorted by Ord
	ends        []Marker
	clock       float64
	finishOrder []string
}

func newRaceMode(cfg ModeConfig) *raceMode {
	return &raceMode{
		modeBase: modeBase{cfg: cfg, phase: PhasePending, timeLeft: cfg.TimeLimit, countdown: cfg.Countdown},
		runners:  make(map[string]*raceRunner),
	}
}

func (m *raceMode) Begin(r *Room) {
	starts := r.mapDoc.MarkersOf(MarkerRaceStart, -1)
	m.ends = r.mapDoc.MarkersOf(MarkerRaceEnd, -1)
	m.checkpoints = r.mapDoc.MarkersOf(MarkerCheckpoint, -1)
	sort.SliceStable(m.checkpoints, func(i, j int) bool {
		return m.checkpoints[i].Ord < m.checkpoints[j].Ord
	})

	i := 0
	for _, id := range r.order {
		p := r.players[id]
		mk := starts[i%len(starts)]
		p.Respawn(mk.Pos)
		m.runners[p.ID] = &raceRunner{}
		i++
	}
}

func (m *raceMode) Update(r *Room, dt float64) {
	if m.phase == PhaseEnded {
		return
	}
	if m.tickCountdown(dt) {
		r.broadcastEventLocked(EvtGameModePhase, PhaseMsg{Phase: m.phase})
	}
	if m.phase != PhaseActive {
		return
	}
	m.clock += dt

	for _, id := range r.order {
		p := r.players[id]
		run := m.runners[p.ID]
		if run == nil || run.finished {
			continue
		}
		// Checkpoints must be crossed in order; out-of-order crossings
		// are simply not counted
		if run.nextCheckpoint < len(m.checkpoints) {
			if HorizontalDist(p.Pos, m.checkpoints[run.nextCheckpoint].Pos) <= MarkerRadius {
				run.nextCheckpoint++
				r.broadcastEventLocked(EvtGameCheckpoint, CheckpointMsg{
					PlayerID: p.ID,
					Index:    run.nextCheckpoint,
					Total:    len(m.checkpoints),
				})
			}
		}
		if run.nextCheckpoint >= len(m.checkpoints) {
			for _, end := range m.ends {
				if HorizontalDist(p.Pos, end.Pos) <= MarkerRadius {
					run.finished = true
					run.finishTime = m.clock
					m.finishOrder = append(m.finishOrder, p.ID)
					p.Score = len(m.finishOrder) // rank for scoreboards
					r.broadcastEventLocked(EvtGameFinish, FinishMsg{
						PlayerID: p.ID,
						Rank:     len(m.finishOrder),
						Time:     run.finishTime,
					})
					break
				}
			}
		}
	}

	if m.allFinished() {
		m.end(r)
		return
	}
	if m.tickClock(dt) {
		m.end(r)
	}
}

func (m *raceMode) allFinished() bool {
	if len(m.runners) == 0 {
		return false
	}
	for _, run := range m.runners {
		if !run.finished {
			return false
		}
	}
	return true
}

func (m *raceMode) end(r *Room) {
	m.phase = PhaseEnded

	// Finished players rank by finish order; the rest by checkpoint
	// progress then insertion order
	var rest []string
	for _, id := range r.order {
		if run := m.runners[id]; run != nil && !run.finished {
			rest = append(rest, id)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return m.runners[rest[i]].nextCheckpoint > m.runners[rest[j]].nextCheckpoint
	})

	ordered := append(append([]string(nil), m.finishOrder...), rest...)
	res := ModeResult{}
	for i, id := range ordered {
		p := r.players[id]
		if p == nil {
			continue
		}
		res.Ranks = append(res.Ranks, RankEntry{Rank: i + 1, PlayerID: id, Name: p.Name, Score: m.runners[id].nextCheckpoint})
	}
	if len(m.finishOrder) > 0 {
		res.WinnerID = m.finishOrder[0]
		if p := r.players[m.finishOrder[0]]; p != nil {
			res.WinnerName = p.Name
		}
	} else {
		res.Draw = true
	}
	m.result = res
}

func (m *raceMode) OnDeath(r *Room, victim, killer *PlayerSession) {
	// No combat scoring in race mode; fall damage or hazards just
	// respawn the runner at their last checkpoint
	run := m.runners[victim.ID]
	spawn := Vec3{}
	if run != nil && run.nextCheckpoint > 0 && run.nextCheckpoint <= len(m.checkpoints) {
		spawn = m.checkpoints[run.nextCheckpoint-1].Pos
	} else if starts := r.mapDoc.MarkersOf(MarkerRaceStart, -1); len(starts) > 0 {
		spawn = starts[0].Pos
	}
	victim.Respawn(spawn)
}

func (m *raceMode) OnLeave(r *Room, p *PlayerSession) {
	delete(m.runners, p.ID)
	if m.phase == PhaseActive && m.allFinished() {
		m.end(r)
	}
}
