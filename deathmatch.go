package main

import "sort"

// deathmatchMode covers free-for-all and team deathmatch: kills score,
// the dead respawn after a fixed delay at a spawn point no enemy used
// recently, first to the score limit (or the highest score at the time
// limit) wins. The score limit is checked before the time limit, so a
// tick in which both arrive ends on the score limit.
type deathmatchMode struct {
	modeBase
	teamMode   bool
	spawns     *spawnTracker
	teamScores [3]int
}

func newDeathmatchMode(cfg ModeConfig) *deathmatchMode {
	return &deathmatchMode{
		modeBase: modeBase{cfg: cfg, phase: PhasePending, timeLeft: cfg.TimeLimit, countdown: cfg.Countdown},
		teamMode: cfg.Mode == ModeTeamDeathmatch,
		spawns:   newSpawnTracker(cfg.SpawnRecency),
	}
}

func (m *deathmatchMode) Begin(r *Room) {
	for _, id := range r.order {
		p := r.players[id]
		if m.teamMode && p.Team == TeamNone {
			p.Team = assignTeam(r.players)
		}
		m.spawnPlayer(r, p)
		p.Weapon = NewWeaponState(m.cfg.WeaponID)
	}
}

func (m *deathmatchMode) spawnPlayer(r *Room, p *PlayerSession) {
	candidates := spawnMarkersFor(r.mapDoc, p.Team, m.teamMode)
	if mk, ok := m.spawns.pick(candidates, p.Team); ok {
		p.Respawn(mk.Pos)
		return
	}
	p.Respawn(Vec3{})
}

func (m *deathmatchMode) Update(r *Room, dt float64) {
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

	// Respawn timers
	for _, id := range r.order {
		p := r.players[id]
		if p.Alive || p.RespawnT <= 0 {
			continue
		}
		p.RespawnT -= dt
		if p.RespawnT <= 0 {
			m.spawnPlayer(r, p)
			r.broadcastEventLocked(EvtGameRespawn, RespawnMsg{PlayerID: p.ID, Pos: p.Pos})
		}
	}

	if m.tickClock(dt) {
		m.endByTime(r)
	}
}

func (m *deathmatchMode) OnDeath(r *Room, victim, killer *PlayerSession) {
	victim.Deaths++
	victim.RespawnT = m.cfg.RespawnDelay
	if killer != nil && killer.ID != victim.ID {
		killer.Kills++
		killer.Score++
		if m.teamMode {
			m.teamScores[killer.Team]++
		}
	}
	r.broadcastEventLocked(EvtGameScore, m.scoreMsg(r))

	if m.cfg.ScoreLimit <= 0 || killer == nil {
		return
	}
	if m.teamMode {
		if m.teamScores[killer.Team] >= m.cfg.ScoreLimit {
			m.endWithWinner(r, killer.Team, killer)
		}
	} else if killer.Score >= m.cfg.ScoreLimit {
		m.endWithWinner(r, TeamNone, killer)
	}
}

func (m *deathmatchMode) OnLeave(r *Room, p *PlayerSession) {
	// Leaving forfeits: in a 1v1 the remaining player wins immediately
	if m.phase != PhaseActive || m.teamMode {
		return
	}
	remaining := make([]*PlayerSession, 0, len(r.order))
	for _, id := range r.order {
		if id != p.ID {
			remaining = append(remaining, r.players[id])
		}
	}
	if len(remaining) == 1 {
		m.endWithWinner(r, TeamNone, remaining[0])
	}
}

func (m *deathmatchMode) endWithWinner(r *Room, team int, winner *PlayerSession) {
	m.phase = PhaseEnded
	res := ModeResult{WinnerTeam: team, Ranks: m.ranks(r)}
	if winner != nil {
		res.WinnerID = winner.ID
		res.WinnerName = winner.Name
	}
	m.result = res
}

func (m *deathmatchMode) endByTime(r *Room) {
	m.phase = PhaseEnded
	res := ModeResult{Ranks: m.ranks(r)}

	if m.teamMode {
		switch {
		case m.teamScores[TeamRed] > m.teamScores[TeamBlue]:
			res.WinnerTeam = TeamRed
		case m.teamScores[TeamBlue] > m.teamScores[TeamRed]:
			res.WinnerTeam = TeamBlue
		default:
			res.Draw = true
		}
	} else {
		var best *PlayerSession
		tied := false
		for _, id := range r.order {
			p := r.players[id]
			if best == nil || p.Score > best.Score {
				best = p
				tied = false
			} else if p.Score == best.Score {
				tied = true
			}
		}
		if best == nil || tied {
			res.Draw = true
		} else {
			res.WinnerID = best.ID
			res.WinnerName = best.Name
		}
	}
	m.result = res
}

func (m *deathmatchMode) ranks(r *Room) []RankEntry {
	ids := append([]string(nil), r.order...)
	sort.SliceStable(ids, func(i, j int) bool {
		return r.players[ids[i]].Score > r.players[ids[j]].Score
	})
	out := make([]RankEntry, 0, len(ids))
	for i, id := range ids {
		p := r.players[id]
		out = append(out, RankEntry{Rank: i + 1, PlayerID: id, Name: p.Name, Score: p.Score})
	}
	return out
}

func (m *deathmatchMode) scoreMsg(r *Room) ScoreMsg {
	msg := ScoreMsg{Teams: map[int]int{}}
	if m.teamMode {
		msg.Teams[TeamRed] = m.teamScores[TeamRed]
		msg.Teams[TeamBlue] = m.teamScores[TeamBlue]
	}
	msg.Players = map[string]int{}
	for _, id := range r.order {
		msg.Players[id] = r.players[id].Score
	}
	return msg
}
