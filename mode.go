package main

// Mode phases
const (
	PhasePending = 0
	PhaseActive  = 1
	PhaseEnded   = 2
)

// ModeConfig holds settings for one play phase. Immutable once the room
// enters playing.
type ModeConfig struct {
	Mode            int     `json:"mode"`
	ScoreLimit      int     `json:"scoreLimit"`
	TimeLimit       float64 `json:"timeLimit"` // seconds, 0 = unlimited
	RespawnDelay    float64 `json:"respawnDelay"`
	CaptureTime     float64 `json:"captureTime"`
	PointsPerSecond float64 `json:"pointsPerSecond"`
	SpawnRecency    float64 `json:"spawnRecency"` // anti-camping window, seconds
	Countdown       float64 `json:"countdown"`
	WeaponID        string  `json:"weapon"`
}

// DefaultModeConfig returns the default settings for the given mode
func DefaultModeConfig(mode int) ModeConfig {
	switch mode {
	case ModeRace:
		return ModeConfig{
			Mode:      ModeRace,
			TimeLimit: 180,
			Countdown: 3,
		}
	case ModeTeamDeathmatch:
		return ModeConfig{
			Mode:         ModeTeamDeathmatch,
			ScoreLimit:   30,
			TimeLimit:    300,
			RespawnDelay: 3,
			SpawnRecency: 5,
			Countdown:    3,
			WeaponID:     DefaultWeaponID,
		}
	case ModeDomination:
		return ModeConfig{
			Mode:            ModeDomination,
			ScoreLimit:      200,
			TimeLimit:       420,
			RespawnDelay:    3,
			CaptureTime:     5,
			PointsPerSecond: 1,
			SpawnRecency:    5,
			Countdown:       3,
			WeaponID:        DefaultWeaponID,
		}
	default:
		return ModeConfig{
			Mode:         ModeDeathmatch,
			ScoreLimit:   15,
			TimeLimit:    300,
			RespawnDelay: 3,
			SpawnRecency: 5,
			Countdown:    3,
			WeaponID:     DefaultWeaponID,
		}
	}
}

// IsTeamMode returns whether the mode uses teams
func (c ModeConfig) IsTeamMode() bool {
	return c.Mode == ModeTeamDeathmatch || c.Mode == ModeDomination
}

// RankEntry is one row of a final standing
type RankEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// ModeResult is the terminal outcome of a play phase
type ModeResult struct {
	Draw       bool        `json:"draw"`
	WinnerTeam int         `json:"winnerTeam,omitempty"`
	WinnerID   string      `json:"winnerId,omitempty"`
	WinnerName string      `json:"winnerName,omitempty"`
	Ranks      []RankEntry `json:"ranks,omitempty"`
}

// GameModeLogic is the per-mode state machine a Room drives each tick.
// All methods run with the room lock held, inside the tick.
type GameModeLogic interface {
	// Begin spawns players and enters the pending phase
	Begin(r *Room)
	// Update advances countdowns, timers and respawns by one tick
	Update(r *Room, dt float64)
	// OnDeath applies mode scoring for a confirmed kill
	OnDeath(r *Room, victim, killer *PlayerSession)
	// OnLeave handles a mid-game disconnect (forfeit semantics)
	OnLeave(r *Room, p *PlayerSession)
	Phase() int
	Result() ModeResult
}

// NewModeLogic builds the state machine for a config
func NewModeLogic(cfg ModeConfig) GameModeLogic {
	switch cfg.Mode {
	case ModeRace:
		return newRaceMode(cfg)
	case ModeDomination:
		return newDominationMode(cfg)
	default:
		return newDeathmatchMode(cfg)
	}
}

// modeBase carries the phase/timer state machine shared by every mode
type modeBase struct {
	cfg       ModeConfig
	phase     int
	timeLeft  float64
	countdown float64
	result    ModeResult
}

func (m *modeBase) Phase() int         { return m.phase }
func (m *modeBase) Result() ModeResult { return m.result }

// tickCountdown advances pending -> active, returns true on the
// transition tick
func (m *modeBase) tickCountdown(dt float64) bool {
	if m.phase != PhasePending {
		return false
	}
	m.countdown -= dt
	if m.countdown <= 0 {
		m.phase = PhaseActive
		return true
	}
	return false
}

// tickClock advances the match clock, returns true when the time limit
// expires this tick
func (m *modeBase) tickClock(dt float64) bool {
	if m.phase != PhaseActive || m.cfg.TimeLimit <= 0 {
		return false
	}
	m.timeLeft -= dt
	return m.timeLeft <= 0
}

// assignTeam balances a new player onto the smaller team
func assignTeam(players map[string]*PlayerSession) int {
	red, blue := 0, 0
	for _, p := range players {
		switch p.Team {
		case TeamRed:
			red++
		case TeamBlue:
			blue++
		}
	}
	if red <= blue {
		return TeamRed
	}
	return TeamBlue
}

// spawnTracker remembers when each spawn marker was last used and by
// which team, implementing the "not recently used by an enemy" policy.
// Best effort, not guaranteed-safe.
type spawnTracker struct {
	lastTeam map[string]int
	lastAt   map[string]float64
	now      float64
	recency  float64
}

func newSpawnTracker(recency float64) *spawnTracker {
	return &spawnTracker{
		lastTeam: make(map[string]int),
		lastAt:   make(map[string]float64),
		recency:  recency,
	}
}

func (s *spawnTracker) advance(dt float64) { s.now += dt }

// pick chooses a random spawn from candidates, preferring markers no
// enemy used within the recency window. Falls back to any candidate.
func (s *spawnTracker) pick(candidates []Marker, team int) (Marker, bool) {
	if len(candidates) == 0 {
		return Marker{}, false
	}
	eligible := candidates[:0:0]
	for _, mk := range candidates {
		at, used := s.lastAt[mk.ID]
		if used && s.lastTeam[mk.ID] != team && s.now-at < s.recency {
			continue
		}
		eligible = append(eligible, mk)
	}
	if len(eligible) == 0 {
		eligible = candidates
	}
	mk := eligible[int(randFloat()*float64(len(eligible)))%len(eligible)]
	s.lastTeam[mk.ID] = team
	s.lastAt[mk.ID] = s.now
	return mk, true
}

// spawnMarkersFor returns the spawn candidates for a team, falling back
// to shared spawns in non-team modes
func spawnMarkersFor(doc *MapDocument, team int, teamMode bool) []Marker {
	if teamMode {
		if mk := doc.MarkersOf(MarkerSpawn, team); len(mk) > 0 {
			return mk
		}
	}
	return doc.MarkersOf(MarkerSpawn, -1)
}
