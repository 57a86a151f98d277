package main

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/bcrypt"
)

// Room lifecycle statuses. building is only reachable from
// collaborativeBuild rooms.
const (
	StatusWaiting  = "waiting"
	StatusBuilding = "building"
	StatusStarting = "starting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

const (
	maxRooms            = 100
	DefaultRoomCapacity = 8
	maxRoomNameLen      = 30
	maxPlayerNameLen    = 16
	bcryptRoomCost      = 8 // room passwords are low-value secrets
)

// Tunable lifecycle timings. Vars so tests can shorten them.
var (
	// RoomEmptyGrace is how long an empty room survives before the
	// sweeper destroys it, tolerating transient disconnects.
	RoomEmptyGrace = 30 * time.Second
	// BuildTimeDefault is the collaborative build phase length.
	BuildTimeDefault = 180.0
	// BuildGraceExtension is added when the build timer expires with an
	// invalid map, instead of forcing a start.
	BuildGraceExtension = 60.0
)

// Registry/room error taxonomy. Returned to the requester only; they
// never abort another player's tick.
var (
	errRoomNotFound     = errors.New("room not found")
	errRoomFull         = errors.New("room full")
	errBadPassword      = errors.New("wrong password")
	errNotHost          = errors.New("only the host can do that")
	errNotEnoughPlayers = errors.New("not enough players")
	errInvalidState     = errors.New("not allowed in the room's current state")
	errForbidden        = errors.New("forbidden")
	errTooManyRooms     = errors.New("too many active rooms")
)

// Broadcaster delivers messages to one connected client
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Room owns one map document, one mode state machine and its members.
// Every mutation happens under mu; a tick is one critical section, so
// no partial tick state is ever observable.
type Room struct {
	mu sync.Mutex

	ID       string
	Name     string
	HostID   string
	GameMode int
	RoomMode string
	Status   string
	Private  bool
	passHash []byte
	Capacity int

	players map[string]*PlayerSession
	order   []string // insertion order, the deterministic tie-break
	clients map[string]Broadcaster
	nextSeq int

	mapDoc  *MapDocument
	mapID   string // durable map id when playing a community map
	geom    *GeometryIndex
	modeCfg ModeConfig
	mode    GameModeLogic

	build         *BuildSession
	buildAllowAll bool

	tickN      uint64
	overruns   int
	stop       chan struct{}
	running    bool
	emptySince time.Time
	startedAt  time.Time

	recorder *Recorder
}

// minPlayersToStart: competitive modes need an opponent; free-for-all
// deathmatch may start solo for warmup.
func minPlayersToStart(mode int) int {
	if mode == ModeDeathmatch {
		return 1
	}
	return 2
}

// PlayerCount returns the number of members
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Info returns a lobby listing entry
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		ID:       r.ID,
		Name:     r.Name,
		GameMode: r.GameMode,
		RoomMode: r.RoomMode,
		Players:  len(r.players),
		Capacity: r.Capacity,
		Status:   r.Status,
		Private:  r.Private,
	}
}

// SnapshotMap returns a deep copy of the room's map document
func (r *Room) SnapshotMap() MapDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mapDoc.Snapshot()
}

// AddPlayer joins a player, enforcing capacity and lifecycle rules
func (r *Room) AddPlayer(name string) (*PlayerSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != StatusWaiting && r.Status != StatusBuilding {
		return nil, errInvalidState
	}
	if len(r.players) >= r.Capacity {
		return nil, errRoomFull
	}

	id := GenerateID(4)
	p := NewPlayerSession(id, name, r.nextSeq, Vec3{})
	r.nextSeq++
	r.players[id] = p
	r.order = append(r.order, id)
	r.emptySince = time.Time{}
	if r.HostID == "" {
		r.HostID = id
	}

	r.broadcastEventLocked(EvtRoomPlayerJoin, RoomMemberInfo{ID: p.ID, Name: p.Name, Host: p.ID == r.HostID})
	r.broadcastRoomStateLocked()
	return p, nil
}

// RemovePlayer drops a member with mode-specific side effects
func (r *Room) RemovePlayer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return
	}
	delete(r.players, id)
	delete(r.clients, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.build != nil {
		r.build.DropPlayer(id)
	}

	if r.mode != nil && r.Status == StatusPlaying {
		r.mode.OnLeave(r, p)
		if r.mode.Phase() == PhaseEnded {
			r.finishGameLocked()
		}
	}

	// Host migration: oldest remaining member becomes host
	if r.HostID == id && len(r.order) > 0 {
		r.HostID = r.order[0]
	}

	if len(r.players) == 0 {
		r.emptySince = time.Now()
	}

	r.broadcastEventLocked(EvtRoomPlayerLeft, RoomMemberInfo{ID: id, Name: p.Name})
	r.broadcastRoomStateLocked()
}

// SetClient associates a transport with a member. New members of a
// building room get the full map document, which is never broadcast.
func (r *Room) SetClient(playerID string, b Broadcaster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[playerID]; !ok {
		return
	}
	r.clients[playerID] = b
	b.SendJSON(Envelope{T: EvtRoomState, Data: r.roomStateLocked()})
	if r.Status == StatusBuilding && r.build != nil {
		b.SendJSON(Envelope{T: EvtBuildMapSync, Data: MapSyncMsg{
			Map:           r.mapDoc.Snapshot(),
			TimeRemaining: r.build.TimeRemaining(),
		}})
	}
}

// HandleInput merges a raw input into the player's pending intent.
// Latest wins; the next tick consumes it.
func (r *Room) HandleInput(playerID string, raw ClientInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[playerID]; ok && r.Status == StatusPlaying {
		p.MergeInput(raw)
	}
}

// HandleChat relays a sanitized chat line to all members
func (r *Room) HandleChat(playerID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok || text == "" {
		return
	}
	if len(text) > 200 {
		text = text[:200]
	}
	r.broadcastEventLocked(EvtChat, ChatMsg{PlayerID: p.ID, Name: p.Name, Message: text})
}

// Start begins the build phase or the match, host only
func (r *Room) Start(requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if requesterID != r.HostID {
		return errNotHost
	}
	switch r.Status {
	case StatusWaiting:
	case StatusBuilding:
		// Host may cut the build phase short; validation still applies
		if err := r.mapDoc.Validate(r.GameMode); err != nil {
			return err
		}
		r.startPlayLocked()
		return nil
	default:
		return errInvalidState
	}
	if len(r.players) < minPlayersToStart(r.GameMode) {
		return errNotEnoughPlayers
	}

	if r.RoomMode == RoomModeCollabBuild {
		r.startBuildingLocked()
		return nil
	}
	if err := r.mapDoc.Validate(r.GameMode); err != nil {
		return err
	}
	r.startPlayLocked()
	return nil
}

func (r *Room) startBuildingLocked() {
	r.Status = StatusBuilding
	r.build = NewBuildSession(r, BuildTimeDefault)
	r.broadcastRoomStateLocked()
	go r.build.RunTimer()
}

// startPlayLocked freezes the map and launches the tick loop
func (r *Room) startPlayLocked() {
	r.Status = StatusStarting
	r.mapDoc.Freeze()
	r.geom = BuildGeometryIndex(r.mapDoc)
	r.mode = NewModeLogic(r.modeCfg)
	r.mode.Begin(r)
	r.startedAt = time.Now()
	r.broadcastRoomStateLocked()
	r.broadcastEventLocked(EvtGameStart, GameStartMsg{
		Map:       r.mapDoc.Snapshot(),
		Config:    r.modeCfg,
		Countdown: r.modeCfg.Countdown,
	})
	r.Status = StatusPlaying
	r.running = true
	go r.runLoop()
}

// tick executes one full simulation step: input snapshot, movement, hit
// resolution, mode update, broadcast. One ordered critical section.
func (r *Room) tick(dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status != StatusPlaying {
		return
	}
	r.tickN++
	nowMs := time.Now().UnixMilli()

	// 1. snapshot pending intents
	for _, id := range r.order {
		r.players[id].SnapshotInput()
	}

	// 2. movement resolution
	inPlay := r.mode.Phase() == PhaseActive
	for _, id := range r.order {
		p := r.players[id]
		if inPlay || r.GameMode != ModeRace {
			// Racers are frozen until the countdown ends
			StepMovement(p, dt)
			clampToWorld(p, GeomHalfSize)
		}
		p.RecordHistory(nowMs)
	}

	// 3. hit resolution for fire intents raised this tick
	if inPlay && r.GameMode != ModeRace {
		ordered := r.orderedPlayersLocked()
		for _, id := range r.order {
			p := r.players[id]
			if !p.intent.Fire {
				continue
			}
			atMs := lagCompTime(nowMs, p.intent.FireTime)
			for _, res := range FireWeapon(p, r.geom, ordered, atMs) {
				if !res.Hit {
					continue
				}
				target := r.players[res.TargetID]
				if target == nil {
					continue
				}
				died := target.ApplyDamage(res.Damage)
				r.broadcastEventLocked(EvtGameHit, HitMsg{
					ShooterID: p.ID,
					TargetID:  target.ID,
					Damage:    res.Damage,
					Headshot:  res.Headshot,
					Impact:    res.Impact,
				})
				if died {
					r.mode.OnDeath(r, target, p)
					r.broadcastEventLocked(EvtGameDied, DiedMsg{
						VictimID:   target.ID,
						KillerID:   p.ID,
						KillerName: p.Name,
						Headshot:   res.Headshot,
					})
				}
			}
		}
	}

	// 4. mode-logic update
	r.mode.Update(r, dt)
	if r.mode.Phase() == PhaseEnded {
		r.finishGameLocked()
		return
	}

	// 5. broadcast
	r.broadcastStateLocked()
}

// lagCompTime converts a client fire timestamp into the history lookup
// time. The lookback is clamped to the history window so a skewed or
// forged clock cannot rewind further than the server keeps state.
func lagCompTime(nowMs, fireMs int64) int64 {
	if fireMs <= 0 {
		return nowMs
	}
	const windowMs = HistoryTicks * 50
	age := nowMs - fireMs
	if age < 0 {
		age = 0
	}
	if age > windowMs {
		age = windowMs
	}
	return nowMs - age
}

func (r *Room) orderedPlayersLocked() []*PlayerSession {
	out := make([]*PlayerSession, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}
	return out
}

// finishGameLocked ends the match, persists the record and stops the loop
func (r *Room) finishGameLocked() {
	if r.Status == StatusFinished {
		return
	}
	r.Status = StatusFinished
	res := r.mode.Result()
	r.broadcastEventLocked(EvtGameEnd, GameEndMsg{Result: res})
	r.broadcastRoomStateLocked()

	if r.recorder != nil {
		rec := GameRecord{
			RoomID:     r.ID,
			MapID:      r.mapID,
			Mode:       r.GameMode,
			Duration:   time.Since(r.startedAt).Seconds(),
			WinnerTeam: res.WinnerTeam,
			WinnerName: res.WinnerName,
			Draw:       res.Draw,
		}
		for _, id := range r.order {
			p := r.players[id]
			rec.Players = append(rec.Players, GameRecordPlayer{
				AuthPlayerID: p.AuthPlayerID,
				Name:         p.Name,
				Team:         p.Team,
				Kills:        p.Kills,
				Deaths:       p.Deaths,
				Score:        p.Score,
				Won:          (res.WinnerID != "" && res.WinnerID == p.ID) || (res.WinnerTeam != TeamNone && res.WinnerTeam == p.Team),
			})
		}
		r.recorder.Track(rec)
	}

	if r.running {
		r.running = false
		close(r.stop)
	}
}

// Stop halts the tick loop; an in-flight tick runs to completion
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.build != nil {
		r.build.StopTimer()
	}
	if r.running {
		r.running = false
		close(r.stop)
	}
}

// ---- broadcasting ----

func (r *Room) broadcastEventLocked(t string, data interface{}) {
	env := Envelope{T: t, Data: data}
	for _, c := range r.clients {
		c.SendJSON(env)
	}
}

func (r *Room) sendToLocked(playerID, t string, data interface{}) {
	if c, ok := r.clients[playerID]; ok {
		c.SendJSON(Envelope{T: t, Data: data})
	}
}

func (r *Room) roomStateLocked() RoomStateMsg {
	msg := RoomStateMsg{
		ID:       r.ID,
		Name:     r.Name,
		HostID:   r.HostID,
		GameMode: r.GameMode,
		RoomMode: r.RoomMode,
		Status:   r.Status,
		Capacity: r.Capacity,
	}
	if r.build != nil && r.Status == StatusBuilding {
		msg.BuildTime = r.build.TimeRemaining()
	}
	for _, id := range r.order {
		p := r.players[id]
		msg.Members = append(msg.Members, RoomMemberInfo{
			ID: p.ID, Name: p.Name, Team: p.Team, Host: p.ID == r.HostID,
		})
	}
	return msg
}

func (r *Room) broadcastRoomStateLocked() {
	r.broadcastEventLocked(EvtRoomState, r.roomStateLocked())
}

// broadcastStateLocked sends the authoritative tick state as a msgpack
// binary frame. Slow clients drop frames rather than stalling the tick.
func (r *Room) broadcastStateLocked() {
	state := GameState{
		Tick:    r.tickN,
		Phase:   r.mode.Phase(),
		Players: make([]PlayerState, 0, len(r.order)),
	}
	if dm, ok := r.mode.(*deathmatchMode); ok {
		state.TimeLeft = dm.timeLeft
		if dm.teamMode {
			state.Scores = map[int]int{TeamRed: dm.teamScores[TeamRed], TeamBlue: dm.teamScores[TeamBlue]}
		}
	} else if dom, ok := r.mode.(*dominationMode); ok {
		state.TimeLeft = dom.timeLeft
		state.Scores = map[int]int{TeamRed: int(dom.teamScores[TeamRed]), TeamBlue: int(dom.teamScores[TeamBlue])}
	} else if rc, ok := r.mode.(*raceMode); ok {
		state.TimeLeft = rc.timeLeft
	}
	for _, id := range r.order {
		state.Players = append(state.Players, r.players[id].ToState())
	}

	data, err := msgpack.Marshal(state)
	if err != nil {
		log.Printf("state marshal: %v", err)
		return
	}
	for _, c := range r.clients {
		c.SendBinary(data)
	}
}

// RoomManager owns the live room set. The only cross-room shared
// structure; create/join/leave/destroy serialize on its lock.
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	db       *DB
	recorder *Recorder
	stop     chan struct{}
}

// NewRoomManager creates a manager and starts its sweeper
func NewRoomManager(db *DB, recorder *Recorder) *RoomManager {
	m := &RoomManager{
		rooms:    make(map[string]*Room),
		db:       db,
		recorder: recorder,
		stop:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

// CreateRoom builds a room from a create request
func (m *RoomManager) CreateRoom(msg RoomCreateMsg) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rooms) >= maxRooms {
		return nil, errTooManyRooms
	}

	name := msg.RoomName
	if name == "" {
		name = "Arena"
	}
	if len(name) > maxRoomNameLen {
		name = name[:maxRoomNameLen]
	}
	mode := msg.GameMode
	if mode < ModeRace || mode > ModeDomination {
		mode = ModeDeathmatch
	}
	roomMode := msg.RoomMode
	if roomMode != RoomModeCollabBuild {
		roomMode = RoomModeCommunityMap
	}

	var doc *MapDocument
	mapID := ""
	if roomMode == RoomModeCommunityMap && msg.MapID != "" && m.db != nil {
		loaded, err := m.db.LoadMap(msg.MapID)
		if err != nil {
			return nil, err
		}
		doc = loaded
		mapID = msg.MapID
	} else {
		doc = NewMapDocument(name)
		if roomMode == RoomModeCommunityMap {
			// A fresh community-map room gets a minimal playable floor
			seedDefaultMap(doc, mode)
		}
	}

	r := &Room{
		ID:       GenerateUUID(),
		Name:     name,
		GameMode: mode,
		RoomMode: roomMode,
		Status:   StatusWaiting,
		Private:  msg.IsPrivate,
		Capacity: DefaultRoomCapacity,
		players:  make(map[string]*PlayerSession),
		clients:  make(map[string]Broadcaster),
		mapDoc:   doc,
		mapID:    mapID,
		modeCfg:  DefaultModeConfig(mode),
		stop:     make(chan struct{}),
		recorder: m.recorder,
	}
	if msg.IsPrivate && msg.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(msg.Password), bcryptRoomCost)
		if err != nil {
			return nil, err
		}
		r.passHash = hash
	}
	r.buildAllowAll = msg.AllowAllEdit

	m.rooms[r.ID] = r
	return r, nil
}

// GetRoom returns a room by id, nil when absent
func (m *RoomManager) GetRoom(id string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[id]
}

// JoinRoom checks credentials and adds the player
func (m *RoomManager) JoinRoom(roomID, playerName, password string) (*Room, *PlayerSession, error) {
	r := m.GetRoom(roomID)
	if r == nil {
		return nil, nil, errRoomNotFound
	}
	if len(r.passHash) > 0 {
		if bcrypt.CompareHashAndPassword(r.passHash, []byte(password)) != nil {
			return nil, nil, errBadPassword
		}
	}
	p, err := r.AddPlayer(playerName)
	if err != nil {
		return nil, nil, err
	}
	return r, p, nil
}

// RemovePlayer removes a player; empty rooms linger for the grace period
func (m *RoomManager) RemovePlayer(roomID, playerID string) {
	r := m.GetRoom(roomID)
	if r == nil {
		return
	}
	r.RemovePlayer(playerID)
}

// ListRooms returns joinable public rooms for the lobby
func (m *RoomManager) ListRooms() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for _, r := range m.rooms {
		info := r.Info()
		if info.Private {
			continue
		}
		out = append(out, info)
	}
	return out
}

// Destroy stops a room's loop and removes it from the registry
func (m *RoomManager) Destroy(roomID string) {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if ok {
		delete(m.rooms, roomID)
	}
	m.mu.Unlock()
	if ok {
		r.Stop()
	}
}

// Close stops the sweeper and every room
func (m *RoomManager) Close() {
	close(m.stop)
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()
	for _, r := range rooms {
		r.Stop()
	}
}

// sweep destroys rooms that have been empty past the grace period
func (m *RoomManager) sweep() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			var doomed []string
			m.mu.RLock()
			for id, r := range m.rooms {
				r.mu.Lock()
				if len(r.players) == 0 && !r.emptySince.IsZero() &&
					time.Since(r.emptySince) >= RoomEmptyGrace {
					doomed = append(doomed, id)
				}
				r.mu.Unlock()
			}
			m.mu.RUnlock()
			for _, id := range doomed {
				m.Destroy(id)
			}
		case <-m.stop:
			return
		}
	}
}

// seedDefaultMap gives an instant-play room a floor and the markers its
// mode requires
func seedDefaultMap(doc *MapDocument, mode int) {
	doc.AddObject(MapObject{
		Kind: "box", Pos: Vec3{Y: -0.5}, Size: Vec3{X: 60, Y: 1, Z: 60},
		Color: "#667788", Collidable: true,
	})
	switch mode {
	case ModeRace:
		doc.AddMarker(Marker{Kind: MarkerRaceStart, Pos: Vec3{X: -20}})
		doc.AddMarker(Marker{Kind: MarkerRaceEnd, Pos: Vec3{X: 20}})
	case ModeTeamDeathmatch, ModeDomination:
		doc.AddMarker(Marker{Kind: MarkerSpawn, Team: TeamRed, Pos: Vec3{X: -20}})
		doc.AddMarker(Marker{Kind: MarkerSpawn, Team: TeamBlue, Pos: Vec3{X: 20}})
		if mode == ModeDomination {
			doc.AddMarker(Marker{Kind: MarkerCapture, Pos: Vec3{}})
		}
	default:
		doc.AddMarker(Marker{Kind: MarkerSpawn, Pos: Vec3{X: -15}})
		doc.AddMarker(Marker{Kind: MarkerSpawn, Pos: Vec3{X: 15}})
		doc.AddMarker(Marker{Kind: MarkerSpawn, Pos: Vec3{Z: 15}})
	}
}
