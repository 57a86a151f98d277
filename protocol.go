package main

import "encoding/json"

// Client -> Server message types
const (
	MsgRoomCreate = "room:create"
	MsgRoomJoin   = "room:join"
	MsgRoomLeave  = "room:leave"
	MsgRoomStart  = "room:start"
	MsgRoomList   = "room:list"
	MsgRoomCheck  = "room:check"

	MsgBuildAddObject    = "build:addObject"
	MsgBuildUpdateObject = "build:updateObject"
	MsgBuildDeleteObject = "build:deleteObject"
	MsgBuildAddMarker    = "build:addMarker"
	MsgBuildDeleteMarker = "build:deleteMarker"
	MsgBuildCursor       = "build:cursorMove"

	MsgPlayerInput = "player:input"
	MsgPlayerChat  = "player:chat"

	MsgRegister = "auth:register"
	MsgLogin    = "auth:login"
	MsgAuth     = "auth:token"
	MsgProfile  = "profile"

	MsgMapSave = "map:save"
	MsgMapList = "map:list"
)

// Server -> Client message types
const (
	EvtError = "error"

	EvtRoomCreated    = "room:created"
	EvtRoomJoined     = "room:joined"
	EvtRoomPlayerJoin = "room:playerJoined"
	EvtRoomPlayerLeft = "room:playerLeft"
	EvtRoomState      = "room:stateUpdate"
	EvtRoomList       = "room:list"
	EvtRoomChecked    = "room:checked"

	EvtBuildObjectAdded   = "build:objectAdded"
	EvtBuildObjectUpdated = "build:objectUpdated"
	EvtBuildObjectDeleted = "build:objectDeleted"
	EvtBuildMarkerAdded   = "build:markerAdded"
	EvtBuildMarkerDeleted = "build:markerDeleted"
	EvtBuildCursor        = "build:cursorUpdated"
	EvtBuildMapSync       = "build:mapSync"
	EvtBuildTime          = "build:timeUpdate"

	EvtGameStart      = "game:start"
	EvtGameState      = "game:state" // msgpack binary, not JSON
	EvtGameModePhase  = "game:phase"
	EvtGameHit        = "game:playerHit"
	EvtGameDied       = "game:playerDied"
	EvtGameRespawn    = "game:playerRespawn"
	EvtGameScore      = "game:scoreUpdate"
	EvtGameCheckpoint = "game:checkpoint"
	EvtGameFinish     = "game:finish"
	EvtGameCapture    = "game:capture"
	EvtGameEnd        = "game:end"

	EvtChat = "chat"

	EvtAuthOK      = "auth:ok"
	EvtProfileData = "profile:data"
	EvtMapSaved    = "map:saved"
	EvtMapList     = "map:list"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids
// double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// ErrorMsg carries a failure reason code to the requesting client only
type ErrorMsg struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// ---- room payloads ----

// RoomCreateMsg asks for a new room
type RoomCreateMsg struct {
	RoomName     string `json:"roomName"`
	PlayerName   string `json:"playerName"`
	GameMode     int    `json:"gameMode"`
	RoomMode     string `json:"roomMode"` // communityMap | collaborativeBuild
	MapID        string `json:"mapId,omitempty"`
	IsPrivate    bool   `json:"isPrivate"`
	Password     string `json:"password,omitempty"`
	AllowAllEdit bool   `json:"allowAllEdit"`
}

// RoomJoinMsg asks to join an existing room
type RoomJoinMsg struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	Password   string `json:"password,omitempty"`
}

// RoomCheckMsg asks whether a room exists (share links)
type RoomCheckMsg struct {
	RoomID string `json:"roomId"`
}

// RoomCheckedMsg is the response to a room check
type RoomCheckedMsg struct {
	RoomID  string `json:"roomId"`
	Exists  bool   `json:"exists"`
	Name    string `json:"name,omitempty"`
	Players int    `json:"players,omitempty"`
	Private bool   `json:"private,omitempty"`
}

// RoomInfo is one entry in the lobby room list
type RoomInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	GameMode int    `json:"gameMode"`
	RoomMode string `json:"roomMode"`
	Players  int    `json:"players"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
	Private  bool   `json:"private"`
}

// RoomMemberInfo describes one member in a room-state snapshot
type RoomMemberInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Team int    `json:"team"`
	Host bool   `json:"host"`
}

// RoomStateMsg is the full room snapshot sent on every state change
type RoomStateMsg struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	HostID    string           `json:"hostId"`
	GameMode  int              `json:"gameMode"`
	RoomMode  string           `json:"roomMode"`
	Status    string           `json:"status"`
	Members   []RoomMemberInfo `json:"members"`
	Capacity  int              `json:"capacity"`
	BuildTime float64          `json:"buildTime,omitempty"`
}

// JoinedMsg is sent to the joining player with their assigned id
type JoinedMsg struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

// ---- build payloads ----

// AddObjectMsg places one object
type AddObjectMsg struct {
	Object MapObject `json:"object"`
}

// UpdateObjectMsg patches one object
type UpdateObjectMsg struct {
	ObjectID string         `json:"objectId"`
	Changes  MapObjectPatch `json:"changes"`
}

// DeleteObjectMsg removes one object
type DeleteObjectMsg struct {
	ObjectID string `json:"objectId"`
}

// AddMarkerMsg places one marker
type AddMarkerMsg struct {
	Marker Marker `json:"marker"`
}

// DeleteMarkerMsg removes one marker
type DeleteMarkerMsg struct {
	MarkerID string `json:"markerId"`
}

// CursorMsg shares a builder's cursor for presence display
type CursorMsg struct {
	PlayerID string `json:"playerId,omitempty"` // filled by the server
	Pos      Vec3   `json:"position"`
	Selected string `json:"selectedObjectId,omitempty"`
}

// MapSyncMsg carries the full document to a late joiner
type MapSyncMsg struct {
	Map           MapDocument `json:"map"`
	TimeRemaining float64     `json:"timeRemaining"`
}

// BuildTimeMsg announces the remaining build time once per second
type BuildTimeMsg struct {
	Remaining float64 `json:"remaining"`
	Extended  bool    `json:"extended,omitempty"`
}

// ---- game payloads ----

// PlayerState is broadcast per player each state tick
type PlayerState struct {
	ID       string  `json:"id" msgpack:"id"`
	Name     string  `json:"n" msgpack:"n"`
	Team     int     `json:"t" msgpack:"t"`
	Pos      Vec3    `json:"p" msgpack:"p"`
	Yaw      float64 `json:"yw" msgpack:"yw"`
	Pitch    float64 `json:"pt" msgpack:"pt"`
	Posture  int     `json:"po" msgpack:"po"`
	Aim      int     `json:"am" msgpack:"am"`
	HP       int     `json:"hp" msgpack:"hp"`
	MaxHP    int     `json:"mhp" msgpack:"mhp"`
	Alive    bool    `json:"a" msgpack:"a"`
	Kills    int     `json:"k" msgpack:"k"`
	Deaths   int     `json:"d" msgpack:"d"`
	Score    int     `json:"sc" msgpack:"sc"`
	Weapon   string  `json:"w" msgpack:"w"`
	Magazine int     `json:"mg" msgpack:"mg"`
	Reserve  int     `json:"rs" msgpack:"rs"`
	Reload   bool    `json:"rl" msgpack:"rl"`
	Recoil   float64 `json:"rc" msgpack:"rc"`
	Dashing  bool    `json:"ds" msgpack:"ds"`
	Grounded bool    `json:"g" msgpack:"g"`
}

// GameState is the full authoritative state broadcast, sent as a
// msgpack-encoded binary frame
type GameState struct {
	Tick     uint64        `json:"tick" msgpack:"tick"`
	TimeLeft float64       `json:"tl" msgpack:"tl"`
	Phase    int           `json:"ph" msgpack:"ph"`
	Players  []PlayerState `json:"p" msgpack:"p"`
	Scores   map[int]int   `json:"ts,omitempty" msgpack:"ts,omitempty"`
}

// GameStartMsg announces the play phase with the frozen map
type GameStartMsg struct {
	Map       MapDocument `json:"map"`
	Config    ModeConfig  `json:"config"`
	Countdown float64     `json:"countdown"`
}

// PhaseMsg announces a mode phase transition
type PhaseMsg struct {
	Phase int `json:"phase"`
}

// HitMsg reports a confirmed hit on a player
type HitMsg struct {
	ShooterID string `json:"shooterId"`
	TargetID  string `json:"targetId"`
	Damage    int    `json:"damage"`
	Headshot  bool   `json:"headshot"`
	Impact    Vec3   `json:"impact"`
}

// DiedMsg reports a player death
type DiedMsg struct {
	VictimID   string `json:"victimId"`
	KillerID   string `json:"killerId,omitempty"`
	KillerName string `json:"killerName,omitempty"`
	Headshot   bool   `json:"headshot,omitempty"`
}

// RespawnMsg announces a respawn position
type RespawnMsg struct {
	PlayerID string `json:"playerId"`
	Pos      Vec3   `json:"pos"`
}

// ScoreMsg carries team and/or player scores
type ScoreMsg struct {
	Teams   map[int]int    `json:"teams,omitempty"`
	Players map[string]int `json:"players,omitempty"`
}

// CheckpointMsg reports race checkpoint progress
type CheckpointMsg struct {
	PlayerID string `json:"playerId"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
}

// FinishMsg reports a race finish rank
type FinishMsg struct {
	PlayerID string  `json:"playerId"`
	Rank     int     `json:"rank"`
	Time     float64 `json:"time"`
}

// CaptureMsg reports a domination point changing hands
type CaptureMsg struct {
	MarkerID string `json:"markerId"`
	Team     int    `json:"team"`
}

// GameEndMsg announces the terminal result
type GameEndMsg struct {
	Result ModeResult `json:"result"`
}

// ChatMsg relays a sanitized room chat line
type ChatMsg struct {
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"name,omitempty"`
	Message  string `json:"message"`
}

// ---- auth/profile payloads ----

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates an account
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg resumes a session from a stored token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"playerId"`
}

// ProfileDataMsg returns persistent profile stats
type ProfileDataMsg struct {
	Username string  `json:"username"`
	Kills    int     `json:"kills"`
	Deaths   int     `json:"deaths"`
	Wins     int     `json:"wins"`
	Games    int     `json:"games"`
	Playtime float64 `json:"playtime"`
}

// ---- map persistence payloads ----

// MapSaveMsg stores the current build document durably
type MapSaveMsg struct {
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

// MapSavedMsg confirms a save
type MapSavedMsg struct {
	MapID string `json:"mapId"`
}

// MapInfo is one entry in the community map list
type MapInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Owner   string `json:"owner"`
	Plays   int    `json:"plays"`
	Objects int    `json:"objects"`
}
