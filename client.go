package main

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 8192
	sendBufSize       = 256
	maxMessagesPerSec = 60
	maxChatLen        = 200
	maxListedMaps     = 50
)

// Client represents one WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	playerID   string
	roomID     string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	// Auth state
	authPlayerID int64  // 0 = guest
	authUsername string // "" = guest
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Connection-level rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket frame.
// Prefixed with a 0xFF marker so WritePump can tell it from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// sendError reports a failure to the requesting client only
func (c *Client) sendError(err error) {
	c.SendJSON(Envelope{T: EvtError, Data: ErrorMsg{Code: errCode(err), Msg: err.Error()}})
}

// errCode maps the error taxonomy to stable wire codes
func errCode(err error) string {
	switch {
	case errors.Is(err, errRoomNotFound):
		return "roomNotFound"
	case errors.Is(err, errRoomFull):
		return "roomFull"
	case errors.Is(err, errBadPassword):
		return "badPassword"
	case errors.Is(err, errNotHost):
		return "notHost"
	case errors.Is(err, errNotEnoughPlayers):
		return "notEnoughPlayers"
	case errors.Is(err, errInvalidState):
		return "invalidState"
	case errors.Is(err, errForbidden):
		return "forbidden"
	case errors.Is(err, errTooManyRooms):
		return "tooManyRooms"
	case errors.Is(err, errObjectNotFound):
		return "objectNotFound"
	case errors.Is(err, errMapFrozen):
		return "mapFrozen"
	case errors.Is(err, errMapNotFound):
		return "mapNotFound"
	case errors.Is(err, errMapInvalid):
		return "mapInvalid"
	case errors.Is(err, errLoginThrottled):
		return "throttled"
	case errors.Is(err, errBadCredentials):
		return "badCredentials"
	default:
		return "error"
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgRoomCreate:
		c.handleRoomCreate(env.D)
	case MsgRoomJoin:
		c.handleRoomJoin(env.D)
	case MsgRoomLeave:
		c.handleRoomLeave()
	case MsgRoomStart:
		c.handleRoomStart()
	case MsgRoomList:
		c.handleRoomList()
	case MsgRoomCheck:
		c.handleRoomCheck(env.D)
	case MsgBuildAddObject:
		c.handleAddObject(env.D)
	case MsgBuildUpdateObject:
		c.handleUpdateObject(env.D)
	case MsgBuildDeleteObject:
		c.handleDeleteObject(env.D)
	case MsgBuildAddMarker:
		c.handleAddMarker(env.D)
	case MsgBuildDeleteMarker:
		c.handleDeleteMarker(env.D)
	case MsgBuildCursor:
		c.handleCursor(env.D)
	case MsgPlayerInput:
		c.handleInput(env.D)
	case MsgPlayerChat:
		c.handleChat(env.D)
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgProfile:
		c.handleProfile()
	case MsgMapSave:
		c.handleMapSave(env.D)
	case MsgMapList:
		c.handleMapList()
	}
}

// playerName picks the display name: authenticated account name wins,
// then the requested name, then a generated guest tag.
func (c *Client) playerName(requested string) string {
	if c.authUsername != "" {
		return c.authUsername
	}
	name := requested
	if name == "" {
		name = GenerateGuestName()
	}
	if len(name) > maxPlayerNameLen {
		name = name[:maxPlayerNameLen]
	}
	return name
}

func (c *Client) handleRoomCreate(data json.RawMessage) {
	if c.roomID != "" {
		c.sendError(errInvalidState)
		return
	}
	var msg RoomCreateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room, err := c.hub.rooms.CreateRoom(msg)
	if err != nil {
		c.sendError(err)
		return
	}
	p, err := room.AddPlayer(c.playerName(msg.PlayerName))
	if err != nil {
		c.hub.rooms.Destroy(room.ID)
		c.sendError(err)
		return
	}
	p.AuthPlayerID = c.authPlayerID
	c.roomID = room.ID
	c.playerID = p.ID

	c.SendJSON(Envelope{T: EvtRoomCreated, Data: JoinedMsg{RoomID: room.ID, PlayerID: p.ID}})
	room.SetClient(p.ID, c)
}

func (c *Client) handleRoomJoin(data json.RawMessage) {
	if c.roomID != "" {
		c.sendError(errInvalidState)
		return
	}
	var msg RoomJoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room, p, err := c.hub.rooms.JoinRoom(msg.RoomID, c.playerName(msg.PlayerName), msg.Password)
	if err != nil {
		c.sendError(err)
		return
	}
	p.AuthPlayerID = c.authPlayerID
	c.roomID = room.ID
	c.playerID = p.ID

	c.SendJSON(Envelope{T: EvtRoomJoined, Data: JoinedMsg{RoomID: room.ID, PlayerID: p.ID}})
	room.SetClient(p.ID, c)
}

func (c *Client) handleRoomLeave() {
	if c.roomID == "" {
		return
	}
	c.hub.rooms.RemovePlayer(c.roomID, c.playerID)
	c.roomID = ""
	c.playerID = ""
}

func (c *Client) handleRoomStart() {
	room := c.room()
	if room == nil {
		return
	}
	if err := room.Start(c.playerID); err != nil {
		c.sendError(err)
	}
}

func (c *Client) handleRoomList() {
	c.SendJSON(Envelope{T: EvtRoomList, Data: c.hub.rooms.ListRooms()})
}

func (c *Client) handleRoomCheck(data json.RawMessage) {
	var msg RoomCheckMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room := c.hub.rooms.GetRoom(msg.RoomID)
	if room == nil {
		c.SendJSON(Envelope{T: EvtRoomChecked, Data: RoomCheckedMsg{RoomID: msg.RoomID, Exists: false}})
		return
	}
	info := room.Info()
	c.SendJSON(Envelope{T: EvtRoomChecked, Data: RoomCheckedMsg{
		RoomID:  msg.RoomID,
		Exists:  true,
		Name:    info.Name,
		Players: info.Players,
		Private: info.Private,
	}})
}

func (c *Client) room() *Room {
	if c.roomID == "" {
		return nil
	}
	return c.hub.rooms.GetRoom(c.roomID)
}

func (c *Client) handleAddObject(data json.RawMessage) {
	room := c.room()
	if room == nil {
		return
	}
	var msg AddObjectMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if err := room.ApplyAddObject(c.playerID, msg.Object); err != nil {
		c.sendError(err)
	}
}

func (c *Client) handleUpdateObject(data json.RawMessage) {
	room := c.room()
	if room == nil {
		return
	}
	var msg UpdateObjectMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if err := room.ApplyUpdateObject(c.playerID, msg.ObjectID, msg.Changes); err != nil {
		c.sendError(err)
	}
}

func (c *Client) handleDeleteObject(data json.RawMessage) {
	room := c.room()
	if room == nil {
		return
	}
	var msg DeleteObjectMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if err := room.ApplyDeleteObject(c.playerID, msg.ObjectID); err != nil {
		c.sendError(err)
	}
}

func (c *Client) handleAddMarker(data json.RawMessage) {
	room := c.room()
	if room == nil {
		return
	}
	var msg AddMarkerMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if err := room.ApplyAddMarker(c.playerID, msg.Marker); err != nil {
		c.sendError(err)
	}
}

func (c *Client) handleDeleteMarker(data json.RawMessage) {
	room := c.room()
	if room == nil {
		return
	}
	var msg DeleteMarkerMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if err := room.ApplyDeleteMarker(c.playerID, msg.MarkerID); err != nil {
		c.sendError(err)
	}
}

func (c *Client) handleCursor(data json.RawMessage) {
	room := c.room()
	if room == nil {
		return
	}
	var msg CursorMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	room.ApplyCursor(c.playerID, msg)
}

func (c *Client) handleInput(data json.RawMessage) {
	room := c.room()
	if room == nil {
		return
	}
	var input ClientInput
	if err := json.Unmarshal(data, &input); err != nil {
		return
	}
	room.HandleInput(c.playerID, input)
}

func (c *Client) handleChat(data json.RawMessage) {
	room := c.room()
	if room == nil {
		return
	}
	var msg ChatMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	text := msg.Message
	if text == "" {
		return
	}
	if len(text) > maxChatLen {
		text = text[:maxChatLen]
	}
	room.HandleChat(c.playerID, text)
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.sendError(err)
		return
	}
	c.setAuthed(id, msg.Username)
	c.SendJSON(Envelope{T: EvtAuthOK, Data: AuthOKMsg{Token: token, Username: msg.Username, PlayerID: id}})
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.sendError(err)
		return
	}
	c.setAuthed(id, msg.Username)
	c.SendJSON(Envelope{T: EvtAuthOK, Data: AuthOKMsg{Token: token, Username: msg.Username, PlayerID: id}})
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.SendJSON(Envelope{T: EvtError, Data: ErrorMsg{Code: "badToken", Msg: "invalid token"}})
		return
	}
	c.setAuthed(id, username)
	c.SendJSON(Envelope{T: EvtAuthOK, Data: AuthOKMsg{Token: msg.Token, Username: username, PlayerID: id}})
}

func (c *Client) setAuthed(id int64, username string) {
	c.authPlayerID = id
	c.authUsername = username
	c.hub.SetOnline(id, c)
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authPlayerID == 0 {
		c.SendJSON(Envelope{T: EvtError, Data: ErrorMsg{Code: "unauthenticated", Msg: "not authenticated"}})
		return
	}
	stats, err := c.hub.db.GetStats(c.authPlayerID)
	if err != nil || stats == nil {
		c.SendJSON(Envelope{T: EvtError, Data: ErrorMsg{Code: "notFound", Msg: "profile not found"}})
		return
	}
	c.SendJSON(Envelope{T: EvtProfileData, Data: ProfileDataMsg{
		Username: c.authUsername,
		Kills:    stats.Kills,
		Deaths:   stats.Deaths,
		Wins:     stats.Wins,
		Games:    stats.Games,
		Playtime: stats.Playtime,
	}})
}

func (c *Client) handleMapSave(data json.RawMessage) {
	room := c.room()
	if room == nil || c.hub.db == nil {
		return
	}
	var msg MapSaveMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	doc := room.SnapshotMap()
	if msg.Name != "" {
		doc.Name = msg.Name
		if len(doc.Name) > maxRoomNameLen {
			doc.Name = doc.Name[:maxRoomNameLen]
		}
	}
	owner := c.authUsername
	if owner == "" {
		owner = "guest"
	}
	if err := c.hub.db.SaveMap(doc, c.authPlayerID, owner, msg.Public); err != nil {
		c.SendJSON(Envelope{T: EvtError, Data: ErrorMsg{Code: "saveFailed", Msg: "could not save map"}})
		return
	}
	c.SendJSON(Envelope{T: EvtMapSaved, Data: MapSavedMsg{MapID: doc.ID}})
}

func (c *Client) handleMapList() {
	if c.hub.db == nil {
		c.SendJSON(Envelope{T: EvtMapList, Data: []MapInfo{}})
		return
	}
	maps, err := c.hub.db.ListPublicMaps(maxListedMaps)
	if err != nil {
		c.SendJSON(Envelope{T: EvtError, Data: ErrorMsg{Code: "listFailed", Msg: "could not list maps"}})
		return
	}
	if maps == nil {
		maps = []MapInfo{}
	}
	c.SendJSON(Envelope{T: EvtMapList, Data: maps})
}
