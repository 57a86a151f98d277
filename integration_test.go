package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func startTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>arena</html>"), 0644); err != nil {
		t.Fatal(err)
	}
	db, err := OpenDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	hub := NewHub(db)
	go hub.Run()
	srv := httptest.NewServer(SetupRoutes(hub, dir))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		db.Close()
	})
	return srv, hub
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, typ string, data interface{}) {
	t.Helper()
	if err := conn.WriteJSON(Envelope{T: typ, Data: data}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readUntil reads messages until one with the wanted type arrives,
// skipping binary state frames and unrelated events
func readUntil(t *testing.T, conn *websocket.Conn, want string) InEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if kind == websocket.BinaryMessage {
			continue
		}
		var env InEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		if env.T == want {
			return env
		}
	}
}

// readBinaryState reads until a binary frame arrives and decodes it
func readBinaryState(t *testing.T, conn *websocket.Conn) GameState {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for state frame: %v", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		var state GameState
		if err := msgpack.Unmarshal(raw, &state); err != nil {
			t.Fatalf("state decode: %v", err)
		}
		return state
	}
}

func dataMap(t *testing.T, env InEnvelope) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	if err := json.Unmarshal(env.D, &out); err != nil {
		t.Fatalf("decode %s payload: %v", env.T, err)
	}
	return out
}

func createRoom(t *testing.T, conn *websocket.Conn, msg RoomCreateMsg) (roomID, playerID string) {
	t.Helper()
	sendMsg(t, conn, MsgRoomCreate, msg)
	created := dataMap(t, readUntil(t, conn, EvtRoomCreated))
	roomID, _ = created["roomId"].(string)
	playerID, _ = created["playerId"].(string)
	if roomID == "" || playerID == "" {
		t.Fatalf("create should return ids, got %+v", created)
	}
	return roomID, playerID
}

func TestWSCreateRoom(t *testing.T) {
	srv, hub := startTestServer(t)
	conn := dialWS(t, srv)

	roomID, playerID := createRoom(t, conn, RoomCreateMsg{PlayerName: "Tester", GameMode: ModeDeathmatch})
	if !uuidRegex.MatchString(roomID) {
		t.Errorf("room id should be a UUID, got %q", roomID)
	}

	state := dataMap(t, readUntil(t, conn, EvtRoomState))
	if state["hostId"] != playerID {
		t.Errorf("creator should be host, got %v", state["hostId"])
	}
	members, _ := state["members"].([]interface{})
	if len(members) != 1 {
		t.Errorf("room should have one member, got %d", len(members))
	}
	if hub.rooms.GetRoom(roomID) == nil {
		t.Error("room should be registered")
	}
}

func TestWSJoinAndCheck(t *testing.T) {
	srv, _ := startTestServer(t)
	host := dialWS(t, srv)
	roomID, _ := createRoom(t, host, RoomCreateMsg{PlayerName: "Host"})

	guest := dialWS(t, srv)
	sendMsg(t, guest, MsgRoomCheck, RoomCheckMsg{RoomID: roomID})
	checked := dataMap(t, readUntil(t, guest, EvtRoomChecked))
	if checked["exists"] != true {
		t.Errorf("existing room should check true, got %+v", checked)
	}
	sendMsg(t, guest, MsgRoomCheck, RoomCheckMsg{RoomID: "missing"})
	checked = dataMap(t, readUntil(t, guest, EvtRoomChecked))
	if exists, _ := checked["exists"].(bool); exists {
		t.Error("missing room should check false")
	}

	sendMsg(t, guest, MsgRoomJoin, RoomJoinMsg{RoomID: roomID, PlayerName: "Guest"})
	joined := dataMap(t, readUntil(t, guest, EvtRoomJoined))
	if joined["roomId"] != roomID {
		t.Errorf("join should echo the room id, got %+v", joined)
	}

	// The host observes the join
	joinEvt := dataMap(t, readUntil(t, host, EvtRoomPlayerJoin))
	if joinEvt["name"] != "Guest" {
		t.Errorf("host should see the joiner, got %+v", joinEvt)
	}
}

func TestWSJoinUnknownRoomError(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialWS(t, srv)
	sendMsg(t, conn, MsgRoomJoin, RoomJoinMsg{RoomID: "nope", PlayerName: "Guest"})
	errEnv := dataMap(t, readUntil(t, conn, EvtError))
	if errEnv["code"] != "roomNotFound" {
		t.Errorf("expected roomNotFound, got %+v", errEnv)
	}
}

func TestWSRoomList(t *testing.T) {
	srv, _ := startTestServer(t)
	host := dialWS(t, srv)
	createRoom(t, host, RoomCreateMsg{RoomName: "Visible"})

	other := dialWS(t, srv)
	sendMsg(t, other, MsgRoomList, nil)
	env := readUntil(t, other, EvtRoomList)
	var list []RoomInfo
	if err := json.Unmarshal(env.D, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "Visible" {
		t.Errorf("lobby should list the public room, got %+v", list)
	}
}

func TestWSStartSoloDeathmatch(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialWS(t, srv)
	_, playerID := createRoom(t, conn, RoomCreateMsg{PlayerName: "Solo", GameMode: ModeDeathmatch})

	sendMsg(t, conn, MsgRoomStart, nil)
	readUntil(t, conn, EvtGameStart)

	state := readBinaryState(t, conn)
	if len(state.Players) != 1 || state.Players[0].ID != playerID {
		t.Fatalf("state should carry the lone player, got %+v", state.Players)
	}
	if state.Players[0].Weapon == "" || state.Players[0].HP != PlayerMaxHP {
		t.Errorf("player should spawn armed at full health, got %+v", state.Players[0])
	}

	// Ticks advance
	first := state.Tick
	second := readBinaryState(t, conn).Tick
	if second <= first {
		t.Errorf("tick counter should advance, %d -> %d", first, second)
	}

	// Input flows into the simulation once the countdown ends
	startZ := state.Players[0].Pos.Z
	sendMsg(t, conn, MsgPlayerInput, ClientInput{MoveZ: 1, Yaw: 0})
	deadline := time.Now().Add(6 * time.Second)
	moved := false
	for time.Now().Before(deadline) {
		s := readBinaryState(t, conn)
		if len(s.Players) == 1 && s.Players[0].Pos.Z > startZ+0.01 {
			moved = true
			break
		}
	}
	if !moved {
		t.Error("forward input should move the player")
	}
}

func TestWSNonHostStartRejected(t *testing.T) {
	srv, _ := startTestServer(t)
	host := dialWS(t, srv)
	roomID, _ := createRoom(t, host, RoomCreateMsg{PlayerName: "Host"})

	guest := dialWS(t, srv)
	sendMsg(t, guest, MsgRoomJoin, RoomJoinMsg{RoomID: roomID, PlayerName: "Guest"})
	readUntil(t, guest, EvtRoomJoined)

	sendMsg(t, guest, MsgRoomStart, nil)
	errEnv := dataMap(t, readUntil(t, guest, EvtError))
	if errEnv["code"] != "notHost" {
		t.Errorf("expected notHost, got %+v", errEnv)
	}
}

func TestWSChatRelay(t *testing.T) {
	srv, _ := startTestServer(t)
	host := dialWS(t, srv)
	roomID, _ := createRoom(t, host, RoomCreateMsg{PlayerName: "Host"})

	guest := dialWS(t, srv)
	sendMsg(t, guest, MsgRoomJoin, RoomJoinMsg{RoomID: roomID, PlayerName: "Guest"})
	readUntil(t, guest, EvtRoomJoined)

	sendMsg(t, guest, MsgPlayerChat, ChatMsg{Message: "gl hf"})
	chat := dataMap(t, readUntil(t, host, EvtChat))
	if chat["message"] != "gl hf" || chat["name"] != "Guest" {
		t.Errorf("chat should relay with the sender name, got %+v", chat)
	}
}

func TestWSInputBeforeJoinIgnored(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialWS(t, srv)
	sendMsg(t, conn, MsgPlayerInput, ClientInput{MoveZ: 1})
	sendMsg(t, conn, MsgPlayerChat, ChatMsg{Message: "hello?"})

	// The connection survives and still serves requests
	sendMsg(t, conn, MsgRoomList, nil)
	readUntil(t, conn, EvtRoomList)
}

func TestWSRegisterLoginProfile(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialWS(t, srv)

	sendMsg(t, conn, MsgRegister, RegisterMsg{Username: "alice", Password: "secret1"})
	ok := dataMap(t, readUntil(t, conn, EvtAuthOK))
	token, _ := ok["token"].(string)
	if token == "" || ok["username"] != "alice" {
		t.Fatalf("register should return a session, got %+v", ok)
	}

	sendMsg(t, conn, MsgProfile, nil)
	profile := dataMap(t, readUntil(t, conn, EvtProfileData))
	if profile["username"] != "alice" {
		t.Errorf("profile should belong to the session, got %+v", profile)
	}

	// Token resume on a fresh connection
	conn2 := dialWS(t, srv)
	sendMsg(t, conn2, MsgAuth, AuthMsg{Token: token})
	ok2 := dataMap(t, readUntil(t, conn2, EvtAuthOK))
	if ok2["username"] != "alice" {
		t.Errorf("token resume should restore the session, got %+v", ok2)
	}

	conn3 := dialWS(t, srv)
	sendMsg(t, conn3, MsgAuth, AuthMsg{Token: "garbage"})
	errEnv := dataMap(t, readUntil(t, conn3, EvtError))
	if errEnv["code"] != "badToken" {
		t.Errorf("garbage token should fail with badToken, got %+v", errEnv)
	}
}

func TestWSAuthedNameOverridesRequested(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialWS(t, srv)
	sendMsg(t, conn, MsgRegister, RegisterMsg{Username: "bob", Password: "secret1"})
	readUntil(t, conn, EvtAuthOK)

	createRoom(t, conn, RoomCreateMsg{PlayerName: "Impostor"})
	state := dataMap(t, readUntil(t, conn, EvtRoomState))
	members, _ := state["members"].([]interface{})
	if len(members) != 1 {
		t.Fatalf("expected one member, got %d", len(members))
	}
	member, _ := members[0].(map[string]interface{})
	if member["name"] != "bob" {
		t.Errorf("account name should override the requested name, got %v", member["name"])
	}
}

func TestWSMapSaveAndList(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialWS(t, srv)
	createRoom(t, conn, RoomCreateMsg{
		PlayerName: "Builder",
		RoomMode:   RoomModeCollabBuild,
	})
	sendMsg(t, conn, MsgRoomStart, nil) // enter building
	readUntil(t, conn, EvtRoomState)

	sendMsg(t, conn, MsgBuildAddObject, AddObjectMsg{Object: MapObject{Kind: "box", Collidable: true}})
	readUntil(t, conn, EvtBuildObjectAdded)

	sendMsg(t, conn, MsgMapSave, MapSaveMsg{Name: "My Arena", Public: true})
	saved := dataMap(t, readUntil(t, conn, EvtMapSaved))
	mapID, _ := saved["mapId"].(string)
	if mapID == "" {
		t.Fatalf("save should return a map id, got %+v", saved)
	}

	sendMsg(t, conn, MsgMapList, nil)
	env := readUntil(t, conn, EvtMapList)
	var list []MapInfo
	if err := json.Unmarshal(env.D, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != mapID || list[0].Name != "My Arena" {
		t.Errorf("saved public map should list, got %+v", list)
	}
}

func TestQREndpoint(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialWS(t, srv)
	roomID, _ := createRoom(t, conn, RoomCreateMsg{PlayerName: "Host"})

	resp, err := http.Get(srv.URL + "/qr/" + roomID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("existing room QR should be 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("QR should be a PNG, got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Error("QR body should not be empty")
	}

	resp2, err := http.Get(srv.URL + "/qr/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("unknown room QR should 404, got %d", resp2.StatusCode)
	}
}

func TestSPARouting(t *testing.T) {
	srv, _ := startTestServer(t)

	for _, path := range []string{"/", "/" + GenerateUUID()} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "arena") {
			t.Errorf("%s should serve the SPA shell, got %d %q", path, resp.StatusCode, body)
		}
		if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
			t.Errorf("%s should be no-cache, got %q", path, cc)
		}
	}
}

func TestGenerateIDs(t *testing.T) {
	if !uuidRegex.MatchString(GenerateUUID()) {
		t.Error("GenerateUUID should produce a v4-format id")
	}
	if id := GenerateID(4); len(id) != 8 {
		t.Errorf("GenerateID(4) should be 8 hex chars, got %q", id)
	}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateID(8)
		if seen[id] {
			t.Fatal("ids should not repeat")
		}
		seen[id] = true
	}
}

func TestClampTable(t *testing.T) {
	cases := []struct{ v, min, max, want float64 }{
		{5, 0, 10, 5},
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
		{0, 0, 10, 0},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.min, c.max); got != c.want {
			t.Errorf("Clamp(%v,%v,%v) = %v, want %v", c.v, c.min, c.max, got, c.want)
		}
	}
}
