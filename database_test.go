package main

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSettingsRoundtrip(t *testing.T) {
	db := openTestDB(t)
	if got := db.GetSetting("missing"); got != "" {
		t.Errorf("absent key should read empty, got %q", got)
	}
	if err := db.SetSetting("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSetting("k", "v2"); err != nil {
		t.Fatal(err)
	}
	if got := db.GetSetting("k"); got != "v2" {
		t.Errorf("set should upsert, got %q", got)
	}
}

func TestCreateAndFetchPlayer(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreatePlayer("alice", "hash")
	if err != nil {
		t.Fatal(err)
	}
	if id <= 0 {
		t.Fatalf("expected a positive id, got %d", id)
	}

	p, err := db.GetPlayerByUsername("alice")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.ID != id || p.PassHash != "hash" {
		t.Errorf("fetched player mismatch: %+v", p)
	}

	missing, err := db.GetPlayerByUsername("nobody")
	if err != nil || missing != nil {
		t.Errorf("absent player should be nil without error, got %+v %v", missing, err)
	}

	exists, err := db.UsernameExists("alice")
	if err != nil || !exists {
		t.Error("username should exist")
	}
	if _, err := db.CreatePlayer("alice", "other"); err == nil {
		t.Error("duplicate username should fail")
	}

	// A fresh account gets a zeroed stats row
	s, err := db.GetStats(id)
	if err != nil {
		t.Fatal(err)
	}
	if s == nil || s.Kills != 0 || s.Games != 0 {
		t.Errorf("fresh stats should be zeroed, got %+v", s)
	}
}

func TestUpdateStatsAfterGame(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.CreatePlayer("bob", "hash")
	if err := db.UpdateStatsAfterGame(id, 5, 2, true, 120); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateStatsAfterGame(id, 3, 4, false, 60); err != nil {
		t.Fatal(err)
	}
	s, err := db.GetStats(id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Kills != 8 || s.Deaths != 6 || s.Wins != 1 || s.Games != 2 || s.Playtime != 180 {
		t.Errorf("stats should accumulate, got %+v", s)
	}
}

func TestSaveLoadMap(t *testing.T) {
	db := openTestDB(t)
	doc := NewMapDocument("Fortress")
	doc.AddObject(MapObject{Kind: "box", Pos: Vec3{X: 1}, Collidable: true})
	doc.AddMarker(Marker{Kind: MarkerSpawn})

	if err := db.SaveMap(doc.Snapshot(), 1, "alice", true); err != nil {
		t.Fatal(err)
	}
	loaded, err := db.LoadMap(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "Fortress" || len(loaded.Objects) != 1 || len(loaded.Markers) != 1 {
		t.Errorf("loaded map mismatch: %+v", loaded)
	}
	if loaded.Objects[0].Pos.X != 1 || !loaded.Objects[0].Collidable {
		t.Errorf("object fields should survive, got %+v", loaded.Objects[0])
	}

	// Saving again under the same id overwrites
	doc.Name = "Fortress v2"
	if err := db.SaveMap(doc.Snapshot(), 1, "alice", true); err != nil {
		t.Fatal(err)
	}
	loaded, _ = db.LoadMap(doc.ID)
	if loaded.Name != "Fortress v2" {
		t.Errorf("save should upsert, got %q", loaded.Name)
	}

	if _, err := db.LoadMap("missing"); !errors.Is(err, errMapNotFound) {
		t.Errorf("missing map should be errMapNotFound, got %v", err)
	}
}

func TestListPublicMaps(t *testing.T) {
	db := openTestDB(t)
	public := NewMapDocument("Public")
	public.AddObject(MapObject{Kind: "box"})
	private := NewMapDocument("Private")
	db.SaveMap(public.Snapshot(), 1, "alice", true)
	db.SaveMap(private.Snapshot(), 1, "alice", false)
	db.IncrementMapPlays(public.ID)

	list, err := db.ListPublicMaps(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("only public maps should list, got %d", len(list))
	}
	got := list[0]
	if got.Name != "Public" || got.Owner != "alice" || got.Plays != 1 || got.Objects != 1 {
		t.Errorf("listing mismatch: %+v", got)
	}
}

func TestAppendGameRecord(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.CreatePlayer("carol", "hash")
	rec := GameRecord{
		RoomID:     "room1",
		Mode:       ModeDeathmatch,
		Duration:   90,
		WinnerName: "carol",
		Players: []GameRecordPlayer{
			{AuthPlayerID: id, Name: "carol", Kills: 7, Deaths: 1, Score: 7, Won: true},
			{AuthPlayerID: 0, Name: "Guest_ab12", Kills: 1, Deaths: 7, Score: 1},
		},
	}
	if err := db.AppendGameRecord(rec); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM record_players").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("every participant should get a record row, got %d", count)
	}
}

func TestRecorderPersistsAndSkipsGuests(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.CreatePlayer("dave", "hash")
	rec := NewRecorder(db)

	doc := NewMapDocument("Tracked")
	db.SaveMap(doc.Snapshot(), id, "dave", true)

	rec.Track(GameRecord{
		RoomID:   "room1",
		MapID:    doc.ID,
		Mode:     ModeDeathmatch,
		Duration: 45,
		Players: []GameRecordPlayer{
			{AuthPlayerID: id, Name: "dave", Kills: 3, Won: true},
			{AuthPlayerID: 0, Name: "Guest_0000", Kills: 1},
		},
	})
	rec.Stop() // drains the queue

	s, err := db.GetStats(id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Games != 1 || s.Kills != 3 || s.Wins != 1 || s.Playtime != 45 {
		t.Errorf("recorder should fold the match into stats, got %+v", s)
	}

	list, _ := db.ListPublicMaps(10)
	if len(list) != 1 || list[0].Plays != 1 {
		t.Errorf("recorder should bump map plays, got %+v", list)
	}

	var guests int
	db.conn.QueryRow("SELECT COUNT(*) FROM stats").Scan(&guests)
	if guests != 1 {
		t.Errorf("guests must not get stats rows, have %d", guests)
	}
}

func TestRecorderNilDB(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Track(GameRecord{RoomID: "room1"})
	done := make(chan struct{})
	go func() {
		rec.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder stop should drain quickly with no db")
	}
}
