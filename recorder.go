package main

import (
	"log"
	"sync"
)

// GameRecordPlayer is one player's line in a finished match record
type GameRecordPlayer struct {
	AuthPlayerID int64
	Name         string
	Team         int
	Kills        int
	Deaths       int
	Score        int
	Won          bool
}

// GameRecord is a finished match ready for persistence
type GameRecord struct {
	RoomID     string
	MapID      string
	Mode       int
	Duration   float64
	WinnerTeam int
	WinnerName string
	Draw       bool
	Players    []GameRecordPlayer
}

// Recorder persists finished matches off the game loop
type Recorder struct {
	db      *DB
	records chan GameRecord
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewRecorder creates and starts the record background writer
func NewRecorder(db *DB) *Recorder {
	r := &Recorder{
		db:      db,
		records: make(chan GameRecord, 256),
		stop:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.writer()
	return r
}

// Track enqueues a finished match for async persistence (non-blocking)
func (r *Recorder) Track(rec GameRecord) {
	select {
	case r.records <- rec:
	default:
		// Channel full — drop record rather than blocking the tick loop
		log.Printf("recorder: queue full, dropping record for room %s", rec.RoomID)
	}
}

// Stop gracefully shuts down the writer, draining queued records
func (r *Recorder) Stop() {
	close(r.stop)
	r.wg.Wait()
}

func (r *Recorder) writer() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.records:
			r.persist(rec)
		case <-r.stop:
			close(r.records)
			for rec := range r.records {
				r.persist(rec)
			}
			return
		}
	}
}

func (r *Recorder) persist(rec GameRecord) {
	if r.db == nil {
		return
	}
	if err := r.db.AppendGameRecord(rec); err != nil {
		log.Printf("recorder: record insert error: %v", err)
		return
	}
	if rec.MapID != "" {
		if err := r.db.IncrementMapPlays(rec.MapID); err != nil {
			log.Printf("recorder: map plays error: %v", err)
		}
	}
	for _, rp := range rec.Players {
		if rp.AuthPlayerID <= 0 {
			continue // guests have no durable stats
		}
		if err := r.db.UpdateStatsAfterGame(rp.AuthPlayerID, rp.Kills, rp.Deaths, rp.Won, rec.Duration); err != nil {
			log.Printf("recorder: stats update error: %v", err)
		}
	}
}
