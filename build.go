package main

import (
	"time"

	"golang.org/x/time/rate"
)

// Per-player edit throttle: sustained edit storms are dropped silently;
// a legitimate builder stays well under this.
const (
	editRatePerSec = 20
	editBurst      = 40
)

// BuildSession manages the collaborative edit phase of one room. Edits
// apply in arrival order under the room lock and are broadcast
// synchronously; only the full-document sync is restricted to late
// joiners. The wall-clock timer runs outside the tick loop.
type BuildSession struct {
	room          *Room
	allowAllEdit  bool
	timeRemaining float64
	extended      bool
	limiters      map[string]*rate.Limiter
	stopTimer     chan struct{}
}

// NewBuildSession starts a build phase over the room's map document
func NewBuildSession(r *Room, buildTime float64) *BuildSession {
	return &BuildSession{
		room:          r,
		allowAllEdit:  r.buildAllowAll,
		timeRemaining: buildTime,
		limiters:      make(map[string]*rate.Limiter),
		stopTimer:     make(chan struct{}),
	}
}

// TimeRemaining is read under the room lock
func (b *BuildSession) TimeRemaining() float64 { return b.timeRemaining }

// DropPlayer forgets a leaver's limiter state
func (b *BuildSession) DropPlayer(playerID string) {
	delete(b.limiters, playerID)
}

func (b *BuildSession) allow(playerID string) bool {
	lim, ok := b.limiters[playerID]
	if !ok {
		lim = rate.NewLimiter(editRatePerSec, editBurst)
		b.limiters[playerID] = lim
	}
	return lim.Allow()
}

// authorize enforces the edit policy: host-only unless allowAllEdit
func (b *BuildSession) authorize(playerID string) error {
	if !b.allowAllEdit && playerID != b.room.HostID {
		return errForbidden
	}
	return nil
}

// ApplyAddObject applies and broadcasts one addObject op
func (r *Room) ApplyAddObject(playerID string, obj MapObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.editableBuildLocked(playerID)
	if err != nil {
		return err
	}
	if !b.allow(playerID) {
		return nil // edit storm, dropped silently
	}
	added, err := r.mapDoc.AddObject(obj)
	if err != nil {
		return err
	}
	r.broadcastEventLocked(EvtBuildObjectAdded, AddObjectMsg{Object: added})
	return nil
}

// ApplyUpdateObject applies and broadcasts one updateObject op
func (r *Room) ApplyUpdateObject(playerID, objectID string, patch MapObjectPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.editableBuildLocked(playerID)
	if err != nil {
		return err
	}
	if !b.allow(playerID) {
		return nil
	}
	obj, err := r.mapDoc.UpdateObject(objectID, patch)
	if err != nil {
		return err
	}
	r.broadcastEventLocked(EvtBuildObjectUpdated, AddObjectMsg{Object: obj})
	return nil
}

// ApplyDeleteObject applies and broadcasts one deleteObject op.
// Deleting an id that is already gone is a no-op, not an error.
func (r *Room) ApplyDeleteObject(playerID, objectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.editableBuildLocked(playerID)
	if err != nil {
		return err
	}
	if !b.allow(playerID) {
		return nil
	}
	if err := r.mapDoc.DeleteObject(objectID); err != nil {
		return err
	}
	r.broadcastEventLocked(EvtBuildObjectDeleted, DeleteObjectMsg{ObjectID: objectID})
	return nil
}

// ApplyAddMarker applies and broadcasts one addMarker op
func (r *Room) ApplyAddMarker(playerID string, mk Marker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.editableBuildLocked(playerID)
	if err != nil {
		return err
	}
	if !b.allow(playerID) {
		return nil
	}
	added, err := r.mapDoc.AddMarker(mk)
	if err != nil {
		return err
	}
	r.broadcastEventLocked(EvtBuildMarkerAdded, AddMarkerMsg{Marker: added})
	return nil
}

// ApplyDeleteMarker applies and broadcasts one deleteMarker op
func (r *Room) ApplyDeleteMarker(playerID, markerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.editableBuildLocked(playerID)
	if err != nil {
		return err
	}
	if !b.allow(playerID) {
		return nil
	}
	if err := r.mapDoc.DeleteMarker(markerID); err != nil {
		return err
	}
	r.broadcastEventLocked(EvtBuildMarkerDeleted, DeleteMarkerMsg{MarkerID: markerID})
	return nil
}

// ApplyCursor relays build-presence cursors. Not an edit: always
// allowed for members, throttled like edits.
func (r *Room) ApplyCursor(playerID string, msg CursorMsg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.build == nil || r.Status != StatusBuilding {
		return
	}
	if _, ok := r.players[playerID]; !ok {
		return
	}
	if !r.build.allow(playerID) {
		return
	}
	msg.PlayerID = playerID
	r.broadcastEventLocked(EvtBuildCursor, msg)
}

// editableBuildLocked gates edits on status, membership and policy
func (r *Room) editableBuildLocked(playerID string) (*BuildSession, error) {
	if r.build == nil || r.Status != StatusBuilding {
		return nil, errInvalidState
	}
	if _, ok := r.players[playerID]; !ok {
		return nil, errRoomNotFound
	}
	if err := r.build.authorize(playerID); err != nil {
		return nil, err
	}
	return r.build, nil
}

// RunTimer decrements the build clock once per wall-clock second. When
// it reaches zero the map is validated: a valid map starts play, an
// invalid one extends the timer by the grace window instead of forcing
// a start.
func (b *BuildSession) RunTimer() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if b.step() {
				return
			}
		case <-b.stopTimer:
			return
		}
	}
}

// step advances the clock one second; returns true when the timer is done
func (b *BuildSession) step() bool {
	r := b.room
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status != StatusBuilding {
		return true
	}
	b.timeRemaining--
	if b.timeRemaining > 0 {
		r.broadcastEventLocked(EvtBuildTime, BuildTimeMsg{Remaining: b.timeRemaining})
		return false
	}

	if err := r.mapDoc.Validate(r.GameMode); err != nil {
		b.timeRemaining = BuildGraceExtension
		b.extended = true
		r.broadcastEventLocked(EvtBuildTime, BuildTimeMsg{
			Remaining: b.timeRemaining,
			Extended:  true,
		})
		return false
	}
	r.startPlayLocked()
	return true
}

// StopTimer halts the wall-clock timer goroutine
func (b *BuildSession) StopTimer() {
	select {
	case <-b.stopTimer:
	default:
		close(b.stopTimer)
	}
}
