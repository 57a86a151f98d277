package main

import (
	"errors"
	"fmt"
)

// Game modes
const (
	ModeRace           = 0
	ModeDeathmatch     = 1
	ModeTeamDeathmatch = 2
	ModeDomination     = 3
)

// Room modes
const (
	RoomModeCommunityMap = "communityMap"
	RoomModeCollabBuild  = "collaborativeBuild"
)

// Team constants
const (
	TeamNone = 0
	TeamRed  = 1
	TeamBlue = 2
)

// Marker kinds
const (
	MarkerSpawn      = "spawn"
	MarkerRaceStart  = "raceStart"
	MarkerRaceEnd    = "raceEnd"
	MarkerCheckpoint = "checkpoint"
	MarkerCapture    = "capturePoint"
)

// MarkerRadius is the horizontal radius within which a marker counts as
// crossed or occupied (race lines, capture presence).
const MarkerRadius = 2.5

var (
	errObjectNotFound = errors.New("object not found")
	errMapFrozen      = errors.New("map is frozen")
	errMapInvalid     = errors.New("map invalid")
)

// MapObject is one placed geometric primitive. Collision treats every
// collidable object as the AABB of Pos +/- Size/2; rotation is a visual
// property only.
type MapObject struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"` // box, ramp, cylinder, decoration
	Pos        Vec3    `json:"pos"`
	Size       Vec3    `json:"size"`
	YawDeg     float64 `json:"yawDeg"`
	Color      string  `json:"color"`
	Collidable bool    `json:"collidable"`
}

// MapObjectPatch carries the fields an updateObject op may change
type MapObjectPatch struct {
	Pos    *Vec3    `json:"pos,omitempty"`
	Size   *Vec3    `json:"size,omitempty"`
	YawDeg *float64 `json:"yawDeg,omitempty"`
	Color  *string  `json:"color,omitempty"`
}

// Marker is a typed gameplay point (spawn, race line, capture point)
type Marker struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Pos  Vec3   `json:"pos"`
	Team int    `json:"team"` // TeamNone for shared markers
	Ord  int    `json:"ord"`  // checkpoint ordering
}

// AABB returns an object's collision bounds
func (o *MapObject) AABB() (Vec3, Vec3) {
	half := o.Size.Scale(0.5)
	return o.Pos.Sub(half), o.Pos.Add(half)
}

// MapDocument is the shared mutable map a build session edits. Not
// self-locking: the owning Room serializes access.
type MapDocument struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Objects []MapObject `json:"objects"`
	Markers []Marker    `json:"markers"`

	frozen bool
}

// NewMapDocument creates an empty named map
func NewMapDocument(name string) *MapDocument {
	return &MapDocument{ID: GenerateUUID(), Name: name}
}

// Freeze makes the document read-only for the play phase
func (m *MapDocument) Freeze() { m.frozen = true }

// Frozen reports whether edits are still accepted
func (m *MapDocument) Frozen() bool { return m.frozen }

// AddObject appends an object, assigning an id if the client sent none
func (m *MapDocument) AddObject(obj MapObject) (MapObject, error) {
	if m.frozen {
		return MapObject{}, errMapFrozen
	}
	if obj.ID == "" {
		obj.ID = GenerateUUID()
	} else if i := m.findObject(obj.ID); i >= 0 {
		// Last write wins on a given id
		m.Objects[i] = obj
		return obj, nil
	}
	m.Objects = append(m.Objects, obj)
	return obj, nil
}

// UpdateObject applies a partial change to an existing object
func (m *MapDocument) UpdateObject(id string, patch MapObjectPatch) (MapObject, error) {
	if m.frozen {
		return MapObject{}, errMapFrozen
	}
	i := m.findObject(id)
	if i < 0 {
		return MapObject{}, errObjectNotFound
	}
	obj := &m.Objects[i]
	if patch.Pos != nil {
		obj.Pos = *patch.Pos
	}
	if patch.Size != nil {
		obj.Size = *patch.Size
	}
	if patch.YawDeg != nil {
		obj.YawDeg = *patch.YawDeg
	}
	if patch.Color != nil {
		obj.Color = *patch.Color
	}
	return *obj, nil
}

// DeleteObject removes an object. Deleting a missing id is a no-op so a
// re-delivered delete never errors.
func (m *MapDocument) DeleteObject(id string) error {
	if m.frozen {
		return errMapFrozen
	}
	i := m.findObject(id)
	if i < 0 {
		return nil
	}
	m.Objects = append(m.Objects[:i], m.Objects[i+1:]...)
	return nil
}

// AddMarker appends a marker, assigning an id if needed
func (m *MapDocument) AddMarker(mk Marker) (Marker, error) {
	if m.frozen {
		return Marker{}, errMapFrozen
	}
	if mk.ID == "" {
		mk.ID = GenerateUUID()
	}
	m.Markers = append(m.Markers, mk)
	return mk, nil
}

// DeleteMarker removes a marker; missing ids are a no-op
func (m *MapDocument) DeleteMarker(id string) error {
	if m.frozen {
		return errMapFrozen
	}
	for i := range m.Markers {
		if m.Markers[i].ID == id {
			m.Markers = append(m.Markers[:i], m.Markers[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MapDocument) findObject(id string) int {
	for i := range m.Objects {
		if m.Objects[i].ID == id {
			return i
		}
	}
	return -1
}

// MarkersOf returns all markers of a kind, optionally team-filtered
// (team < 0 matches any team)
func (m *MapDocument) MarkersOf(kind string, team int) []Marker {
	var out []Marker
	for _, mk := range m.Markers {
		if mk.Kind == kind && (team < 0 || mk.Team == team) {
			out = append(out, mk)
		}
	}
	return out
}

// Validate checks the mode-specific required-marker set. Returns nil
// when the map can enter play for the given mode.
func (m *MapDocument) Validate(mode int) error {
	switch mode {
	case ModeRace:
		if len(m.MarkersOf(MarkerRaceStart, -1)) == 0 {
			return fmt.Errorf("%w: race map needs at least one start marker", errMapInvalid)
		}
		if len(m.MarkersOf(MarkerRaceEnd, -1)) == 0 {
			return fmt.Errorf("%w: race map needs at least one end marker", errMapInvalid)
		}
	case ModeDeathmatch:
		if len(m.MarkersOf(MarkerSpawn, -1)) == 0 {
			return fmt.Errorf("%w: map needs at least one spawn marker", errMapInvalid)
		}
	case ModeTeamDeathmatch:
		if len(m.MarkersOf(MarkerSpawn, TeamRed)) == 0 ||
			len(m.MarkersOf(MarkerSpawn, TeamBlue)) == 0 {
			return fmt.Errorf("%w: team map needs spawn markers for both teams", errMapInvalid)
		}
	case ModeDomination:
		if len(m.MarkersOf(MarkerSpawn, TeamRed)) == 0 ||
			len(m.MarkersOf(MarkerSpawn, TeamBlue)) == 0 {
			return fmt.Errorf("%w: team map needs spawn markers for both teams", errMapInvalid)
		}
		if len(m.MarkersOf(MarkerCapture, -1)) == 0 {
			return fmt.Errorf("%w: domination map needs at least one capture point", errMapInvalid)
		}
	}
	return nil
}

// Snapshot returns a deep copy for full-document sync to late joiners
func (m *MapDocument) Snapshot() MapDocument {
	cp := MapDocument{ID: m.ID, Name: m.Name}
	cp.Objects = append([]MapObject(nil), m.Objects...)
	cp.Markers = append([]Marker(nil), m.Markers...)
	return cp
}
