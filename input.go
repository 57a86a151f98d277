package main

// ClientInput is the raw per-client input message, sent by clients at
// their own rate (typically 20Hz). See protocol.go for the envelope.
type ClientInput struct {
	MoveX    float64 `json:"mx"` // strafe axis, -1..1
	MoveZ    float64 `json:"mz"` // forward axis, -1..1
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
	Run      bool    `json:"run"`
	Jump     bool    `json:"jump"`
	Dash     bool    `json:"dash"`
	Fire     bool    `json:"fire"`
	Reload   bool    `json:"reload"`
	SitT     bool    `json:"sit"`   // posture toggle request
	CrawlT   bool    `json:"crawl"` // posture toggle request
	AimState int     `json:"aim"`   // 0 none, 1 hold, 2 toggle
	FireTime int64   `json:"ft"`    // client ms timestamp of the fire press
}

// InputIntent is the structured snapshot the simulation consumes once
// per tick. Continuous channels are latest-wins; discrete actions are
// edge-triggered flags accumulated between ticks and consumed exactly
// once by the next tick.
type InputIntent struct {
	MoveX, MoveZ float64
	Yaw, Pitch   float64
	Run          bool
	AimState     int

	Jump   bool
	Dash   bool
	Fire   bool
	Reload bool
	SitT   bool
	CrawlT bool

	FireTime int64 // client timestamp for lag-compensated hit lookback
}

// Merge folds a newly arrived input into the pending intent. Axes and
// held states overwrite; action flags OR so a press between two ticks is
// never lost.
func (in *InputIntent) Merge(raw ClientInput) {
	in.MoveX = Clamp(raw.MoveX, -1, 1)
	in.MoveZ = Clamp(raw.MoveZ, -1, 1)
	in.Yaw = raw.Yaw
	in.Pitch = Clamp(raw.Pitch, -1.55, 1.55)
	in.Run = raw.Run
	if raw.AimState >= AimNone && raw.AimState <= AimToggle {
		in.AimState = raw.AimState
	}
	in.Jump = in.Jump || raw.Jump
	in.Dash = in.Dash || raw.Dash
	in.Reload = in.Reload || raw.Reload
	in.SitT = in.SitT || raw.SitT
	in.CrawlT = in.CrawlT || raw.CrawlT
	if raw.Fire {
		in.Fire = true
		in.FireTime = raw.FireTime
	}
}

// Consume returns the intent for this tick and clears the edge flags,
// keeping the continuous channels for the next tick.
func (in *InputIntent) Consume() InputIntent {
	out := *in
	in.Jump = false
	in.Dash = false
	in.Fire = false
	in.Reload = false
	in.SitT = false
	in.CrawlT = false
	return out
}
