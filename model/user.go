package model

import "github.com/skyfieldworks/airground-lb/core"

// User is a mobile user with a traffic demand and QoS thresholds.
// Positions are updated by the external mobility simulation between
// solver calls.
type User struct {
	UserID    string
	Pos       core.Position3D
	DataRate  float64 // demanded bit rate, bit/s

	MaxAcceptableLatencyMs float64
	MinRequiredThroughput  float64 // bit/s
}

// Snapshot resolves the user into the read-only form consumed by the core
// and solver packages.
func (u *User) Snapshot() core.UserInfo {
	return core.UserInfo{
		ID:               u.UserID,
		Pos:              u.Pos,
		DemandBps:        u.DataRate,
		MaxLatencyMs:     u.MaxAcceptableLatencyMs,
		MinThroughputBps: u.MinRequiredThroughput,
	}
}
