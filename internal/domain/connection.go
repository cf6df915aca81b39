package domain

import "time"

// ConnectionState is the Wi-Fi link lifecycle as tracked by the station.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Credential is one network the station may join.
type Credential struct {
	SSID   string
	Secret string
}

// Connection is the handle returned by a successful connect.
type Connection struct {
	SSID        string    `json:"ssid"`
	Attempt     int       `json:"attempt"` // 1-based attempt on this SSID
	ConnectedAt time.Time `json:"connected_at"`
}
