package api

import "time"

// Whence values accepted by Seek.
const (
	SeekStart   = 0
	SeekCurrent = 1
	SeekEnd     = 2
)

// SessionInfo describes an open session on the device.
type SessionInfo struct {
	ID       string    `json:"id"`
	Position int64     `json:"position"`
	OpenedAt time.Time `json:"openedAt"`
}

// DeviceInfo describes the device served by chardevd.
type DeviceInfo struct {
	DeviceNode    string `json:"deviceNode"`
	Capacity      int    `json:"capacity"`
	OpenSessions  int    `json:"openSessions"`
	AuditLog      string `json:"auditLog,omitempty"`
	DroppedEvents uint64 `json:"droppedEvents"`
}

// VersionInfo is reported by GET /version.
type VersionInfo struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

// Event is one store operation streamed from /device/events.
type Event struct {
	Op        string    `json:"op"`
	SessionID string    `json:"sessionId"`
	Offset    int64     `json:"offset"`
	Position  int64     `json:"position"`
	Count     int       `json:"count"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

type seekRequest struct {
	Offset int64 `json:"offset"`
	Whence int   `json:"whence"`
}

type seekResponse struct {
	Position int64 `json:"position"`
}

type writeResponse struct {
	Count    int   `json:"count"`
	Position int64 `json:"position"`
}

type sessionList struct {
	Sessions []SessionInfo `json:"sessions"`
}
