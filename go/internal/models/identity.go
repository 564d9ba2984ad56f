package models

// ClientIdentity is what a room treats as "this participant". DeviceID
// persists per device. SessionID is frozen while a room is joined, created
// or resumed and unfrozen on leave or kick.
type ClientIdentity struct {
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
	Locked    bool   `json:"locked"`
}
