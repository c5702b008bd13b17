package model

import "time"

// -----------------------------------------------------------------------------
// Raw store format
// -----------------------------------------------------------------------------

// Keys of a raw backing-store entry.
const (
	KeyRobotID             = "Robot ID"
	KeyOnline              = "Online/Offline"
	KeyBatteryPercentage   = "Battery Percentage"
	KeyCPUUsage            = "CPU Usage"
	KeyRAMConsumption      = "RAM Consumption"
	KeyLastUpdated         = "Last Updated"
	KeyLocationCoordinates = "Location Coordinates"
)

// RawKeys is the complete key set of a raw entry. A raw entry must carry
// every one of them and nothing else.
var RawKeys = []string{
	KeyRobotID,
	KeyOnline,
	KeyBatteryPercentage,
	KeyCPUUsage,
	KeyRAMConsumption,
	KeyLastUpdated,
	KeyLocationCoordinates,
}

// Timestamp layouts.
const (
	RawTimeLayout  = "2006-01-02 15:04:05" // backing store
	WireTimeLayout = "2006-01-02T15:04:05" // JSON responses and stream frames
)

// -----------------------------------------------------------------------------
// Canonical record
// -----------------------------------------------------------------------------

// Record is one normalized robot status entry.
type Record struct {
	RobotID             string    // Non-empty
	Online              bool      // true = online
	BatteryPercentage   int       // 0-100 by convention
	CPUUsage            int       // 0-100 by convention
	RAMConsumption      int       // Unit unspecified
	LastUpdated         time.Time // UTC
	LocationCoordinates []float64 // [latitude, longitude] by convention
}

// WireRecord is the public JSON form of a Record.
type WireRecord struct {
	RobotID             string    `json:"robot_id"`
	Online              bool      `json:"online_offline"`
	BatteryPercentage   int       `json:"battery_percentage"`
	CPUUsage            int       `json:"cpu_usage"`
	RAMConsumption      int       `json:"ram_consumption"`
	LastUpdated         string    `json:"last_updated"`
	LocationCoordinates []float64 `json:"location_coordinates"`
}

// Wire converts r to its public form, rendering LastUpdated as ISO 8601.
func (r Record) Wire() WireRecord {
	coords := r.LocationCoordinates
	if coords == nil {
		coords = []float64{}
	}
	return WireRecord{
		RobotID:             r.RobotID,
		Online:              r.Online,
		BatteryPercentage:   r.BatteryPercentage,
		CPUUsage:            r.CPUUsage,
		RAMConsumption:      r.RAMConsumption,
		LastUpdated:         r.LastUpdated.Format(WireTimeLayout),
		LocationCoordinates: coords,
	}
}

// WireRecords converts a batch of records, preserving order.
func WireRecords(records []Record) []WireRecord {
	out := make([]WireRecord, len(records))
	for i, r := range records {
		out[i] = r.Wire()
	}
	return out
}
