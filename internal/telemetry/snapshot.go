// Package telemetry publishes periodic bridge status snapshots to the log and,
// optionally, to an MQTT broker or a Redis hash/channel.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Snapshot is one periodic status record
type Snapshot struct {
	Time  time.Time
	Cycle uint64

	Mode       string
	SpeedLimit int
	Direction  string
	Headlights bool
	Taillights bool
	DriveRamp  int
	SteerRamp  int

	Drive  int
	Steer  int
	Lights string
	LED    string

	Gamepad string
	Hub     string

	ReportsReceived    int64
	ReportsOverwritten int64
	ReportsMalformed   int64
}

// Ordered returns the snapshot fields in a stable, human-friendly order
func (s Snapshot) Ordered() *orderedmap.OrderedMap[string, any] {
	om := orderedmap.New[string, any]()
	om.Set("time", s.Time.UTC().Format(time.RFC3339))
	om.Set("cycle", s.Cycle)
	om.Set("mode", s.Mode)
	om.Set("speed_limit", s.SpeedLimit)
	om.Set("direction", s.Direction)
	om.Set("headlights", s.Headlights)
	om.Set("taillights", s.Taillights)
	om.Set("drive_ramp", s.DriveRamp)
	om.Set("steer_ramp", s.SteerRamp)
	om.Set("drive", s.Drive)
	om.Set("steer", s.Steer)
	om.Set("lights", s.Lights)
	om.Set("led", s.LED)
	om.Set("gamepad", s.Gamepad)
	om.Set("hub", s.Hub)
	om.Set("reports_received", s.ReportsReceived)
	om.Set("reports_overwritten", s.ReportsOverwritten)
	om.Set("reports_malformed", s.ReportsMalformed)
	return om
}

// MarshalJSON encodes the snapshot as an object with keys in Ordered order
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Ordered())
}

// Pairs flattens the snapshot to alternating field/value strings
func (s Snapshot) Pairs() []any {
	om := s.Ordered()
	pairs := make([]any, 0, om.Len()*2)
	for p := om.Oldest(); p != nil; p = p.Next() {
		pairs = append(pairs, p.Key, fmt.Sprint(p.Value))
	}
	return pairs
}
