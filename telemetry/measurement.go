// Package telemetry defines the measurement reported by an ET node and the
// decoder for the node's latest-measurement endpoint.
//
// A node answers GET requests on its data endpoint with a JSON envelope:
//
//	{"data": {"timestamp": 1700000000, "sample_rate": 100, "flags": {...}, ...}}
//
// [Decode] validates the envelope against an embedded JSON schema before
// unmarshalling it, so a body that is missing required fields is reported as
// an error instead of silently producing a zero-valued [Measurement].
package telemetry

// Flags carries the boolean state bits reported alongside a measurement.
type Flags struct {
	HasGPSFix  bool `json:"has_gps_fix"`
	IsClipping bool `json:"is_clipping"`
}

// Measurement is the latest sample block reported by a node.
//
// Field names on the wire follow the node firmware, which is why FixQuality
// is serialized as "fix" and Samples as "data".
type Measurement struct {
	// Timestamp is the node's clock at capture time. Nil when the node has
	// no time source yet.
	Timestamp *int64 `json:"timestamp"`

	SampleRate float64 `json:"sample_rate"`
	Flags      Flags   `json:"flags"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
	Speed     float64 `json:"speed"`
	Angle     float64 `json:"angle"`

	// FixQuality is the GPS fix indicator (0 = invalid).
	FixQuality int `json:"fix"`

	Samples []float64 `json:"data"`
}

// LastUpdate returns the measurement timestamp, or 0 when it is unknown.
func (m *Measurement) LastUpdate() int64 {
	if m == nil || m.Timestamp == nil {
		return 0
	}
	return *m.Timestamp
}

// Clone returns a deep copy of m. Clone of nil is nil.
func (m *Measurement) Clone() *Measurement {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Timestamp != nil {
		ts := *m.Timestamp
		cp.Timestamp = &ts
	}
	if m.Samples != nil {
		cp.Samples = append([]float64(nil), m.Samples...)
	}
	return &cp
}

// LastDataResponse is the envelope returned by a node's data endpoint.
type LastDataResponse struct {
	Data Measurement `json:"data"`
}
