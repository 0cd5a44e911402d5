package telemetry

import (
	"strings"
	"testing"
)

const validBody = `{
  "data": {
    "timestamp": 1000,
    "sample_rate": 250.5,
    "flags": {"has_gps_fix": true, "is_clipping": false},
    "latitude": 47.37,
    "longitude": 8.54,
    "elevation": 408,
    "speed": 1.5,
    "angle": 90,
    "fix": 1,
    "data": [0.1, -0.2, 0.3]
  }
}`

func TestDecode_Valid(t *testing.T) {
	m, err := Decode([]byte(validBody))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if m.LastUpdate() != 1000 {
		t.Errorf("LastUpdate() = %d, want 1000", m.LastUpdate())
	}
	if m.SampleRate != 250.5 {
		t.Errorf("SampleRate = %v, want 250.5", m.SampleRate)
	}
	if !m.Flags.HasGPSFix {
		t.Error("Flags.HasGPSFix = false, want true")
	}
	if m.FixQuality != 1 {
		t.Errorf("FixQuality = %d, want 1", m.FixQuality)
	}
	if len(m.Samples) != 3 || m.Samples[1] != -0.2 {
		t.Errorf("Samples = %v, want [0.1 -0.2 0.3]", m.Samples)
	}
}

func TestDecode_NullOrMissingTimestamp(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "null timestamp",
			body: strings.Replace(validBody, `"timestamp": 1000`, `"timestamp": null`, 1),
		},
		{
			name: "missing timestamp",
			body: strings.Replace(validBody, `"timestamp": 1000,`, ``, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.body))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if m.Timestamp != nil {
				t.Errorf("Timestamp = %v, want nil", *m.Timestamp)
			}
			if m.LastUpdate() != 0 {
				t.Errorf("LastUpdate() = %d, want 0", m.LastUpdate())
			}
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ""},
		{name: "whitespace", body: "   \n"},
		{name: "not json", body: "<html>oops</html>"},
		{name: "truncated", body: `{"data": {"timestamp": 1`},
		{name: "no envelope", body: `{"timestamp": 1000}`},
		{name: "data not object", body: `{"data": [1, 2, 3]}`},
		{name: "missing sample_rate", body: strings.Replace(validBody, `"sample_rate": 250.5,`, ``, 1)},
		{name: "missing flags", body: strings.Replace(validBody, `"flags": {"has_gps_fix": true, "is_clipping": false},`, ``, 1)},
		{name: "string latitude", body: strings.Replace(validBody, `"latitude": 47.37`, `"latitude": "47.37"`, 1)},
		{name: "fractional fix", body: strings.Replace(validBody, `"fix": 1`, `"fix": 1.5`, 1)},
		{name: "negative fix", body: strings.Replace(validBody, `"fix": 1`, `"fix": -1`, 1)},
		{name: "fractional timestamp", body: strings.Replace(validBody, `"timestamp": 1000`, `"timestamp": 10.5`, 1)},
		{name: "non numeric sample", body: strings.Replace(validBody, `[0.1, -0.2, 0.3]`, `[0.1, "x"]`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.body))
			if err == nil {
				t.Fatalf("Decode() = %+v, want error", m)
			}
			if m != nil {
				t.Errorf("Decode() returned measurement alongside error: %+v", m)
			}
		})
	}
}

func TestMeasurement_Clone(t *testing.T) {
	m, err := Decode([]byte(validBody))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	cp := m.Clone()
	*cp.Timestamp = 2000
	cp.Samples[0] = 99

	if m.LastUpdate() != 1000 {
		t.Errorf("original LastUpdate() = %d after mutating clone, want 1000", m.LastUpdate())
	}
	if m.Samples[0] != 0.1 {
		t.Errorf("original Samples[0] = %v after mutating clone, want 0.1", m.Samples[0])
	}

	var nilM *Measurement
	if nilM.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
	if nilM.LastUpdate() != 0 {
		t.Error("LastUpdate() of nil should be 0")
	}
}
