package mqttverify

import (
	"testing"
)

// fakeMessage satisfies mqtt.Message for feeding onMessage directly
type fakeMessage struct {
	topic   string
	payload []byte
}

func (f fakeMessage) Duplicate() bool   { return false }
func (f fakeMessage) Qos() byte         { return 0 }
func (f fakeMessage) Retained() bool    { return false }
func (f fakeMessage) Topic() string     { return f.topic }
func (f fakeMessage) MessageID() uint16 { return 0 }
func (f fakeMessage) Payload() []byte   { return f.payload }
func (f fakeMessage) Ack()              {}

func deliver(v *Verifier, topic, payload string) {
	v.onMessage(nil, fakeMessage{topic: topic, payload: []byte(payload)})
}

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a8032abe54dc", "A8032ABE54DC"},
		{"A8:03:2A:BE:54:DC", "A8032ABE54DC"},
		{"a8-03-2a-be-54-dc", "A8032ABE54DC"},
		{"A8032ABE54DC", "A8032ABE54DC"},
		{"a8032abe54", ""},       // too short
		{"a8032abe54dcff", ""},   // too long
		{"g8032abe54dc", ""},     // not hex
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeMAC(tt.in); got != tt.want {
			t.Errorf("normalizeMAC(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMACFromSource(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"shellyplus1-a8032abe54dc", "A8032ABE54DC"},
		{"shellyplus2pm-0123456789ab", "0123456789AB"},
		{"shelly-001", ""}, // assigned names carry a sequence, not a MAC
		{"nodash", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := macFromSource(tt.src); got != tt.want {
			t.Errorf("macFromSource(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestAnnounceMessage(t *testing.T) {
	v := NewVerifier("192.168.1.10", 1883, "", "")

	deliver(v, "shellies/shelly-001/announce",
		`{"id":"shelly-001","mac":"a8:03:2a:be:54:dc","ip":"192.168.1.57","model":"SNSW-001X16EU"}`)

	if len(v.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(v.reports))
	}
	r := v.reports[0]
	if r.ID != "shelly-001" || r.MAC != "A8032ABE54DC" || r.IP != "192.168.1.57" {
		t.Errorf("report = %+v", r)
	}
	if r.Status != "online" {
		t.Errorf("Status = %q, want online", r.Status)
	}
}

func TestOnlineMessage(t *testing.T) {
	v := NewVerifier("192.168.1.10", 1883, "", "")

	deliver(v, "shelly-001/online", "true")

	if len(v.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(v.reports))
	}
	if v.reports[0].ID != "shelly-001" || v.reports[0].Status != "true" {
		t.Errorf("report = %+v", v.reports[0])
	}
}

func TestRPCEventMessage(t *testing.T) {
	v := NewVerifier("192.168.1.10", 1883, "", "")

	deliver(v, "shelly-001/events/rpc",
		`{"src":"shellyplus1-a8032abe54dc","dst":"shelly-001/events","method":"NotifyStatus"}`)

	if len(v.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(v.reports))
	}
	r := v.reports[0]
	if r.ID != "shelly-001" {
		t.Errorf("ID = %q", r.ID)
	}
	if r.MAC != "A8032ABE54DC" {
		t.Errorf("MAC = %q, want extracted from src", r.MAC)
	}
}

func TestMalformedPayloadIgnored(t *testing.T) {
	v := NewVerifier("192.168.1.10", 1883, "", "")

	deliver(v, "shellies/shelly-001/announce", "not json")

	if len(v.reports) != 0 {
		t.Errorf("reports = %v, want none for malformed announce", v.reports)
	}
}

func TestUnrelatedTopicIgnored(t *testing.T) {
	v := NewVerifier("192.168.1.10", 1883, "", "")

	deliver(v, "shelly-001/status/switch:0", `{"output":true}`)

	if len(v.reports) != 0 {
		t.Errorf("reports = %v, want none for status topics", v.reports)
	}
}

func TestMergeByMAC(t *testing.T) {
	v := NewVerifier("192.168.1.10", 1883, "", "")
	v.NamePrefix = "shelly"

	// Gen2 event under the factory ID first, then the announce under the
	// assigned name - same MAC, so one device
	deliver(v, "shellyplus1-a8032abe54dc/events/rpc", `{"src":"shellyplus1-a8032abe54dc"}`)
	deliver(v, "shellies/shelly-001/announce",
		`{"id":"shelly-001","mac":"A8032ABE54DC","ip":"192.168.1.57"}`)

	if len(v.reports) != 1 {
		t.Fatalf("reports = %d, want 1 merged device", len(v.reports))
	}
	r := v.reports[0]
	if r.ID != "shelly-001" {
		t.Errorf("ID = %q, want the assigned name to win", r.ID)
	}
	if r.IP != "192.168.1.57" {
		t.Errorf("IP = %q", r.IP)
	}
}

func TestMergeByID(t *testing.T) {
	v := NewVerifier("192.168.1.10", 1883, "", "")

	deliver(v, "shelly-001/online", "true")
	deliver(v, "shelly-001/events/rpc", `{"src":"shellyplus1-a8032abe54dc"}`)

	if len(v.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(v.reports))
	}
	r := v.reports[0]
	if r.MAC != "A8032ABE54DC" {
		t.Errorf("MAC = %q, want filled in by the later event", r.MAC)
	}
	if r.Status != "online" {
		t.Errorf("Status = %q, want updated", r.Status)
	}
}

func TestMergeDistinctDevices(t *testing.T) {
	v := NewVerifier("192.168.1.10", 1883, "", "")

	deliver(v, "shelly-001/online", "true")
	deliver(v, "shelly-002/online", "true")

	if len(v.reports) != 2 {
		t.Errorf("reports = %d, want 2 distinct devices", len(v.reports))
	}
}

func TestMergeWithoutPrefixKeepsFirstID(t *testing.T) {
	v := NewVerifier("192.168.1.10", 1883, "", "")

	deliver(v, "shellies/factory-name/announce", `{"id":"factory-name","mac":"A8032ABE54DC"}`)
	deliver(v, "shellies/other-name/announce", `{"id":"other-name","mac":"A8032ABE54DC"}`)

	if len(v.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(v.reports))
	}
	if v.reports[0].ID != "factory-name" {
		t.Errorf("ID = %q, want first seen without a name prefix", v.reports[0].ID)
	}
}
