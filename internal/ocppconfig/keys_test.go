package ocppconfig

import "testing"

func TestAddNoOpWithoutOverwrite(t *testing.T) {
	s := NewKeyStore()
	s.Add(Key{Key: "HeartbeatInterval", Value: "60"}, false)
	added := s.Add(Key{Key: "HeartbeatInterval", Value: "90"}, false)

	if added {
		t.Fatal("expected re-adding an existing key with overwrite=false to report no insertion")
	}
	got, _ := s.Get("HeartbeatInterval")
	if got.Value != "60" {
		t.Fatalf("expected the original value to survive a no-overwrite Add, got %q", got.Value)
	}
}

func TestAddOverwritePreservesPosition(t *testing.T) {
	s := NewKeyStore()
	s.Add(Key{Key: "A", Value: "1"}, false)
	s.Add(Key{Key: "B", Value: "2"}, false)
	s.Add(Key{Key: "A", Value: "99"}, true)

	keys := s.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys after an in-place overwrite, got %d", len(keys))
	}
	if keys[0].Key != "A" || keys[0].Value != "99" {
		t.Fatalf("expected A to be overwritten in place at index 0, got %+v", keys[0])
	}
}

func TestGetFallsBackToCaseInsensitiveMatch(t *testing.T) {
	s := NewKeyStore()
	s.Add(Key{Key: "MeterValueSampleInterval", Value: "60"}, false)

	got, ok := s.Get("metervaluesampleinterval")
	if !ok {
		t.Fatal("expected a case-insensitive fallback match")
	}
	if got.Value != "60" {
		t.Fatalf("expected value 60, got %q", got.Value)
	}
}

func TestSetRejectsReadonlyKey(t *testing.T) {
	s := NewKeyStore()
	s.Add(Key{Key: "NumberOfConnectors", Value: "2", Readonly: true}, false)

	if s.Set("NumberOfConnectors", "3") {
		t.Fatal("expected Set to reject a readonly key")
	}
	got, _ := s.Get("NumberOfConnectors")
	if got.Value != "2" {
		t.Fatalf("expected readonly value to be unchanged, got %q", got.Value)
	}
}

func TestRemoveDeletesByName(t *testing.T) {
	s := NewKeyStore()
	s.Add(Key{Key: "A", Value: "1"}, false)

	if !s.Remove("A") {
		t.Fatal("expected Remove to report success for an existing key")
	}
	if _, ok := s.Get("A"); ok {
		t.Fatal("expected the key to be gone after Remove")
	}
	if s.Remove("A") {
		t.Fatal("expected a second Remove of the same key to report failure")
	}
}

func TestSetHeartbeatIntervalWritesBothSpellings(t *testing.T) {
	s := NewKeyStore()
	s.SetHeartbeatInterval("30")

	primary, ok := s.Get("HeartbeatInterval")
	if !ok || primary.Value != "30" {
		t.Fatalf("expected HeartbeatInterval=30, got %+v, ok=%v", primary, ok)
	}
	hidden, ok := s.Get("HeartBeatInterval")
	if !ok || hidden.Value != "30" {
		t.Fatalf("expected hidden HeartBeatInterval=30, got %+v, ok=%v", hidden, ok)
	}
}

func TestHeartbeatIntervalKeyPrefersPrimarySpelling(t *testing.T) {
	s := NewKeyStore()
	s.Add(Key{Key: "HeartBeatInterval", Value: "10"}, false)

	got, ok := s.HeartbeatIntervalKey()
	if !ok {
		t.Fatal("expected the hidden spelling to satisfy the lookup when the primary is absent")
	}
	if got.Value != "10" {
		t.Fatalf("expected value 10, got %q", got.Value)
	}

	s.Add(Key{Key: "HeartbeatInterval", Value: "20"}, false)
	got, _ = s.HeartbeatIntervalKey()
	if got.Value != "20" {
		t.Fatalf("expected the primary spelling to take precedence once present, got %q", got.Value)
	}
}
