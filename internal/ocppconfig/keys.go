// Package ocppconfig implements the per-station ordered OCPP configuration
// key store (spec.md §2, §3) and the persisted-station-configuration file
// format (spec.md §6).
package ocppconfig

import "strings"

// Key mirrors the wire shape of one OCPP configuration entry.
type Key struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Readonly bool   `json:"readonly"`
	Visible  bool   `json:"visible"`
	Reboot   bool   `json:"reboot"`
}

// KeyStore is an insertion-ordered, key-unique collection of Key entries
// with both case-sensitive and case-insensitive lookup, per spec.md §3.
type KeyStore struct {
	keys []Key
}

// NewKeyStore returns an empty store.
func NewKeyStore() *KeyStore {
	return &KeyStore{}
}

// Keys returns the ordered slice of configuration keys. The returned slice
// must be treated as read-only by callers.
func (s *KeyStore) Keys() []Key {
	return s.keys
}

// indexOf performs a case-sensitive or case-insensitive lookup and returns
// -1 if not found.
func (s *KeyStore) indexOf(key string, caseSensitive bool) int {
	for i, k := range s.keys {
		if caseSensitive {
			if k.Key == key {
				return i
			}
		} else if strings.EqualFold(k.Key, key) {
			return i
		}
	}
	return -1
}

// Get looks up a key case-sensitively first, falling back to a
// case-insensitive match (OCPP config key names are conventionally treated
// case-insensitively by CSMS implementations even though the spec says the
// registry is case-sensitive by default).
func (s *KeyStore) Get(key string) (Key, bool) {
	if i := s.indexOf(key, true); i >= 0 {
		return s.keys[i], true
	}
	if i := s.indexOf(key, false); i >= 0 {
		return s.keys[i], true
	}
	return Key{}, false
}

// Add inserts key. If a key with the same name already exists: with
// overwrite=false the call is a no-op; with overwrite=true the existing
// entry is replaced in place, preserving its original position (spec.md
// §8: "Adding an existing configuration key with overwrite=false is a
// no-op ... with overwrite=true replaces atomically").
func (s *KeyStore) Add(k Key, overwrite bool) (added bool) {
	if i := s.indexOf(k.Key, true); i >= 0 {
		if overwrite {
			s.keys[i] = k
		}
		return false
	}
	s.keys = append(s.keys, k)
	return true
}

// Set updates the value of an existing key by name (case-insensitive),
// returning false if the key does not exist or is readonly.
func (s *KeyStore) Set(key, value string) bool {
	i := s.indexOf(key, true)
	if i < 0 {
		i = s.indexOf(key, false)
	}
	if i < 0 || s.keys[i].Readonly {
		return false
	}
	s.keys[i].Value = value
	return true
}

// Remove deletes key by name, case-sensitive first, then case-insensitive.
func (s *KeyStore) Remove(key string) bool {
	i := s.indexOf(key, true)
	if i < 0 {
		i = s.indexOf(key, false)
	}
	if i < 0 {
		return false
	}
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	return true
}

// HeartbeatIntervalKey resolves Open Question #1 from SPEC_FULL.md: the
// source carries both HeartbeatInterval and the hidden HeartBeatInterval
// duplicate; callers use this single accessor rather than picking one.
func (s *KeyStore) HeartbeatIntervalKey() (Key, bool) {
	if k, ok := s.Get("HeartbeatInterval"); ok {
		return k, true
	}
	return s.Get("HeartBeatInterval")
}

// SetHeartbeatInterval writes both HeartbeatInterval and the hidden
// HeartBeatInterval duplicate, keeping wire compatibility with CSMS
// implementations that read either name.
func (s *KeyStore) SetHeartbeatInterval(value string) {
	for _, k := range []Key{
		{Key: "HeartbeatInterval", Value: value, Visible: true},
		{Key: "HeartBeatInterval", Value: value, Visible: false},
	} {
		if i := s.indexOf(k.Key, true); i >= 0 {
			s.keys[i].Value = value
			continue
		}
		s.keys = append(s.keys, k)
	}
}
