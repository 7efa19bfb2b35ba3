// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package deviceconfig implements the durable per-UDID iOS configuration
// store: a JSON file under ~/.byteautoui, read into an in-memory cache on
// load and atomically rewritten on every mutation.
package deviceconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

const (
	// DefaultWDABundleID is returned for a UDID with no stored entry.
	DefaultWDABundleID = "com.facebook.WebDriverAgentRunner.xctrunner"
	// DefaultWDAPort is returned for a UDID with no stored entry.
	DefaultWDAPort = 8100

	configDirName  = ".byteautoui"
	configFileName = "ios_config.json"
)

// Entry is one UDID's persisted configuration.
type Entry struct {
	WDABundleID string    `json:"wda_bundle_id"`
	WDAPort     int       `json:"wda_port"`
	LastSeen    time.Time `json:"last_seen,omitempty"`
}

func defaultEntry() Entry {
	return Entry{WDABundleID: DefaultWDABundleID, WDAPort: DefaultWDAPort}
}

// Store is the process-local device-config cache. It is not safe for use
// by more than one OS process against the same file; within one process it
// is safe for concurrent use.
type Store struct {
	logger *zap.Logger
	path   string

	mu      sync.RWMutex
	entries map[string]Entry
}

// Open loads (or initializes) the store at dir/ios_config.json. dir
// defaults to $HOME/.byteautoui when empty.
func Open(logger *zap.Logger, dir string) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, configDirName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config directory %s: %w", dir, err)
	}

	s := &Store{logger: logger, path: filepath.Join(dir, configFileName), entries: map[string]Entry{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read device config %s: %w", s.path, err)
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("device config file is corrupt, starting fresh", zap.String("path", s.path), zap.Error(err))
		return nil
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// sjsonPathEscaper escapes the characters sjson's dotted path syntax treats
// as structural (backslash must go first, so it isn't re-escaped).
var sjsonPathEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`)

// save atomically rewrites the config file: each UDID's entry is set onto
// the raw JSON document with sjson (rather than re-marshalling the whole
// map with encoding/json), then the result is written to a sibling temp
// file, fsynced, and renamed over the target so a crash mid-write never
// corrupts the existing file.
func (s *Store) save() error {
	s.mu.RLock()
	entries := make(map[string]Entry, len(s.entries))
	for udid, e := range s.entries {
		entries[udid] = e
	}
	s.mu.RUnlock()

	raw := []byte("{}")
	for udid, e := range entries {
		encoded, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal device config entry %s: %w", udid, err)
		}
		raw, err = sjson.SetRawBytes(raw, sjsonPathEscaper.Replace(udid), encoded)
		if err != nil {
			return fmt.Errorf("set device config entry %s: %w", udid, err)
		}
	}
	data := raw

	tmp, err := os.CreateTemp(filepath.Dir(s.path), configFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp device config: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp device config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp device config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp device config: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace device config %s: %w", s.path, err)
	}
	return nil
}

// Get returns udid's entry, or the package defaults if none is stored.
func (s *Store) Get(udid string) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[udid]; ok {
		return e
	}
	return defaultEntry()
}

// SetWDABundleID persists bundleID for udid, creating the entry if absent.
func (s *Store) SetWDABundleID(udid, bundleID string) error {
	return s.mutate(udid, func(e *Entry) { e.WDABundleID = bundleID })
}

// SetWDAPort persists port for udid, creating the entry if absent.
func (s *Store) SetWDAPort(udid string, port int) error {
	return s.mutate(udid, func(e *Entry) { e.WDAPort = port })
}

// TouchLastSeen records that udid was observed just now.
func (s *Store) TouchLastSeen(udid string, when time.Time) error {
	return s.mutate(udid, func(e *Entry) { e.LastSeen = when })
}

func (s *Store) mutate(udid string, fn func(*Entry)) error {
	s.mu.Lock()
	e, ok := s.entries[udid]
	if !ok {
		e = defaultEntry()
	}
	fn(&e)
	s.entries[udid] = e
	s.mu.Unlock()

	if err := s.save(); err != nil {
		s.logger.Error("failed to persist device config", zap.String("udid", udid), zap.Error(err))
		return err
	}
	return nil
}

// Clear removes udid's stored entry, reverting future Get calls to
// defaults.
func (s *Store) Clear(udid string) error {
	s.mu.Lock()
	_, existed := s.entries[udid]
	delete(s.entries, udid)
	s.mu.Unlock()

	if !existed {
		return nil
	}
	return s.save()
}

// All returns a snapshot of every stored entry, keyed by UDID, for the
// device-config HTTP surface.
func (s *Store) All() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}
