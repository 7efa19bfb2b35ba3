// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package recording implements the thin on-disk recording store backing the
// "Recordings" surface: saving, listing, and loading session recordings
// under ~/.buiauto/<group>/<name>.buiauto.json. Kept deliberately thin — no
// export/playback tooling here.
package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	rootDirName = ".buiauto"
	fileSuffix  = ".buiauto.json"
)

// Metadata describes one stored recording file. CreatedAt is left unset:
// os.FileInfo has no portable creation time, unlike Path.stat().st_ctime.
type Metadata struct {
	ID         string `json:"id"`
	Group      string `json:"group"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	CreatedAt  int64  `json:"createdAt,omitempty"`
	ModifiedAt int64  `json:"modifiedAt"`
}

// Store persists recordings under a root directory, defaulting to
// $HOME/.buiauto.
type Store struct {
	root string
}

// Open resolves the store root (dir, or $HOME/.buiauto when empty) and
// ensures it exists.
func Open(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, rootDirName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings root %s: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

// pathFor resolves group/name to a file path under the store root, with
// path-traversal protection matching get_recording_path's validation.
func (s *Store) pathFor(group, name string) (string, error) {
	if group == "" {
		group = "default"
	}
	if strings.Contains(group, "..") || strings.ContainsAny(group, `/\`) {
		return "", fmt.Errorf("invalid group name: path traversal detected")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid recording name: path traversal detected")
	}

	groupDir := filepath.Join(s.root, group)
	if err := os.MkdirAll(groupDir, 0o755); err != nil {
		return "", fmt.Errorf("create recording group directory %s: %w", groupDir, err)
	}

	if !strings.HasSuffix(name, fileSuffix) {
		name += fileSuffix
	}
	return filepath.Join(groupDir, name), nil
}

// Save writes data (arbitrary recording JSON, opaque to this store) to
// <group>/<name>.buiauto.json, pretty-printed, and returns the path saved
// to plus a generated recording id.
func (s *Store) Save(group, name string, data json.RawMessage) (id string, path string, err error) {
	path, err = s.pathFor(group, name)
	if err != nil {
		return "", "", err
	}

	var pretty interface{}
	if err := json.Unmarshal(data, &pretty); err != nil {
		return "", "", fmt.Errorf("invalid recording data: %w", err)
	}
	encoded, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal recording: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", "", fmt.Errorf("write recording %s: %w", path, err)
	}

	return uuid.NewString(), path, nil
}

// Load reads <group>/<name>.buiauto.json back.
func (s *Store) Load(group, name string) (json.RawMessage, error) {
	path, err := s.pathFor(group, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("recording not found: %s/%s", group, name)
		}
		return nil, fmt.Errorf("read recording %s: %w", path, err)
	}
	return data, nil
}

// List enumerates every recording under the store root, newest first.
func (s *Store) List() ([]Metadata, error) {
	var out []Metadata

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || !strings.HasSuffix(path, fileSuffix) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		group := filepath.Dir(rel)
		if group == "." {
			group = "default"
		}
		name := strings.TrimSuffix(filepath.Base(path), fileSuffix)

		out = append(out, Metadata{
			ID:         uuid.NewString(),
			Group:      group,
			Name:       name,
			Path:       path,
			Size:       info.Size(),
			ModifiedAt: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list recordings under %s: %w", s.root, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ModifiedAt > out[j].ModifiedAt })
	return out, nil
}

// Delete removes <group>/<name>.buiauto.json, and its group directory if
// now empty, matching delete_recording's best-effort directory cleanup.
func (s *Store) Delete(group, name string) error {
	path, err := s.pathFor(group, name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("recording not found: %s/%s", group, name)
		}
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete recording %s: %w", path, err)
	}
	_ = os.Remove(filepath.Dir(path)) // best-effort, fails silently if non-empty
	return nil
}
