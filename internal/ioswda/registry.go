// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ioswda

import "sync"

var (
	registryMu sync.Mutex
	registry   = map[*Server]struct{}{}
)

func register(s *Server) {
	registryMu.Lock()
	registry[s] = struct{}{}
	registryMu.Unlock()
}

func unregister(s *Server) {
	registryMu.Lock()
	delete(registry, s)
	registryMu.Unlock()
}

// CloseAll closes every active Server, for use by a process shutdown hook.
func CloseAll() {
	registryMu.Lock()
	servers := make([]*Server, 0, len(registry))
	for s := range registry {
		servers = append(servers, s)
	}
	registryMu.Unlock()

	for _, s := range servers {
		s.Close()
	}
}
