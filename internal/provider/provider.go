// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package provider implements the per-platform driver.Provider: device
// enumeration plus a striped-lock registry guaranteeing exactly one
// driver.Driver per serial. The registry idiom is a fixed set of
// lock-striped shards, each owning its own slice of the serial keyspace.
package provider

import (
	"hash/fnv"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/driver"
)

const shardCount = 16

type shard struct {
	mu      sync.Mutex
	drivers map[driver.Serial]driver.Driver
}

// driverRegistry guarantees at most one driver.Driver per serial across
// concurrent GetDeviceDriver calls, striping the lock by serial hash so
// unrelated serials never contend.
type driverRegistry struct {
	shards [shardCount]shard
}

func newDriverRegistry() *driverRegistry {
	r := &driverRegistry{}
	for i := range r.shards {
		r.shards[i].drivers = make(map[driver.Serial]driver.Driver)
	}
	return r
}

func (r *driverRegistry) shardFor(serial driver.Serial) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(serial))
	return &r.shards[h.Sum32()%shardCount]
}

// getOrCreate returns the existing driver for serial, or calls build to
// construct and store one. build is called at most once per serial even
// under concurrent callers, since it runs with the shard lock held.
func (r *driverRegistry) getOrCreate(serial driver.Serial, build func() (driver.Driver, error)) (driver.Driver, error) {
	s := r.shardFor(serial)
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.drivers[serial]; ok {
		return d, nil
	}
	d, err := build()
	if err != nil {
		return nil, err
	}
	s.drivers[serial] = d
	return d, nil
}

func (r *driverRegistry) release(serial driver.Serial) {
	s := r.shardFor(serial)
	s.mu.Lock()
	delete(s.drivers, serial)
	s.mu.Unlock()
}

// logFieldErr wraps an error kind with a serial for provider-level logging.
func logFieldErr(logger *zap.Logger, msg string, serial driver.Serial, err error) {
	logger.Warn(msg, zap.String("serial", string(serial)), zap.Error(err))
}

// exitErrOutput prefers a failed CLI helper's stderr over the generic
// *exec.ExitError text, matching android.exitErrOutput's convention.
func exitErrOutput(err error) string {
	if ee, ok := err.(*exec.ExitError); ok {
		return string(ee.Stderr)
	}
	return err.Error()
}
