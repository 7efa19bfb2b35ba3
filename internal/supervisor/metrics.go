// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "github.com/prometheus/client_golang/prometheus"

// spawnTotal and restartTotal count child-process lifecycle events across
// every ChildHandle (tunnel manager, WDA server, agent fallback), labeled
// by child name, for the process's /metrics endpoint.
var (
	spawnTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uiautodev",
		Subsystem: "supervisor",
		Name:      "child_spawn_total",
		Help:      "Number of times a supervised child process was spawned.",
	}, []string{"child"})

	spawnFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uiautodev",
		Subsystem: "supervisor",
		Name:      "child_spawn_failure_total",
		Help:      "Number of times a supervised child process died within its grace period.",
	}, []string{"child"})

	terminateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uiautodev",
		Subsystem: "supervisor",
		Name:      "child_terminate_total",
		Help:      "Number of times a supervised child process was terminated.",
	}, []string{"child"})
)

func init() {
	prometheus.MustRegister(spawnTotal, spawnFailureTotal, terminateTotal)
}
