// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dispatch

import "github.com/prometheus/client_golang/prometheus"

// commandTotal counts dispatched commands by name and outcome, for the
// process's /metrics endpoint.
var commandTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "uiautodev",
	Subsystem: "dispatch",
	Name:      "command_total",
	Help:      "Number of commands dispatched, labeled by command and outcome.",
}, []string{"command", "outcome"})

func init() {
	prometheus.MustRegister(commandTotal)
}
