// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package health provides a simple heartbeat strategy for WebPA/XMiDT services.

Deprecated: health is no longer planned to be used by future WebPA/XMiDT services.

This package is frozen and no new functionality will be added.
*/
package health
