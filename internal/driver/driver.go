// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package driver defines the normalized device-operation surface that every
// platform implementation (android, ios, harmony) satisfies, plus the
// platform-opaque identity and geometry types shared across the supervisor.
package driver

import (
	"context"
	"fmt"

	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
	"github.com/uiautodev/uiautodev/internal/hierarchy"
)

// Platform identifies which family of device a Serial belongs to.
type Platform = platformkind.Platform

const (
	Android = platformkind.Android
	IOS     = platformkind.IOS
	Harmony = platformkind.Harmony
)

// Serial is a platform-opaque device identifier: an Android transport
// serial, an iOS UDID, or a Harmony serial. Uniqueness is enforced across a
// process by the provider's driver map.
type Serial string

// DeviceInfo is what a platform provider's List operation produces. It has
// no lifecycle beyond the call that produced it.
type DeviceInfo struct {
	Serial  Serial `json:"serial"`
	Status  string `json:"status"`
	Name    string `json:"name,omitempty"`
	Model   string `json:"model,omitempty"`
	Product string `json:"product,omitempty"`
	Enabled bool   `json:"enabled"`
}

// WindowSize is a device's screen size in device pixels.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AppInfo describes one installed package, as surfaced by appList.
type AppInfo struct {
	PackageName string `json:"packageName"`
	VersionName string `json:"versionName,omitempty"`
	VersionCode string `json:"versionCode,omitempty"`
}

// Point is a tap/swipe endpoint in device pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Driver is the normalized command set every platform implementation
// exposes. The dispatcher (internal/dispatch) resolves one of these per
// serial and never branches on platform beyond that resolution.
type Driver interface {
	Serial() Serial
	Platform() Platform

	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, from, to Point, durationSeconds float64) error
	SendKeys(ctx context.Context, text string) error
	ClearText(ctx context.Context) error

	Home(ctx context.Context) error
	Back(ctx context.Context) error
	AppSwitch(ctx context.Context) error
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
	VolumeMute(ctx context.Context) error
	WakeUp(ctx context.Context) error

	InstallApp(ctx context.Context, path string) error
	AppLaunch(ctx context.Context, packageName string) error
	AppTerminate(ctx context.Context, packageName string) error
	AppCurrent(ctx context.Context) (AppInfo, error)
	AppList(ctx context.Context) ([]AppInfo, error)

	WindowSize(ctx context.Context) (WindowSize, error)

	// DumpHierarchy returns both the raw platform XML and the parsed tree,
	// so callers that only need raw XML (xpath evaluation) avoid a
	// redundant parse.
	DumpHierarchy(ctx context.Context) (rawXML string, tree *hierarchy.Node, err error)

	Screenshot(ctx context.Context, id int) ([]byte, error)

	StartMjpegStream(ctx context.Context) (bool, error)
	GetMjpegURL() string
	StopMjpegStream(ctx context.Context) error
}

// Provider enumerates devices for one platform and hands out a Driver for a
// given serial. Implementations guarantee at most one Driver per serial.
type Provider interface {
	Platform() Platform
	List(ctx context.Context) ([]DeviceInfo, error)
	GetDeviceDriver(ctx context.Context, serial Serial) (Driver, error)
	ReleaseDevice(serial Serial)
}

// Error kinds every driver and provider reports. These are sentinel-wrapped
// with fmt.Errorf("...: %w", Kind) rather than bound to any logging/error
// library, so callers can errors.Is against them regardless of how the
// error is eventually logged or reported.
var (
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrDeviceNotFound     = fmt.Errorf("device not found")
	ErrHelperSpawnFailure = fmt.Errorf("helper spawn failure")
	ErrHelperTimeout      = fmt.Errorf("helper timeout")
	ErrElementNotFound    = fmt.Errorf("element not found")
	ErrParse              = fmt.Errorf("parse error")
	ErrStreamClosed       = fmt.Errorf("stream upstream closed")
	ErrFatal              = fmt.Errorf("fatal supervisor error")
)
