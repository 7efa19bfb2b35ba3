// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package dispatch implements a command registry mapping a normalized
// Command to (handler, optional params schema), grounded on
// command_proxy.py's decorator-based registry.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/assertion"
	"github.com/uiautodev/uiautodev/internal/driver"
)

// Command is a normalized operation name.
type Command string

const (
	CommandTap            Command = "tap"
	CommandSwipe          Command = "swipe"
	CommandSwipeUp        Command = "swipeUp"
	CommandSwipeDown      Command = "swipeDown"
	CommandSwipeLeft      Command = "swipeLeft"
	CommandSwipeRight     Command = "swipeRight"
	CommandHome           Command = "home"
	CommandBack           Command = "back"
	CommandAppSwitch      Command = "appSwitch"
	CommandVolumeUp       Command = "volumeUp"
	CommandVolumeDown     Command = "volumeDown"
	CommandVolumeMute     Command = "volumeMute"
	CommandWakeUp         Command = "wakeUp"
	CommandSendKeys       Command = "sendKeys"
	CommandClearText      Command = "clearText"
	CommandInstallApp     Command = "installApp"
	CommandAppLaunch      Command = "appLaunch"
	CommandAppTerminate   Command = "appTerminate"
	CommandAppCurrent     Command = "appCurrent"
	CommandAppList        Command = "appList"
	CommandGetWindowSize  Command = "getWindowSize"
	CommandDump           Command = "dump"
	CommandFindElements   Command = "findElements"
	CommandClickElement   Command = "clickElement"
	CommandStartMjpeg     Command = "start_mjpeg_stream"
	CommandStopMjpeg      Command = "stop_mjpeg_stream"
	CommandAssertElement  Command = "assertElement"
	CommandAssertImage    Command = "assertImage"
	CommandAssertCombined Command = "assertCombined"
	CommandList           Command = "list"
)

// ErrNotImplemented is returned for a command absent from the registry.
var ErrNotImplemented = fmt.Errorf("not implemented")

type handlerFunc func(ctx context.Context, drv driver.Driver, raw json.RawMessage) (any, error)

type registryEntry struct {
	requiredFields []string // empty means no params schema is registered
	handler        handlerFunc
}

// CommandDescriptor describes one registered command for introspection,
// matching command_proxy.py's enumerable decorator registry.
type CommandDescriptor struct {
	Name      Command `json:"name"`
	HasSchema bool    `json:"hasSchema"`
}

// Dispatcher holds the Command → (handler, params schema) registry.
type Dispatcher struct {
	logger  *zap.Logger
	engine  func(drv driver.Driver) *assertion.Engine
	entries map[Command]registryEntry
}

// New builds a Dispatcher with every normalized command registered.
func New(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		logger: logger,
		engine: func(drv driver.Driver) *assertion.Engine {
			return assertion.NewEngine(logger, assertionAdapter{drv})
		},
	}
	d.entries = d.buildRegistry()
	return d
}

// List returns every registered command, for introspection/tooling.
func (d *Dispatcher) List() []CommandDescriptor {
	out := make([]CommandDescriptor, 0, len(d.entries))
	for cmd, e := range d.entries {
		out = append(out, CommandDescriptor{Name: cmd, HasSchema: len(e.requiredFields) > 0})
	}
	return out
}

// Dispatch validates params against the command's schema (if any) and
// invokes its handler. Unknown commands return ErrNotImplemented; schema
// failures return driver.ErrInvalidArgument carrying the failing field.
func (d *Dispatcher) Dispatch(ctx context.Context, drv driver.Driver, cmd Command, params json.RawMessage) (any, error) {
	result, err := d.dispatch(ctx, drv, cmd, params)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	commandTotal.WithLabelValues(string(cmd), outcome).Inc()
	return result, err
}

func (d *Dispatcher) dispatch(ctx context.Context, drv driver.Driver, cmd Command, params json.RawMessage) (any, error) {
	entry, ok := d.entries[cmd]
	if !ok {
		return nil, fmt.Errorf("%w: command %q", ErrNotImplemented, cmd)
	}

	if len(entry.requiredFields) > 0 {
		if len(params) == 0 {
			return nil, fmt.Errorf("%w: params is required for command %q", driver.ErrInvalidArgument, cmd)
		}
		if !gjson.ValidBytes(params) {
			return nil, fmt.Errorf("%w: params is not valid json for command %q", driver.ErrInvalidArgument, cmd)
		}
		for _, field := range entry.requiredFields {
			if !gjson.GetBytes(params, field).Exists() {
				return nil, fmt.Errorf("%w: missing required field %q for command %q", driver.ErrInvalidArgument, field, cmd)
			}
		}
	}

	return entry.handler(ctx, drv, params)
}

func (d *Dispatcher) buildRegistry() map[Command]registryEntry {
	return map[Command]registryEntry{
		CommandTap:            {requiredFields: []string{"x", "y"}, handler: handleTap},
		CommandSwipe:          {requiredFields: []string{"startX", "startY", "endX", "endY"}, handler: handleSwipe},
		CommandSwipeUp:        {handler: directionalSwipeHandler(directionUp)},
		CommandSwipeDown:      {handler: directionalSwipeHandler(directionDown)},
		CommandSwipeLeft:      {handler: directionalSwipeHandler(directionLeft)},
		CommandSwipeRight:     {handler: directionalSwipeHandler(directionRight)},
		CommandHome:           {handler: noParamsHandler(func(ctx context.Context, drv driver.Driver) error { return drv.Home(ctx) })},
		CommandBack:           {handler: noParamsHandler(func(ctx context.Context, drv driver.Driver) error { return drv.Back(ctx) })},
		CommandAppSwitch:      {handler: noParamsHandler(func(ctx context.Context, drv driver.Driver) error { return drv.AppSwitch(ctx) })},
		CommandVolumeUp:       {handler: noParamsHandler(func(ctx context.Context, drv driver.Driver) error { return drv.VolumeUp(ctx) })},
		CommandVolumeDown:     {handler: noParamsHandler(func(ctx context.Context, drv driver.Driver) error { return drv.VolumeDown(ctx) })},
		CommandVolumeMute:     {handler: noParamsHandler(func(ctx context.Context, drv driver.Driver) error { return drv.VolumeMute(ctx) })},
		CommandWakeUp:         {handler: noParamsHandler(func(ctx context.Context, drv driver.Driver) error { return drv.WakeUp(ctx) })},
		CommandSendKeys:       {requiredFields: []string{"text"}, handler: handleSendKeys},
		CommandClearText:      {handler: noParamsHandler(func(ctx context.Context, drv driver.Driver) error { return drv.ClearText(ctx) })},
		CommandInstallApp:     {requiredFields: []string{"url"}, handler: handleInstallApp},
		CommandAppLaunch:      {requiredFields: []string{"package"}, handler: handleAppLaunch},
		CommandAppTerminate:   {requiredFields: []string{"package"}, handler: handleAppTerminate},
		CommandAppCurrent:     {handler: handleAppCurrent},
		CommandAppList:        {handler: handleAppList},
		CommandGetWindowSize:  {handler: handleWindowSize},
		CommandDump:           {handler: handleDump},
		CommandFindElements:   {requiredFields: []string{"by", "value"}, handler: handleFindElements},
		CommandClickElement:   {requiredFields: []string{"by", "value"}, handler: handleClickElement},
		CommandStartMjpeg:     {handler: handleStartMjpeg},
		CommandStopMjpeg:      {handler: handleStopMjpeg},
		CommandAssertElement:  {requiredFields: []string{"conditions"}, handler: d.handleAssert},
		CommandAssertImage:    {requiredFields: []string{"conditions"}, handler: d.handleAssert},
		CommandAssertCombined: {requiredFields: []string{"conditions"}, handler: d.handleAssert},
		CommandList:           {handler: d.handleList},
	}
}

func noParamsHandler(fn func(ctx context.Context, drv driver.Driver) error) handlerFunc {
	return func(ctx context.Context, drv driver.Driver, _ json.RawMessage) (any, error) {
		return nil, fn(ctx, drv)
	}
}
