// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package hierarchy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
	"github.com/uiautodev/uiautodev/internal/hierarchy"
)

const androidFixture = `<?xml version="1.0"?>
<hierarchy rotation="0">
  <!-- a comment should be invariant -->
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" bounds="[0,0][1080,1920]">
    <node index="0" text="Login" resource-id="com.example:id/login_btn" class="android.widget.Button" bounds="[100,200][300,260]" />
    <node index="1" text="" resource-id="" class="android.widget.EditText" bounds="[garbage]" />
  </node>
</hierarchy>
`

func TestParseAndroidHierarchy(t *testing.T) {
	root, err := hierarchy.Parse(androidFixture, platformkind.Android)
	require.NoError(t, err)

	assert.Equal(t, "hierarchy", root.Key)
	assert.Equal(t, 4, hierarchy.CountElements(root))
	require.Len(t, root.Children, 1)

	frame := root.Children[0]
	require.NotNil(t, frame.Bounds)
	require.Len(t, frame.Children, 2)

	login := frame.Children[0]
	assert.Equal(t, "hierarchy/node[0]/com.example:id/login_btn", login.Key)
	require.NotNil(t, login.Bounds)
	assert.Equal(t, hierarchy.Bounds{X1: 100, Y1: 200, X2: 300, Y2: 260}, *login.Bounds)
	assert.LessOrEqual(t, login.Bounds.X1, login.Bounds.X2)
	assert.LessOrEqual(t, login.Bounds.Y1, login.Bounds.Y2)

	malformed := frame.Children[1]
	assert.Nil(t, malformed.Bounds, "malformed bounds yield an absent-bounds node, not a failure")
}

func TestParseWellFormedCountMatchesNodesWithBounds(t *testing.T) {
	root, err := hierarchy.Parse(androidFixture, platformkind.Android)
	require.NoError(t, err)

	withBounds := 0
	hierarchy.Walk(root, func(n *hierarchy.Node) {
		if n.Bounds != nil {
			withBounds++
		}
	})
	// the FrameLayout and login button have well-formed bounds; the root has
	// no bounds attribute and the malformed EditText doesn't parse.
	assert.Equal(t, 2, withBounds)
}

func TestParseIOSBoundsSynthesized(t *testing.T) {
	const iosXML = `<AppiumAUT>
  <XCUIElementTypeApplication x="0" y="0" width="390" height="844">
    <XCUIElementTypeButton name="login_btn" label="Login" type="XCUIElementTypeButton" x="20.4" y="100.6" width="100" height="44" visible="true"/>
    <XCUIElementTypeOther name="hidden" type="XCUIElementTypeOther" x="0" y="0" width="0" height="0" visible="false"/>
  </XCUIElementTypeApplication>
</AppiumAUT>`

	root, err := hierarchy.Parse(iosXML, platformkind.IOS)
	require.NoError(t, err)
	app := root.Children[0]
	require.Len(t, app.Children, 1, "the zero-area invisible element must be elided")

	btn := app.Children[0]
	require.NotNil(t, btn.Bounds)
	assert.Equal(t, 20, btn.Bounds.X1)
	assert.Equal(t, 101, btn.Bounds.Y1)
	assert.Equal(t, 120, btn.Bounds.X2)
	assert.Equal(t, 145, btn.Bounds.Y2)
}

func TestParseMalformedRootFails(t *testing.T) {
	_, err := hierarchy.Parse("not xml at all", platformkind.Android)
	require.Error(t, err)
	var perr *hierarchy.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestParseEmptyDocumentFails(t *testing.T) {
	_, err := hierarchy.Parse("", platformkind.Android)
	require.Error(t, err)
}

func TestParseHarmonyFallsBackToIOSConvention(t *testing.T) {
	const harmonyXML = `<root><Text id="t1" type="Text" x="0" y="0" width="50" height="20"/></root>`
	root, err := hierarchy.Parse(harmonyXML, platformkind.Harmony)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	require.NotNil(t, root.Children[0].Bounds)
}
