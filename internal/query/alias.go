// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package query implements the element query engine: resolving
// by=id|text|label|xpath|className against a parsed hierarchy.Node tree or,
// for xpath, against the raw platform XML directly.
package query

import "github.com/uiautodev/uiautodev/internal/driver/platformkind"

// By enumerates the supported query selectors.
type By string

const (
	ByID        By = "id"
	ByText      By = "text"
	ByLabel     By = "label"
	ByClassName By = "className"
	ByXPath     By = "xpath"
)

// attributeAliases maps a logical attribute key to the raw platform XML
// attribute name that carries it, which differs per platform.
var attributeAliases = map[platformkind.Platform]map[string]string{
	platformkind.Android: {
		"text":       "text",
		"resourceId": "resource-id",
		"className":  "class",
	},
	platformkind.IOS: {
		"text":       "label",
		"resourceId": "name",
		"className":  "type",
	},
	platformkind.Harmony: {
		"text":       "text",
		"resourceId": "id",
		"className":  "type",
	},
}

// RawAttribute resolves a logical attribute key (e.g. "resourceId") to the
// platform's raw XML attribute name. The second return is false for a
// logical key unknown to the alias table for this platform.
func RawAttribute(platform platformkind.Platform, logicalKey string) (string, bool) {
	table, ok := attributeAliases[platform]
	if !ok {
		table = attributeAliases[platformkind.Android]
	}
	raw, ok := table[logicalKey]
	return raw, ok
}
