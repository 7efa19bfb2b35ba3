// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package hierarchy

import (
	"encoding/xml"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
)

var androidBoundsPattern = regexp.MustCompile(`\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)

// Parse turns a platform UI-tree XML document into a Node tree, applying
// each platform's own bounds conventions (Android's "[x1,y1][x2,y2]"
// strings, iOS/Harmony's discrete x/y/width/height attributes). The window
// size is only used by callers (see internal/query) — the parser itself
// does not normalize coordinates.
func Parse(rawXML string, platform platformkind.Platform) (*Node, error) {
	dec := xml.NewDecoder(strings.NewReader(rawXML))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, &ParseError{Reason: "empty document"}
		}
		if err != nil {
			return nil, &ParseError{Reason: err.Error()}
		}
		if start, ok := tok.(xml.StartElement); ok {
			node, err := parseElement(dec, start, "", platform, map[string]int{}, true)
			if err != nil {
				return nil, err
			}
			return node, nil
		}
		// comments, whitespace-only char data, proc instructions: skip.
	}
}

func parseElement(dec *xml.Decoder, start xml.StartElement, parentKey string, platform platformkind.Platform, siblingTagCounts map[string]int, isRoot bool) (*Node, error) {
	attrs := make(map[string]string, len(start.Attr))
	for _, a := range start.Attr {
		attrs[a.Name.Local] = a.Value
	}

	tag := start.Name.Local
	var key string
	if isRoot {
		key = tag
	} else {
		idx := siblingTagCounts[tag]
		siblingTagCounts[tag] = idx + 1
		if rid, ok := attrs["resource-id"]; ok && rid != "" {
			key = parentKey + "/" + rid
		} else {
			key = parentKey + "/" + tag + "[" + strconv.Itoa(idx) + "]"
		}
	}

	node := &Node{
		Key:        key,
		Name:       tag,
		Properties: attrs,
		Bounds:     parseBounds(attrs, platform),
		Children:   []*Node{},
	}

	childTagCounts := map[string]int{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, &ParseError{Reason: "unexpected EOF inside <" + tag + ">"}
		}
		if err != nil {
			return nil, &ParseError{Reason: err.Error()}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(dec, t, key, platform, childTagCounts, false)
			if err != nil {
				return nil, err
			}
			if !elideVisibility(child, platform) {
				node.Children = append(node.Children, child)
			}
		case xml.EndElement:
			if t.Name.Local == tag {
				return node, nil
			}
		case xml.CharData, xml.Comment, xml.ProcInst, xml.Directive:
			// whitespace-only text nodes and comments are invariant: ignored.
		}
	}
}

// elideVisibility implements: an iOS element with visible="false" and a
// zero-area bound is elided from the output. All other elements, on any
// platform, are retained regardless of visibility.
func elideVisibility(n *Node, platform platformkind.Platform) bool {
	if platform != platformkind.IOS {
		return false
	}
	if n.Properties["visible"] != "false" {
		return false
	}
	if n.Bounds == nil {
		return false
	}
	area := (n.Bounds.X2 - n.Bounds.X1) * (n.Bounds.Y2 - n.Bounds.Y1)
	return area == 0
}

func parseBounds(attrs map[string]string, platform platformkind.Platform) *Bounds {
	switch platform {
	case platformkind.Android:
		return parseAndroidBounds(attrs)
	case platformkind.IOS:
		return parseIOSBounds(attrs)
	case platformkind.Harmony:
		if _, ok := attrs["bounds"]; ok {
			return parseAndroidBounds(attrs)
		}
		return parseIOSBounds(attrs)
	default:
		return nil
	}
}

func parseAndroidBounds(attrs map[string]string) *Bounds {
	raw, ok := attrs["bounds"]
	if !ok {
		return nil
	}
	m := androidBoundsPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	x1, err1 := strconv.Atoi(m[1])
	y1, err2 := strconv.Atoi(m[2])
	x2, err3 := strconv.Atoi(m[3])
	y2, err4 := strconv.Atoi(m[4])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return nil
	}
	if x1 < 0 || y1 < 0 || x1 > x2 || y1 > y2 {
		return nil
	}
	return &Bounds{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func parseIOSBounds(attrs map[string]string) *Bounds {
	x, xok := parseFloat(attrs["x"])
	y, yok := parseFloat(attrs["y"])
	w, wok := parseFloat(attrs["width"])
	h, hok := parseFloat(attrs["height"])
	if !xok || !yok || !wok || !hok {
		return nil
	}
	x1, y1 := int(math.Round(x)), int(math.Round(y))
	x2, y2 := int(math.Round(x+w)), int(math.Round(y+h))
	if x1 < 0 || y1 < 0 || x1 > x2 || y1 > y2 {
		return nil
	}
	return &Bounds{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
