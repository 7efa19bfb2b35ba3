// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoding for Screenshot
	_ "image/png"  // register PNG decoding for Screenshot

	"github.com/uiautodev/uiautodev/internal/driver"
)

// assertionAdapter narrows a driver.Driver down to the small surface
// internal/assertion needs, decoding the raw screenshot bytes and
// discarding the parsed hierarchy tree the assertion engine has no use
// for.
type assertionAdapter struct {
	drv driver.Driver
}

func (a assertionAdapter) DumpHierarchyXML(ctx context.Context) (string, error) {
	rawXML, _, err := a.drv.DumpHierarchy(ctx)
	return rawXML, err
}

func (a assertionAdapter) Screenshot(ctx context.Context) (image.Image, error) {
	data, err := a.drv.Screenshot(ctx, 0)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode screenshot: %v", driver.ErrParse, err)
	}
	return img, nil
}
