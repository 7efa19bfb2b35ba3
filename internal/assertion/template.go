// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package assertion

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"
)

// ImageDetail is the detail object attached to one evaluated image
// condition.
type ImageDetail struct {
	Reason    string  `json:"reason,omitempty"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	PeakX     int     `json:"peak_x"`
	PeakY     int     `json:"peak_y"`
}

// decodeTemplate strips an optional data URL prefix, base64-decodes the
// remainder, and enforces the MaxTemplateSize cap on the decoded bytes.
func decodeTemplate(data string) ([]byte, error) {
	if idx := strings.Index(data, ";base64,"); idx >= 0 && strings.HasPrefix(data, "data:") {
		data = data[idx+len(";base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 template: %s", driverErrInvalidArgument, err.Error())
	}
	if len(raw) > MaxTemplateSize {
		return nil, fmt.Errorf("%w: template exceeds %d bytes", driverErrInvalidArgument, MaxTemplateSize)
	}
	return raw, nil
}

// checkImageExists screenshots the device and locates tmpl within it via
// normalized cross-correlation, returning whether the best match clears the
// template's threshold.
func checkImageExists(ctx context.Context, drv Driver, tmpl ImageTemplate) (bool, ImageDetail) {
	raw, err := decodeTemplate(tmpl.Data)
	if err != nil {
		return false, ImageDetail{Reason: err.Error(), Threshold: tmpl.Threshold}
	}
	needle, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return false, ImageDetail{Reason: "template decode failed: " + err.Error(), Threshold: tmpl.Threshold}
	}

	haystack, err := drv.Screenshot(ctx)
	if err != nil {
		return false, ImageDetail{Reason: "screenshot failed: " + err.Error(), Threshold: tmpl.Threshold}
	}

	score, px, py, ok := bestNCCMatch(haystack, needle)
	if !ok {
		return false, ImageDetail{Reason: "template larger than screenshot", Threshold: tmpl.Threshold}
	}

	detail := ImageDetail{Score: score, Threshold: tmpl.Threshold, PeakX: px, PeakY: py}
	if score < tmpl.Threshold {
		detail.Reason = "score below threshold"
		return false, detail
	}
	return true, detail
}

// bestNCCMatch slides needle over haystack (converted to grayscale) and
// returns the best-scoring top-left position along with its normalized
// cross-correlation score in [-1, 1].
func bestNCCMatch(haystack, needle image.Image) (score float64, x, y int, ok bool) {
	hb, nb := haystack.Bounds(), needle.Bounds()
	hw, hh := hb.Dx(), hb.Dy()
	nw, nh := nb.Dx(), nb.Dy()
	if nw == 0 || nh == 0 || nw > hw || nh > hh {
		return 0, 0, 0, false
	}

	hGray := toGray(haystack)
	nGray := toGray(needle)

	nMean := meanOf(nGray, 0, 0, nw, nh, nw)
	nNorm := normOf(nGray, 0, 0, nw, nh, nw, nMean)

	best := -2.0
	bestX, bestY := 0, 0
	for oy := 0; oy <= hh-nh; oy++ {
		for ox := 0; ox <= hw-nw; ox++ {
			hMean := meanOf(hGray, ox, oy, nw, nh, hw)
			hNorm := normOf(hGray, ox, oy, nw, nh, hw, hMean)
			if nNorm == 0 || hNorm == 0 {
				// A flat patch has no variance to correlate: it scores 1
				// against another flat patch of the same level, else 0.
				s := 0.0
				if nNorm == 0 && hNorm == 0 && math.Abs(hMean-nMean) < 0.5 {
					s = 1
				}
				if s > best {
					best, bestX, bestY = s, ox, oy
				}
				continue
			}

			var dot float64
			for j := 0; j < nh; j++ {
				for i := 0; i < nw; i++ {
					hv := float64(hGray[(oy+j)*hw+(ox+i)]) - hMean
					nv := float64(nGray[j*nw+i]) - nMean
					dot += hv * nv
				}
			}
			s := dot / (hNorm * nNorm)
			if s > best {
				best, bestX, bestY = s, ox, oy
			}
		}
	}
	return best, bestX, bestY, true
}

func toGray(img image.Image) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	return out
}

func meanOf(gray []float64, ox, oy, w, h, stride int) float64 {
	var sum float64
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			sum += gray[(oy+j)*stride+(ox+i)]
		}
	}
	return sum / float64(w*h)
}

func normOf(gray []float64, ox, oy, w, h, stride int, mean float64) float64 {
	var sum float64
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			d := gray[(oy+j)*stride+(ox+i)] - mean
			sum += d * d
		}
	}
	if sum <= 0 {
		return 0
	}
	return math.Sqrt(sum)
}
