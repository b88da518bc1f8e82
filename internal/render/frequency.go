package render

import (
	"fmt"
	"image/color"
	"strconv"

	"github.com/fogleman/gg"

	"github.com/biopareto/server/internal/geneset"
)

var barStroke = color.RGBA{50, 110, 160, 255}

// RenderFrequency renders the distribution of genes under 100% frequency:
// one bar per percentage, its height the number of genes at that percentage
// and its fill shaded by the percentage along the configured ramp.
func (r *Renderer) RenderFrequency(f geneset.Frequencies, width, height int) ([]byte, error) {
	if width <= 0 {
		width = r.config.Width
	}
	if height <= 0 {
		height = r.config.Height
	}
	if width <= 120 || height <= 120 {
		return nil, fmt.Errorf("chart size %dx%d is too small", width, height)
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	left, right := 60.0, float64(width-30)
	top, bottom := 50.0, float64(height-55)

	under := 0
	maxCount := 0
	for _, g := range f.Groups {
		under += len(g.Genes)
		if len(g.Genes) > maxCount {
			maxCount = len(g.Genes)
		}
	}

	dc.SetColor(barStroke)
	dc.DrawStringAnchored(fmt.Sprintf("Gene Frequency Distribution (%d genes under 100%%)", under), float64(width)/2, 22, 0.5, 0.5)

	dc.SetColor(axisColor)
	dc.SetLineWidth(1)
	dc.DrawLine(left, bottom, right, bottom)
	dc.DrawLine(left, top, left, bottom)
	dc.Stroke()

	dc.SetColor(labelColor)
	dc.DrawStringAnchored("Frequency (%)", (left+right)/2, bottom+38, 0.5, 0.5)

	if len(f.Groups) == 0 {
		dc.DrawStringAnchored("No genes under 100% frequency", (left+right)/2, (top+bottom)/2, 0.5, 0.5)
		return r.encodeContext(dc)
	}

	yTicks := ticks(0, float64(maxCount), 5)
	scale := (bottom - top) / (float64(maxCount) * 1.1)
	for _, t := range yTicks {
		if t != float64(int(t)) {
			continue
		}
		y := bottom - t*scale
		dc.SetColor(gridColor)
		dc.DrawLine(left, y, right, y)
		dc.Stroke()
		dc.SetColor(labelColor)
		dc.DrawStringAnchored(strconv.Itoa(int(t)), left-8, y, 1, 0.5)
	}

	slot := (right - left) / float64(len(f.Groups))
	barWidth := slot * 0.7
	for i, g := range f.Groups {
		n := len(g.Genes)
		x := left + float64(i)*slot + (slot-barWidth)/2
		h := float64(n) * scale
		dc.DrawRectangle(x, bottom-h, barWidth, h)
		dc.SetColor(r.ramp.At(g.Percent / 100))
		dc.FillPreserve()
		dc.SetColor(barStroke)
		dc.Stroke()

		dc.SetColor(labelColor)
		dc.DrawStringAnchored(strconv.Itoa(n), x+barWidth/2, bottom-h-8, 0.5, 0.5)
		dc.DrawStringAnchored(strconv.FormatFloat(g.Percent, 'f', -1, 64)+"%", x+barWidth/2, bottom+14, 0.5, 0.5)
	}

	return r.encodeContext(dc)
}
