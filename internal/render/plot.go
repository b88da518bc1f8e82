// Package render draws Pareto scatter plots and gene frequency charts using
// fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/fogleman/gg"

	"github.com/biopareto/server/internal/coord"
	"github.com/biopareto/server/internal/pareto"
	"github.com/biopareto/server/pkg/colormap"
)

// Config contains renderer configuration.
type Config struct {
	Width    int
	Height   int
	Colormap string
	// FrontColors overrides the front palette with hex colors.
	FrontColors []string
}

// frontSamples is the number of colors drawn from a continuous colormap for
// front lines.
const frontSamples = 8

// Margins around the plot area, in pixels.
const (
	marginLeft   = 70
	marginRight  = 170
	marginTop    = 40
	marginBottom = 55
)

// Marker radii.
const (
	radiusNormal    = 5
	radiusDuplicate = 7
	radiusSelected  = 8
	radiusShared    = 11
)

var (
	gridColor  = color.RGBA{230, 230, 230, 255}
	axisColor  = color.RGBA{80, 80, 80, 255}
	labelColor = color.RGBA{40, 40, 40, 255}
)

// Renderer renders PNG images.
type Renderer struct {
	config     Config
	palette    colormap.CategoricalColormap
	ramp       colormap.LinearColormap
	bufferPool sync.Pool
}

// NewRenderer creates a new renderer.
func NewRenderer(cfg Config) *Renderer {
	if cfg.Width <= 0 {
		cfg.Width = 900
	}
	if cfg.Height <= 0 {
		cfg.Height = 600
	}
	palette, ramp := palettes(cfg)
	return &Renderer{
		config:  cfg,
		palette: palette,
		ramp:    ramp,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
}

// palettes resolves the front palette and the ramp frequency bars are shaded
// along. Unknown names fall back to the category palette and Blues.
func palettes(cfg Config) (colormap.CategoricalColormap, colormap.LinearColormap) {
	palette, ramp := colormap.Fronts, colormap.Blues
	if cm, ok := colormap.ByName(cfg.Colormap); ok {
		switch m := cm.(type) {
		case colormap.LinearColormap:
			palette, ramp = m.Sample(frontSamples), m
		case colormap.CategoricalColormap:
			palette = m
		}
	}
	if len(cfg.FrontColors) > 0 {
		if custom, err := colormap.FromHex(cfg.FrontColors); err == nil {
			palette = custom
		}
	}
	return palette, ramp
}

// Size returns the configured image size.
func (r *Renderer) Size() (int, int) {
	return r.config.Width, r.config.Height
}

// ParetoPlot is the input of RenderPareto.
type ParetoPlot struct {
	// Fronts is every front of the document in display order. Hidden fronts
	// are skipped but still consume a palette slot.
	Fronts   []pareto.Front
	Index    *coord.Index
	Selected map[string]bool
	// XRange and YRange override the data extent when set.
	XRange *[2]float64
	YRange *[2]float64
	Width  int
	Height int
}

// viewport maps data coordinates into the plot area.
type viewport struct {
	minX, maxX, minY, maxY float64
	left, right, top, bottom float64
}

func (v viewport) toScreen(x, y float64) (float64, float64) {
	sx := v.left + (x-v.minX)/(v.maxX-v.minX)*(v.right-v.left)
	sy := v.bottom - (y-v.minY)/(v.maxY-v.minY)*(v.bottom-v.top)
	return sx, sy
}

func (v viewport) contains(x, y float64) bool {
	return x >= v.minX && x <= v.maxX && y >= v.minY && y <= v.maxY
}

func newViewport(p ParetoPlot, width, height int) viewport {
	v := viewport{
		left:   marginLeft,
		right:  float64(width - marginRight),
		top:    marginTop,
		bottom: float64(height - marginBottom),
	}
	minX, maxX, minY, maxY, ok := 0.0, 1.0, 0.0, 1.0, false
	if p.Index != nil {
		minX, maxX, minY, maxY, ok = p.Index.Bounds()
	}
	if !ok {
		minX, maxX, minY, maxY = 0, 1, 0, 1
	}
	v.minX, v.maxX = pad(minX, maxX)
	v.minY, v.maxY = pad(minY, maxY)
	if p.XRange != nil && p.XRange[0] != p.XRange[1] {
		v.minX, v.maxX = math.Min(p.XRange[0], p.XRange[1]), math.Max(p.XRange[0], p.XRange[1])
	}
	if p.YRange != nil && p.YRange[0] != p.YRange[1] {
		v.minY, v.maxY = math.Min(p.YRange[0], p.YRange[1]), math.Max(p.YRange[0], p.YRange[1])
	}
	return v
}

// pad widens a range by 5% on each side, or by 0.5 when it is a single value.
func pad(lo, hi float64) (float64, float64) {
	span := hi - lo
	if span == 0 {
		return lo - 0.5, hi + 0.5
	}
	return lo - span*0.05, hi + span*0.05
}

// FrontColor returns the color of the front at display position i.
func (r *Renderer) FrontColor(f pareto.Front, i int) color.Color {
	if f.Consolidated {
		return colormap.Consolidated
	}
	return r.palette.AtIndex(i)
}

// RenderPareto renders the scatter plot of the indexed fronts.
func (r *Renderer) RenderPareto(p ParetoPlot) ([]byte, error) {
	width, height := p.Width, p.Height
	if width <= 0 {
		width = r.config.Width
	}
	if height <= 0 {
		height = r.config.Height
	}
	if width <= marginLeft+marginRight || height <= marginTop+marginBottom {
		return nil, fmt.Errorf("plot size %dx%d is too small", width, height)
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	v := newViewport(p, width, height)
	axes := pareto.Axes{}
	if p.Index != nil {
		axes = p.Index.Axes()
	}
	drawAxes(dc, v, axes)

	if p.Index == nil || p.Index.Len() == 0 {
		dc.SetColor(labelColor)
		dc.DrawStringAnchored("No data loaded", float64(width)/2, float64(height)/2, 0.5, 0.5)
		return r.encodeContext(dc)
	}

	groupOf := make(map[string]coord.Group)
	for _, g := range p.Index.Groups() {
		for _, pt := range g.Points {
			groupOf[pt.UniqueID] = g
		}
	}

	dc.Push()
	dc.DrawRectangle(v.left, v.top, v.right-v.left, v.bottom-v.top)
	dc.Clip()

	var legend []legendEntry
	for i, f := range p.Fronts {
		if !f.Visible {
			continue
		}
		c := r.FrontColor(f, i)
		legend = append(legend, legendEntry{name: f.Name, color: c})

		pts := frontPoints(f, p.Index)
		if len(pts) == 0 {
			continue
		}

		// Front line through the points in ascending x.
		dc.SetColor(c)
		dc.SetLineWidth(1.5)
		for j, pt := range pts {
			sx, sy := v.toScreen(pt.X.Value, pt.Y.Value)
			if j == 0 {
				dc.MoveTo(sx, sy)
			} else {
				dc.LineTo(sx, sy)
			}
		}
		dc.Stroke()

		for _, pt := range pts {
			sx, sy := v.toScreen(pt.X.Value, pt.Y.Value)
			switch {
			case p.Selected[pt.UniqueID]:
				drawCircle(dc, sx, sy, radiusSelected, colormap.Selected, color.White, 2.5)
			case groupOf[pt.UniqueID].Duplicate():
				drawDiamond(dc, sx, sy, radiusDuplicate, colormap.Duplicate, color.RGBA{128, 128, 128, 255}, 1.5)
			default:
				drawCircle(dc, sx, sy, radiusNormal, c, c, 1)
			}
		}
	}

	shared := false
	for _, g := range p.Index.Groups() {
		if !g.Shared() || !v.contains(g.X, g.Y) {
			continue
		}
		shared = true
		sx, sy := v.toScreen(g.X, g.Y)
		drawStar(dc, sx, sy, radiusShared, colormap.Shared, colormap.Selected, 2)
	}
	dc.Pop()

	if hasDuplicates(p.Index) {
		legend = append(legend, legendEntry{name: "Multiple solution point", color: colormap.Duplicate, diamond: true})
	}
	if shared {
		legend = append(legend, legendEntry{name: "Shared across fronts", color: colormap.Shared, star: true})
	}
	drawLegend(dc, legend, float64(width-marginRight+15), marginTop)

	return r.encodeContext(dc)
}

// frontPoints returns the indexed points of one front sorted by x.
func frontPoints(f pareto.Front, ix *coord.Index) []pareto.Point {
	var pts []pareto.Point
	for _, s := range f.Solutions {
		if pt, ok := ix.Point(pareto.UniqueID(s.ID, f.Name)); ok {
			pts = append(pts, pt)
		}
	}
	sort.SliceStable(pts, func(i, j int) bool {
		return pts[i].X.Value < pts[j].X.Value
	})
	return pts
}

func hasDuplicates(ix *coord.Index) bool {
	for _, g := range ix.Groups() {
		if g.Duplicate() {
			return true
		}
	}
	return false
}

func drawAxes(dc *gg.Context, v viewport, axes pareto.Axes) {
	xTicks := ticks(v.minX, v.maxX, 6)
	yTicks := ticks(v.minY, v.maxY, 6)

	dc.SetLineWidth(1)
	dc.SetColor(gridColor)
	for _, t := range xTicks {
		sx, _ := v.toScreen(t, v.minY)
		dc.DrawLine(sx, v.top, sx, v.bottom)
	}
	for _, t := range yTicks {
		_, sy := v.toScreen(v.minX, t)
		dc.DrawLine(v.left, sy, v.right, sy)
	}
	dc.Stroke()

	dc.SetColor(axisColor)
	dc.DrawRectangle(v.left, v.top, v.right-v.left, v.bottom-v.top)
	dc.Stroke()

	dc.SetColor(labelColor)
	for _, t := range xTicks {
		sx, _ := v.toScreen(t, v.minY)
		dc.DrawStringAnchored(formatTick(t), sx, v.bottom+14, 0.5, 0.5)
	}
	for _, t := range yTicks {
		_, sy := v.toScreen(v.minX, t)
		dc.DrawStringAnchored(formatTick(t), v.left-8, sy, 1, 0.5)
	}
	if axes.X != "" {
		dc.DrawStringAnchored(axes.X, (v.left+v.right)/2, v.bottom+36, 0.5, 0.5)
	}
	if axes.Y != "" {
		dc.Push()
		dc.RotateAbout(-math.Pi/2, 18, (v.top+v.bottom)/2)
		dc.DrawStringAnchored(axes.Y, 18, (v.top+v.bottom)/2, 0.5, 0.5)
		dc.Pop()
	}
}

// ticks returns roughly n evenly spaced round values inside [lo, hi].
func ticks(lo, hi float64, n int) []float64 {
	if hi <= lo || n < 2 {
		return []float64{lo}
	}
	raw := (hi - lo) / float64(n-1)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := mag
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		step = m * mag
		if step >= raw {
			break
		}
	}
	var out []float64
	for t := math.Ceil(lo/step) * step; t <= hi+step*1e-9; t += step {
		out = append(out, t)
	}
	return out
}

func formatTick(v float64) string {
	if math.Abs(v) < 1e-12 {
		return "0"
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}

type legendEntry struct {
	name    string
	color   color.Color
	diamond bool
	star    bool
}

func drawLegend(dc *gg.Context, entries []legendEntry, x, y float64) {
	for i, e := range entries {
		cy := y + float64(i)*20 + 6
		switch {
		case e.diamond:
			drawDiamond(dc, x+6, cy, 6, e.color, color.RGBA{128, 128, 128, 255}, 1)
		case e.star:
			drawStar(dc, x+6, cy, 8, e.color, colormap.Selected, 1)
		default:
			drawCircle(dc, x+6, cy, 5, e.color, e.color, 1)
		}
		dc.SetColor(labelColor)
		dc.DrawStringAnchored(e.name, x+18, cy, 0, 0.5)
	}
}

func drawCircle(dc *gg.Context, x, y, r float64, fill, stroke color.Color, lw float64) {
	dc.DrawCircle(x, y, r)
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetColor(stroke)
	dc.SetLineWidth(lw)
	dc.Stroke()
}

func drawDiamond(dc *gg.Context, x, y, r float64, fill, stroke color.Color, lw float64) {
	dc.MoveTo(x, y-r)
	dc.LineTo(x+r, y)
	dc.LineTo(x, y+r)
	dc.LineTo(x-r, y)
	dc.ClosePath()
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetColor(stroke)
	dc.SetLineWidth(lw)
	dc.Stroke()
}

func drawStar(dc *gg.Context, x, y, r float64, fill, stroke color.Color, lw float64) {
	inner := r * 0.45
	for i := 0; i < 10; i++ {
		rad := r
		if i%2 == 1 {
			rad = inner
		}
		a := -math.Pi/2 + float64(i)*math.Pi/5
		px, py := x+rad*math.Cos(a), y+rad*math.Sin(a)
		if i == 0 {
			dc.MoveTo(px, py)
		} else {
			dc.LineTo(px, py)
		}
	}
	dc.ClosePath()
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetColor(stroke)
	dc.SetLineWidth(lw)
	dc.Stroke()
}

func (r *Renderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	// Use fast PNG encoder
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
