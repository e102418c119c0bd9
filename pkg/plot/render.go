package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 720

	minWidth  = 200
	minHeight = 150

	marginLeft   = 72
	marginRight  = 16
	marginTop    = 28
	marginBottom = 28
)

var ErrCanvasTooSmall = errors.New("canvas too small")

var (
	background = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	gridColor  = color.RGBA{R: 0xe6, G: 0xe6, B: 0xe6, A: 0xff}
	textColor  = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	bullColor  = color.RGBA{R: 0x26, G: 0xa6, B: 0x9a, A: 0xff}
	bearColor  = color.RGBA{R: 0xef, G: 0x53, B: 0x50, A: 0xff}
	predColor  = color.RGBA{R: 0x1e, G: 0x63, B: 0xd6, A: 0xff}
	bandColor  = color.NRGBA{R: 0x1e, G: 0x63, B: 0xd6, A: 0x40}
)

// Render draws spec as a PNG of the given size: candles, indicator lines and
// the forecast line with its confidence band.
func Render(spec *ChartSpec, width, height int) ([]byte, error) {
	if spec == nil || len(spec.Candles) == 0 {
		return nil, core.ErrEmptySeries
	}
	if width < minWidth || height < minHeight {
		return nil, fmt.Errorf("%w: %dx%d, need at least %dx%d", ErrCanvasTooSmall, width, height, minWidth, minHeight)
	}

	c := newCanvas(spec, width, height)
	c.grid()
	c.forecastBand()
	c.candles()
	c.indicators()
	c.forecastLine()
	c.labels()

	buffer := bytes.NewBuffer(nil)
	if err := png.Encode(buffer, c.img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buffer.Bytes(), nil
}

type canvas struct {
	spec      *ChartSpec
	img       *image.RGBA
	raster    *vector.Rasterizer
	precision int

	left, top, plotW, plotH float64
	tMin, tMax              time.Time
	yMin, yMax              float64
}

func newCanvas(spec *ChartSpec, width, height int) *canvas {
	c := &canvas{
		spec:   spec,
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
		raster: vector.NewRasterizer(width, height),
		left:   marginLeft,
		top:    marginTop,
		plotW:  float64(width - marginLeft - marginRight),
		plotH:  float64(height - marginTop - marginBottom),
	}
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	closes := make([]float64, len(spec.Candles))
	for i, candle := range spec.Candles {
		closes[i] = candle.Close
	}
	c.precision = core.PricePrecision(closes)

	c.tMin, c.tMax = spec.Candles[0].Time, spec.LastCandle().Time
	c.yMin, c.yMax = priceRange(spec.Candles)

	for _, ind := range spec.Indicators {
		for _, metric := range ind.Metrics {
			for _, v := range metric.Values {
				c.yMin, c.yMax = math.Min(c.yMin, v), math.Max(c.yMax, v)
			}
		}
	}

	if spec.Forecast != nil {
		for _, p := range spec.Forecast.Points {
			c.yMin, c.yMax = math.Min(c.yMin, p.Lower), math.Max(c.yMax, p.Upper)
			if p.Time.After(c.tMax) {
				c.tMax = p.Time
			}
		}
	}

	if !c.tMax.After(c.tMin) {
		c.tMin, c.tMax = c.tMin.AddDate(0, 0, -1), c.tMax.AddDate(0, 0, 1)
	}
	if c.yMax-c.yMin < 1e-9 {
		c.yMin, c.yMax = c.yMin-1, c.yMax+1
	}
	pad := (c.yMax - c.yMin) * 0.05
	c.yMin, c.yMax = c.yMin-pad, c.yMax+pad

	return c
}

func (c *canvas) x(t time.Time) float32 {
	return float32(c.left + float64(t.Sub(c.tMin))/float64(c.tMax.Sub(c.tMin))*c.plotW)
}

func (c *canvas) y(v float64) float32 {
	return float32(c.top + (c.yMax-v)/(c.yMax-c.yMin)*c.plotH)
}

// fill runs path on a clean rasterizer and paints the result with col
func (c *canvas) fill(col color.Color, path func(r *vector.Rasterizer)) {
	bounds := c.img.Bounds()
	c.raster.Reset(bounds.Dx(), bounds.Dy())
	path(c.raster)
	c.raster.Draw(c.img, bounds, image.NewUniform(col), image.Point{})
}

func rect(r *vector.Rasterizer, x0, y0, x1, y1 float32) {
	r.MoveTo(x0, y0)
	r.LineTo(x1, y0)
	r.LineTo(x1, y1)
	r.LineTo(x0, y1)
	r.ClosePath()
}

// segment adds a stroke of the given width from (x0, y0) to (x1, y1)
func segment(r *vector.Rasterizer, x0, y0, x1, y1, width float32) {
	dx, dy := x1-x0, y1-y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	r.MoveTo(x0+nx, y0+ny)
	r.LineTo(x1+nx, y1+ny)
	r.LineTo(x1-nx, y1-ny)
	r.LineTo(x0-nx, y0-ny)
	r.ClosePath()
}

func (c *canvas) polyline(col color.Color, dashed bool, times []time.Time, values []float64) {
	if len(values) < 2 {
		return
	}

	c.fill(col, func(r *vector.Rasterizer) {
		for i := 1; i < len(values); i++ {
			if dashed && i%2 == 0 {
				continue
			}
			segment(r, c.x(times[i-1]), c.y(values[i-1]), c.x(times[i]), c.y(values[i]), 1.5)
		}
	})
}

func (c *canvas) grid() {
	right, bottom := float32(c.left+c.plotW), float32(c.top+c.plotH)
	c.fill(gridColor, func(r *vector.Rasterizer) {
		for i := 0; i <= 4; i++ {
			y := float32(c.top + c.plotH*float64(i)/4)
			rect(r, float32(c.left), y, right, y+1)
		}
		rect(r, float32(c.left), float32(c.top), float32(c.left)+1, bottom)
	})
}

func (c *canvas) candleWidth() float32 {
	days := c.tMax.Sub(c.tMin).Hours()/24 + 1
	return float32(math.Max(1, c.plotW/days*0.7))
}

func (c *canvas) candles() {
	half := c.candleWidth() / 2

	for _, bullish := range []bool{true, false} {
		col := color.Color(bearColor)
		if bullish {
			col = bullColor
		}

		c.fill(col, func(r *vector.Rasterizer) {
			for _, candle := range c.spec.Candles {
				if (candle.Close >= candle.Open) != bullish {
					continue
				}

				x := c.x(candle.Time)
				rect(r, x-0.5, c.y(candle.High), x+0.5, c.y(candle.Low))

				top, bottom := c.y(math.Max(candle.Open, candle.Close)), c.y(math.Min(candle.Open, candle.Close))
				if bottom-top < 1 {
					bottom = top + 1
				}
				rect(r, x-half, top, x+half, bottom)
			}
		})
	}
}

func (c *canvas) indicators() {
	for _, ind := range c.spec.Indicators {
		for _, metric := range ind.Metrics {
			c.polyline(parseHexColor(metric.Color), metric.Style == "dashed", metric.Time, metric.Values)
		}
	}
}

func (c *canvas) forecastBand() {
	if c.spec.Forecast == nil || len(c.spec.Forecast.Points) < 2 {
		return
	}

	points := c.spec.Forecast.Points
	c.fill(bandColor, func(r *vector.Rasterizer) {
		r.MoveTo(c.x(points[0].Time), c.y(points[0].Upper))
		for _, p := range points[1:] {
			r.LineTo(c.x(p.Time), c.y(p.Upper))
		}
		for i := len(points) - 1; i >= 0; i-- {
			r.LineTo(c.x(points[i].Time), c.y(points[i].Lower))
		}
		r.ClosePath()
	})
}

func (c *canvas) forecastLine() {
	if c.spec.Forecast == nil {
		return
	}

	points := c.spec.Forecast.Points
	times := make([]time.Time, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		times[i], values[i] = p.Time, p.Predicted
	}

	c.polyline(predColor, false, times, values)

	if len(points) == 1 {
		x, y := c.x(times[0]), c.y(values[0])
		c.fill(predColor, func(r *vector.Rasterizer) { rect(r, x-2, y-2, x+2, y+2) })
	}
}

func (c *canvas) text(x, y int, s string) {
	drawer := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(s)
}

func (c *canvas) labels() {
	last := c.spec.LastCandle()
	title := fmt.Sprintf("%s  close %s  %s", c.spec.Ticker,
		strconv.FormatFloat(last.Close, 'f', c.precision, 64), last.Time.Format(time.DateOnly))
	if f := c.spec.Forecast; f != nil {
		title += fmt.Sprintf("  next %s [%s, %s]",
			strconv.FormatFloat(f.Next.Predicted, 'f', c.precision, 64),
			strconv.FormatFloat(f.Next.Lower, 'f', c.precision, 64),
			strconv.FormatFloat(f.Next.Upper, 'f', c.precision, 64))
	}
	c.text(int(c.left), marginTop-10, title)

	for i := 0; i <= 4; i++ {
		v := c.yMax - (c.yMax-c.yMin)*float64(i)/4
		c.text(4, int(c.top+c.plotH*float64(i)/4)+4, strconv.FormatFloat(v, 'f', 2, 64))
	}

	baseline := int(c.top+c.plotH) + 18
	c.text(int(c.left), baseline, c.tMin.Format(time.DateOnly))
	end := c.tMax.Format(time.DateOnly)
	c.text(int(c.left+c.plotW)-len(end)*basicfont.Face7x13.Advance, baseline, end)
}

// parseHexColor reads #rrggbb, falling back to gray
func parseHexColor(hex string) color.Color {
	fallback := color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	if len(hex) != 7 || hex[0] != '#' {
		return fallback
	}

	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
