// Package viewport maps continuous simulation coordinates onto a
// bounded character grid under pan and zoom.
package viewport

import (
	"fmt"
	"math"

	"github.com/dverna/wisp/internal/apperr"
	"github.com/dverna/wisp/internal/layout"
)

// Cell is a discrete display coordinate. OffScreen marks positions
// outside the current bounds; the mapper reports them rather than
// clamping, so the camera may look at empty space.
type Cell struct {
	Row       int  `json:"row"`
	Col       int  `json:"col"`
	OffScreen bool `json:"off_screen"`
}

// Config bounds the zoom range and corrects for non-square terminal
// cells. Aspect scales the vertical axis: 0.5 treats a cell as twice
// as tall as it is wide.
type Config struct {
	MinZoom float64 `yaml:"min_zoom" json:"min_zoom"`
	MaxZoom float64 `yaml:"max_zoom" json:"max_zoom"`
	Aspect  float64 `yaml:"aspect" json:"aspect"`
}

// DefaultConfig returns the standard zoom range and cell aspect.
func DefaultConfig() Config {
	return Config{MinZoom: 0.1, MaxZoom: 5.0, Aspect: 0.5}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinZoom <= 0 {
		c.MinZoom = d.MinZoom
	}
	if c.MaxZoom <= c.MinZoom {
		c.MaxZoom = d.MaxZoom
	}
	if c.Aspect <= 0 {
		c.Aspect = d.Aspect
	}
	return c
}

// Viewport is the pan/zoom transform between simulation space and
// display space. Pure presentation state; it never owns graph data.
type Viewport struct {
	cfg     Config
	centerX float64
	centerY float64
	zoom    float64
	rows    int
	cols    int
}

// New creates a viewport with zoom 1.0 (clamped into the configured
// range) centered on the origin.
func New(cfg Config) *Viewport {
	cfg = cfg.withDefaults()
	z := 1.0
	if z < cfg.MinZoom {
		z = cfg.MinZoom
	}
	if z > cfg.MaxZoom {
		z = cfg.MaxZoom
	}
	return &Viewport{cfg: cfg, zoom: z, rows: 24, cols: 80}
}

// SetBounds sets the display size in character cells.
func (v *Viewport) SetBounds(rows, cols int) {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	v.rows = rows
	v.cols = cols
}

// Bounds returns the display size.
func (v *Viewport) Bounds() (rows, cols int) { return v.rows, v.cols }

// Center returns the world point currently mapped to the middle of
// the display.
func (v *Viewport) Center() (x, y float64) { return v.centerX, v.centerY }

// SetCenter points the camera at a world position. Never clamped:
// whether the camera may leave the graph is the caller's policy.
func (v *Viewport) SetCenter(x, y float64) {
	v.centerX = x
	v.centerY = y
}

// Pan moves the camera by a world-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.centerX += dx
	v.centerY += dy
}

// Zoom returns the current scale.
func (v *Viewport) Zoom() float64 { return v.zoom }

// SetZoom sets the scale, rejecting values outside the configured
// range and leaving the current zoom untouched on rejection.
func (v *Viewport) SetZoom(z float64) error {
	if z < v.cfg.MinZoom || z > v.cfg.MaxZoom {
		return fmt.Errorf("viewport: zoom %.3f outside [%.2f, %.2f]: %w",
			z, v.cfg.MinZoom, v.cfg.MaxZoom, apperr.ErrZoomOutOfRange)
	}
	v.zoom = z
	return nil
}

// ZoomBy multiplies the current zoom by factor, with the same
// rejection rule as SetZoom.
func (v *Viewport) ZoomBy(factor float64) error {
	return v.SetZoom(v.zoom * factor)
}

// Map projects a simulation position into display coordinates.
func (v *Viewport) Map(p layout.Position) Cell {
	col := int(math.Round((p.X-v.centerX)*v.zoom + float64(v.cols)/2))
	row := int(math.Round((p.Y-v.centerY)*v.zoom*v.cfg.Aspect + float64(v.rows)/2))
	off := row < 0 || row >= v.rows || col < 0 || col >= v.cols
	return Cell{Row: row, Col: col, OffScreen: off}
}

// Unmap inverts Map for the center of a cell, returning the world
// position displayed there.
func (v *Viewport) Unmap(row, col int) layout.Position {
	return layout.Position{
		X: (float64(col)-float64(v.cols)/2)/v.zoom + v.centerX,
		Y: (float64(row)-float64(v.rows)/2)/(v.zoom*v.cfg.Aspect) + v.centerY,
	}
}
