// Package lighting holds the per-zone light catalog and the visibility
// scheduler that picks which lights are lit around a moving viewpoint.
//
// All state here is owned by the game loop goroutine. Other goroutines must
// only ever see copies taken at a frame boundary (see package sink).
package lighting

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/l1jgo/zonelights/internal/octree"
)

// ID is a light's index in its catalog. Assigned once, never reused.
type ID int32

// Descriptor is one light as it arrives from zone metadata. Color channels
// may be in [0,1] or [0,255].
type Descriptor struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
	R float64 `yaml:"r" json:"r"`
	G float64 `yaml:"g" json:"g"`
	B float64 `yaml:"b" json:"b"`
}

func (d Descriptor) finite() bool {
	for _, v := range [...]float64{d.X, d.Y, d.Z, d.R, d.G, d.B} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Color is a normalized RGB triple.
type Color [3]float64

// NormalizeColor maps 0-255 input down to 0-1 (when any channel exceeds 1)
// and clamps every channel into [0,1].
func NormalizeColor(r, g, b float64) Color {
	c := Color{r, g, b}
	if r > 1 || g > 1 || b > 1 {
		for i := range c {
			c[i] /= 255
		}
	}
	for i := range c {
		c[i] = math.Max(0, math.Min(1, c[i]))
	}
	return c
}

// Light is one static point light plus its runtime fade state.
// intensity and visible are written only by the Scheduler.
type Light struct {
	ID            ID
	Position      mgl64.Vec3
	Color         Color
	BaseIntensity float64
	Range         float64

	intensity float64
	visible   bool
}

// Pos implements octree.Item.
func (l *Light) Pos() mgl64.Vec3 { return l.Position }

func (l *Light) Intensity() float64 { return l.intensity }
func (l *Light) Visible() bool      { return l.visible }

// CatalogOptions are the constants stamped onto every light of a zone and
// the octree limits.
type CatalogOptions struct {
	BaseIntensity float64
	Range         float64
	Capacity      int
	MaxDepth      int
}

func DefaultCatalogOptions() CatalogOptions {
	return CatalogOptions{
		BaseIntensity: 10,
		Range:         60,
		Capacity:      octree.DefaultCapacity,
		MaxDepth:      octree.DefaultMaxDepth,
	}
}

// Catalog is the ordered set of lights of one zone and the octree over them.
// Both are built together and dropped together.
type Catalog struct {
	lights  []*Light
	tree    *octree.Node[*Light]
	skipped int
}

// NewCatalog builds lights from descriptors in order and indexes them.
// Descriptors with non-finite numbers are skipped and counted; they do not
// consume an ID.
func NewCatalog(descs []Descriptor, opts CatalogOptions) *Catalog {
	c := &Catalog{lights: make([]*Light, 0, len(descs))}
	for _, d := range descs {
		if !d.finite() {
			c.skipped++
			continue
		}
		c.lights = append(c.lights, &Light{
			ID:            ID(len(c.lights)),
			Position:      mgl64.Vec3{d.X, d.Y, d.Z},
			Color:         NormalizeColor(d.R, d.G, d.B),
			BaseIntensity: opts.BaseIntensity,
			Range:         opts.Range,
		})
	}
	tree, rejected := octree.Build(c.lights, opts.Capacity, opts.MaxDepth)
	c.tree = tree
	c.skipped += rejected
	return c
}

func (c *Catalog) Len() int { return len(c.lights) }

// Skipped is the number of descriptors that could not be indexed.
func (c *Catalog) Skipped() int { return c.skipped }

// Get returns the light with the given id, or nil.
func (c *Catalog) Get(id ID) *Light {
	if id < 0 || int(id) >= len(c.lights) {
		return nil
	}
	return c.lights[id]
}

// Lights returns the catalog in ID order. Callers must not modify the slice.
func (c *Catalog) Lights() []*Light { return c.lights }

func (c *Catalog) Tree() *octree.Node[*Light] { return c.tree }

// Within returns the lights within r of p, appended to out.
func (c *Catalog) Within(p mgl64.Vec3, r float64, out []*Light) []*Light {
	return c.tree.QuerySphere(p, r, out)
}

// VisibleCount counts lights currently flagged visible.
func (c *Catalog) VisibleCount() int {
	n := 0
	for _, l := range c.lights {
		if l.visible {
			n++
		}
	}
	return n
}
