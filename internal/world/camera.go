package world

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera flies the viewpoint along a waypoint path at constant speed.
// Looping paths close back to the first waypoint; open paths run back and
// forth. A path with fewer than two points, or zero speed, holds still.
// Accessed only from the game loop goroutine.
type Camera struct {
	points []mgl64.Vec3
	cum    []float64 // distance from points[0] to points[i] along the path
	total  float64
	speed  float64
	loop   bool

	s   float64 // distance travelled, wrapped
	pos mgl64.Vec3
}

func NewCamera() *Camera { return &Camera{} }

// SetPath replaces the path and moves the camera to its first point.
func (c *Camera) SetPath(points []mgl64.Vec3, speed float64, loop bool) {
	c.points = append(c.points[:0], points...)
	if loop && len(points) > 1 {
		c.points = append(c.points, points[0])
	}
	c.cum = c.cum[:0]
	c.total = 0
	for i := range c.points {
		if i > 0 {
			c.total += c.points[i].Sub(c.points[i-1]).Len()
		}
		c.cum = append(c.cum, c.total)
	}
	c.speed = math.Max(speed, 0)
	c.loop = loop
	c.s = 0
	c.pos = mgl64.Vec3{}
	if len(c.points) > 0 {
		c.pos = c.points[0]
	}
}

// Hold pins the camera at p until the next SetPath.
func (c *Camera) Hold(p mgl64.Vec3) {
	c.SetPath([]mgl64.Vec3{p}, 0, false)
}

func (c *Camera) Position() mgl64.Vec3 { return c.pos }

// Advance moves the camera by speed*dt along the path.
func (c *Camera) Advance(dt time.Duration) {
	if c.total <= 0 || c.speed == 0 || dt <= 0 {
		return
	}
	c.s += c.speed * dt.Seconds()
	period := c.total
	if !c.loop {
		period = 2 * c.total
	}
	c.s = math.Mod(c.s, period)

	d := c.s
	if d > c.total {
		d = period - d
	}
	c.pos = c.at(d)
}

// at returns the point at distance d along the path.
func (c *Camera) at(d float64) mgl64.Vec3 {
	for i := 1; i < len(c.points); i++ {
		if d > c.cum[i] {
			continue
		}
		seg := c.cum[i] - c.cum[i-1]
		if seg == 0 {
			return c.points[i]
		}
		t := (d - c.cum[i-1]) / seg
		return c.points[i-1].Add(c.points[i].Sub(c.points[i-1]).Mul(t))
	}
	return c.points[len(c.points)-1]
}
