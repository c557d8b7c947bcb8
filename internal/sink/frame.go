package sink

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/l1jgo/zonelights/internal/lighting"
)

// LightState is one light as seen at the end of a frame.
type LightState struct {
	ID        lighting.ID    `json:"id"`
	Position  mgl64.Vec3     `json:"pos"`
	Color     lighting.Color `json:"color"`
	Range     float64        `json:"range"`
	Intensity float64        `json:"intensity"`
	Visible   bool           `json:"visible"`
}

// Frame is an immutable snapshot. Receivers must not modify Lights; the
// slice is shared by every listener of the same frame.
type Frame struct {
	Tick      uint64       `json:"tick"`
	ZoneID    int32        `json:"zone_id"`
	Zone      string       `json:"zone"`
	Viewpoint mgl64.Vec3   `json:"viewpoint"`
	Lights    []LightState `json:"lights"`
}

// Visible counts visible lights in the frame.
func (f Frame) Visible() int {
	n := 0
	for _, l := range f.Lights {
		if l.Visible {
			n++
		}
	}
	return n
}

// Listener consumes frames. Both methods run on the game loop goroutine and
// must not block; hand the value off to a channel instead.
type Listener interface {
	OnFrame(f Frame)
	OnRelease(zoneID int32)
}

// FrameBuffer accumulates sink calls during a frame and, at EndFrame, gives
// every listener the same copy of the result.
type FrameBuffer struct {
	zoneID int32
	zone   string
	vp     mgl64.Vec3
	lights []LightState

	listeners []Listener
}

func NewFrameBuffer() *FrameBuffer { return &FrameBuffer{} }

func (b *FrameBuffer) Subscribe(l Listener) {
	b.listeners = append(b.listeners, l)
}

func (b *FrameBuffer) at(id lighting.ID) *LightState {
	for int(id) >= len(b.lights) {
		b.lights = append(b.lights, LightState{ID: lighting.ID(len(b.lights))})
	}
	return &b.lights[id]
}

func (b *FrameBuffer) SetZone(id int32, name string) {
	b.zoneID = id
	b.zone = name
}

func (b *FrameBuffer) SetViewpoint(p mgl64.Vec3) { b.vp = p }

func (b *FrameBuffer) SetPosition(id lighting.ID, p mgl64.Vec3) { b.at(id).Position = p }

func (b *FrameBuffer) SetColor(id lighting.ID, c lighting.Color, rng float64) {
	ls := b.at(id)
	ls.Color = c
	ls.Range = rng
}

func (b *FrameBuffer) SetIntensity(id lighting.ID, v float64) { b.at(id).Intensity = v }
func (b *FrameBuffer) SetVisible(id lighting.ID, v bool)      { b.at(id).Visible = v }

func (b *FrameBuffer) EndFrame(tick uint64) {
	if len(b.listeners) == 0 {
		return
	}
	f := Frame{
		Tick:      tick,
		ZoneID:    b.zoneID,
		Zone:      b.zone,
		Viewpoint: b.vp,
		Lights:    append([]LightState(nil), b.lights...),
	}
	for _, l := range b.listeners {
		l.OnFrame(f)
	}
}

func (b *FrameBuffer) ReleaseAll() {
	b.lights = nil
	for _, l := range b.listeners {
		l.OnRelease(b.zoneID)
	}
}
