package observer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/l1jgo/zonelights/internal/lighting"
	"github.com/l1jgo/zonelights/internal/net/packet"
	"github.com/l1jgo/zonelights/internal/sink"
)

// Subscribe flags (C_OPCODE_SUBSCRIBE).
const (
	FlagVisibleOnly byte = 1 << 0 // omit lights that are neither visible nor fading
)

// BuildHello:
// [C op][C version][S server name]
func BuildHello(serverName string) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_HELLO)
	w.WriteC(packet.ProtocolVersion)
	w.WriteS(serverName)
	return w.Bytes()
}

// BuildZoneInfo:
// [C op][D zone][S name][H count] count * [H id][F x][F y][F z][F r][F g][F b][F range]
func BuildZoneInfo(f sink.Frame) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_ZONEINFO)
	w.Grow(16 + len(f.Lights)*30)
	w.WriteD(f.ZoneID)
	w.WriteS(f.Zone)
	w.WriteH(uint16(len(f.Lights)))
	for _, l := range f.Lights {
		w.WriteH(uint16(l.ID))
		w.WriteF(l.Position[0])
		w.WriteF(l.Position[1])
		w.WriteF(l.Position[2])
		w.WriteF(l.Color[0])
		w.WriteF(l.Color[1])
		w.WriteF(l.Color[2])
		w.WriteF(l.Range)
	}
	return w.Bytes()
}

// BuildLightFrame:
// [C op][Q tick][D zone][F vx][F vy][F vz][H count] count * [H id][C visible][F intensity]
func BuildLightFrame(f sink.Frame, visibleOnly bool) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_LIGHTFRAME)
	w.Grow(32 + len(f.Lights)*7)
	w.WriteQ(f.Tick)
	w.WriteD(f.ZoneID)
	w.WriteF(f.Viewpoint[0])
	w.WriteF(f.Viewpoint[1])
	w.WriteF(f.Viewpoint[2])

	n := len(f.Lights)
	if visibleOnly {
		n = 0
		for _, l := range f.Lights {
			if l.Visible || l.Intensity > 0 {
				n++
			}
		}
	}
	w.WriteH(uint16(n))
	for _, l := range f.Lights {
		if visibleOnly && !l.Visible && l.Intensity <= 0 {
			continue
		}
		w.WriteH(uint16(l.ID))
		if l.Visible {
			w.WriteC(1)
		} else {
			w.WriteC(0)
		}
		w.WriteF(l.Intensity)
	}
	return w.Bytes()
}

// BuildZoneRelease:
// [C op][D zone]
func BuildZoneRelease(zoneID int32) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_ZONERELEASE)
	w.WriteD(zoneID)
	return w.Bytes()
}

// BuildSubscribe is the viewer side of C_OPCODE_SUBSCRIBE.
func BuildSubscribe(flags byte) []byte {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_SUBSCRIBE)
	w.WriteC(flags)
	return w.Bytes()
}

// ZoneInfo is a decoded S_OPCODE_ZONEINFO.
type ZoneInfo struct {
	ZoneID int32
	Name   string
	Lights []sink.LightState
}

// LightFrame is a decoded S_OPCODE_LIGHTFRAME. Lights carry only id,
// visibility and intensity.
type LightFrame struct {
	Tick      uint64
	ZoneID    int32
	Viewpoint mgl64.Vec3
	Lights    []sink.LightState
}

func ParseZoneInfo(b []byte) (ZoneInfo, error) {
	r := packet.NewReader(b)
	if r.Opcode() != packet.S_OPCODE_ZONEINFO {
		return ZoneInfo{}, fmt.Errorf("opcode %d is not zone info", r.Opcode())
	}
	zi := ZoneInfo{ZoneID: r.ReadD(), Name: r.ReadS()}
	n := int(r.ReadH())
	zi.Lights = make([]sink.LightState, n)
	for i := range zi.Lights {
		l := &zi.Lights[i]
		l.ID = lighting.ID(r.ReadH())
		l.Position = mgl64.Vec3{r.ReadF(), r.ReadF(), r.ReadF()}
		l.Color = lighting.Color{r.ReadF(), r.ReadF(), r.ReadF()}
		l.Range = r.ReadF()
	}
	if r.Overrun() {
		return ZoneInfo{}, fmt.Errorf("zone info truncated")
	}
	return zi, nil
}

func ParseLightFrame(b []byte) (LightFrame, error) {
	r := packet.NewReader(b)
	if r.Opcode() != packet.S_OPCODE_LIGHTFRAME {
		return LightFrame{}, fmt.Errorf("opcode %d is not a light frame", r.Opcode())
	}
	lf := LightFrame{Tick: r.ReadQ(), ZoneID: r.ReadD()}
	lf.Viewpoint = mgl64.Vec3{r.ReadF(), r.ReadF(), r.ReadF()}
	n := int(r.ReadH())
	lf.Lights = make([]sink.LightState, n)
	for i := range lf.Lights {
		l := &lf.Lights[i]
		l.ID = lighting.ID(r.ReadH())
		l.Visible = r.ReadC() == 1
		l.Intensity = r.ReadF()
	}
	if r.Overrun() {
		return LightFrame{}, fmt.Errorf("light frame truncated")
	}
	return lf, nil
}
