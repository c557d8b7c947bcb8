package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/zonelights/internal/lighting"
)

// Engine wraps a single gopher-lua VM for zone light scripts.
// Single-goroutine access only (zone loads happen on the game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("light_ring", vm.NewFunction(luaLightRing))

	e := &Engine{vm: vm, log: log}

	// Zone generators first, then tuning overrides (which may reference them)
	for _, sub := range []string{"zones", "tuning"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// ZoneLights calls zone_lights(zone_id). A missing function or a nil result
// means the scripts know nothing about the zone (ok == false). Entries that
// are not tables are skipped.
func (e *Engine) ZoneLights(zoneID int32) ([]lighting.Descriptor, bool, error) {
	fn := e.vm.GetGlobal("zone_lights")
	if fn == lua.LNil {
		return nil, false, nil
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(zoneID)); err != nil {
		return nil, false, fmt.Errorf("lua zone_lights(%d): %w", zoneID, err)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	if result == lua.LNil {
		return nil, false, nil
	}
	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil, false, fmt.Errorf("lua zone_lights(%d) returned %s", zoneID, result.Type())
	}

	out := make([]lighting.Descriptor, 0, rt.Len())
	for i := 1; i <= rt.Len(); i++ {
		lt, ok := rt.RawGetInt(i).(*lua.LTable)
		if !ok {
			e.log.Warn("lua zone light is not a table",
				zap.Int32("zone", zoneID), zap.Int("index", i))
			continue
		}
		out = append(out, lighting.Descriptor{
			X: lNum(lt, "x"), Y: lNum(lt, "y"), Z: lNum(lt, "z"),
			R: lNum(lt, "r"), G: lNum(lt, "g"), B: lNum(lt, "b"),
		})
	}
	return out, true, nil
}

// ZoneTuning calls zone_tuning(zone_id) and returns the keys it set.
// Errors are logged and treated as no override.
func (e *Engine) ZoneTuning(zoneID int32) (lighting.Tuning, bool) {
	var t lighting.Tuning
	fn := e.vm.GetGlobal("zone_tuning")
	if fn == lua.LNil {
		return t, false
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(zoneID)); err != nil {
		e.log.Error("lua zone_tuning error", zap.Int32("zone", zoneID), zap.Error(err))
		return t, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return t, false
	}
	if v, ok := rt.RawGetString("max_active").(lua.LNumber); ok {
		n := int(v)
		t.MaxActive = &n
	}
	if v, ok := rt.RawGetString("max_query_radius").(lua.LNumber); ok {
		f := float64(v)
		t.MaxQueryRadius = &f
	}
	if v, ok := rt.RawGetString("fade_rate").(lua.LNumber); ok {
		f := float64(v)
		t.FadeRate = &f
	}
	return t, !t.Empty()
}

// luaLightRing implements light_ring(cx, cy, cz, radius, count, r, g, b):
// count lights evenly spaced on a horizontal circle, as an array of tables.
func luaLightRing(L *lua.LState) int {
	cx := float64(L.CheckNumber(1))
	cy := float64(L.CheckNumber(2))
	cz := float64(L.CheckNumber(3))
	radius := float64(L.CheckNumber(4))
	count := L.CheckInt(5)
	r := float64(L.OptNumber(6, 255))
	g := float64(L.OptNumber(7, 255))
	b := float64(L.OptNumber(8, 255))

	out := L.NewTable()
	for i := 0; i < count; i++ {
		a := 2 * math.Pi * float64(i) / float64(count)
		lt := L.NewTable()
		lt.RawSetString("x", lua.LNumber(cx+radius*math.Cos(a)))
		lt.RawSetString("y", lua.LNumber(cy))
		lt.RawSetString("z", lua.LNumber(cz+radius*math.Sin(a)))
		lt.RawSetString("r", lua.LNumber(r))
		lt.RawSetString("g", lua.LNumber(g))
		lt.RawSetString("b", lua.LNumber(b))
		out.Append(lt)
	}
	L.Push(out)
	return 1
}

// --- Lua helpers ---

// lNum reads a number field from a Lua table.
func lNum(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
