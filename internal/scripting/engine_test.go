package scripting

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeScript(t *testing.T, dir, sub, name, body string) {
	t.Helper()
	p := filepath.Join(dir, sub)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

const zoneScript = `
function zone_lights(zone_id)
  if zone_id == 9 then
    local out = {
      {x = 1, y = 2, z = 3, r = 255, g = 128, b = 0},
      "junk",
    }
    local ring = light_ring(0, 10, 0, 50, 4, 0.5, 0.5, 1)
    for _, l in ipairs(ring) do
      table.insert(out, l)
    end
    return out
  end
  if zone_id == 10 then
    return {}
  end
  return nil
end
`

const tuningScript = `
function zone_tuning(zone_id)
  if zone_id == 9 then
    return {max_active = 3, fade_rate = 2.5}
  end
  return nil
end
`

func TestEngine_ZoneLights(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "zones", "demo.lua", zoneScript)
	writeScript(t, dir, "tuning", "demo.lua", tuningScript)

	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()

	lights, ok, err := e.ZoneLights(9)
	if err != nil || !ok {
		t.Fatalf("zone 9: ok=%v err=%v", ok, err)
	}
	if len(lights) != 5 {
		t.Fatalf("got %d lights, want 5 (junk entry skipped)", len(lights))
	}
	if lights[0].X != 1 || lights[0].Y != 2 || lights[0].Z != 3 || lights[0].R != 255 || lights[0].G != 128 {
		t.Fatalf("first light = %+v", lights[0])
	}
	for i, l := range lights[1:] {
		d := math.Hypot(l.X, l.Z)
		if math.Abs(d-50) > 1e-9 || l.Y != 10 || l.B != 1 {
			t.Fatalf("ring light %d = %+v", i, l)
		}
	}

	lights, ok, err = e.ZoneLights(10)
	if err != nil || !ok || len(lights) != 0 {
		t.Fatalf("empty zone: %v %v %v", lights, ok, err)
	}
	if _, ok, err := e.ZoneLights(11); ok || err != nil {
		t.Fatalf("unknown zone: ok=%v err=%v", ok, err)
	}

	tun, ok := e.ZoneTuning(9)
	if !ok || tun.MaxActive == nil || *tun.MaxActive != 3 || tun.FadeRate == nil || *tun.FadeRate != 2.5 {
		t.Fatalf("tuning = %+v ok=%v", tun, ok)
	}
	if tun.MaxQueryRadius != nil {
		t.Fatal("unset key produced an override")
	}
	if _, ok := e.ZoneTuning(10); ok {
		t.Fatal("zone 10 has no tuning")
	}
}

func TestEngine_MissingFunctionsAndDirs(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	if err != nil {
		t.Fatalf("missing dir should not fail: %v", err)
	}
	defer e.Close()
	if _, ok, err := e.ZoneLights(1); ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if _, ok := e.ZoneTuning(1); ok {
		t.Fatal("expected no tuning")
	}
}

func TestEngine_Errors(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "zones", "bad.lua", `function zone_lights(id) return 42 end`)
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if _, _, err := e.ZoneLights(1); err == nil {
		t.Fatal("expected error for non-table result")
	}

	broken := t.TempDir()
	writeScript(t, broken, "zones", "syntax.lua", `function zone_lights(`)
	if _, err := NewEngine(broken, zap.NewNop()); err == nil {
		t.Fatal("expected load error")
	}
}

func TestEngine_ShippedScripts(t *testing.T) {
	e, err := NewEngine(filepath.Join("..", "..", "scripts"), zap.NewNop())
	if err != nil {
		t.Fatalf("shipped scripts: %v", err)
	}
	defer e.Close()
	lights, ok, err := e.ZoneLights(900)
	if err != nil || !ok {
		t.Fatalf("zone 900: ok=%v err=%v", ok, err)
	}
	// rings of 12, 24, 36 and 48 lights
	if len(lights) != 120 {
		t.Fatalf("lights = %d", len(lights))
	}
	if tun, ok := e.ZoneTuning(900); !ok || *tun.MaxActive != 16 {
		t.Fatalf("tuning = %+v", tun)
	}
}
