package system

import (
	"testing"
	"time"
)

type probe struct {
	name  string
	phase Phase
	log   *[]string
}

func (p probe) Phase() Phase { return p.phase }
func (p probe) Update(time.Duration) {
	*p.log = append(*p.log, p.name)
}

func TestRunner_PhaseOrder(t *testing.T) {
	var got []string
	r := NewRunner()
	r.Register(probe{"light", PhasePostUpdate, &got})
	r.Register(probe{"camera", PhaseInput, &got})
	r.Register(probe{"zone", PhaseUpdate, &got})
	r.Register(probe{"light2", PhasePostUpdate, &got})
	r.Register(probe{"events", PhasePreUpdate, &got})

	r.Tick(16 * time.Millisecond)
	want := []string{"camera", "events", "zone", "light", "light2"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
	if r.Ticks() != 1 {
		t.Fatalf("ticks = %d", r.Ticks())
	}
}

type sleeper struct {
	phase Phase
	d     time.Duration
}

func (s sleeper) Phase() Phase          { return s.phase }
func (s sleeper) Update(time.Duration) { time.Sleep(s.d) }

func TestRunner_TakeBusy(t *testing.T) {
	r := NewRunner()
	r.Register(sleeper{PhaseUpdate, 2 * time.Millisecond})
	r.Tick(time.Millisecond)
	r.Tick(time.Millisecond)

	b := r.TakeBusy()
	if b[PhaseUpdate] < 4*time.Millisecond {
		t.Fatalf("update busy = %v", b[PhaseUpdate])
	}
	if b[PhaseInput] != 0 {
		t.Fatalf("input busy = %v", b[PhaseInput])
	}
	if again := r.TakeBusy(); again[PhaseUpdate] != 0 {
		t.Fatal("TakeBusy did not reset")
	}
}

func TestRunner_RejectsUnknownPhase(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewRunner().Register(sleeper{PhaseCount, 0})
}

func TestPhase_String(t *testing.T) {
	if PhasePostUpdate.String() != "post_update" || Phase(-1).String() != "unknown" {
		t.Fatal("phase names")
	}
}
