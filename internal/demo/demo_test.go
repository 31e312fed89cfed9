package demo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Iron-Ham/prism/internal/config"
	"github.com/Iron-Ham/prism/internal/event"
	"github.com/Iron-Ham/prism/internal/render"
	"github.com/Iron-Ham/prism/internal/runtime"
	"github.com/Iron-Ham/prism/internal/virtual"
)

func TestWave(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{0, 0},
		{time.Second, 1},
		{2 * time.Second, 0},
		{3 * time.Second, -1},
	}
	for _, tt := range tests {
		if got := Wave(tt.elapsed, 4*time.Second); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Wave(%v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
	if Wave(time.Second, 0) != 0 {
		t.Error("Wave with zero period should be 0")
	}
}

func TestDefinitions_DeriveSceneEvents(t *testing.T) {
	bus := event.NewBus()
	reg := virtual.NewRegistry(bus)
	defer reg.Shutdown()
	for _, def := range Definitions() {
		if err := reg.Register(def); err != nil {
			t.Fatalf("Register(%s) = %v", def.Name, err)
		}
	}
	store := bus.Store()

	bus.Emit(EventReport, []byte(`{"temp":24.0,"humidity":60}`), 1)
	if e, ok := store.Latest(EventTemp); !ok || e.Data != 24.0 {
		t.Errorf("temp = %+v, %v", e, ok)
	}
	// 24 + 0.05*(60-40) = 25
	if e, ok := store.Latest(EventComfort); !ok || e.Data != 25.0 {
		t.Errorf("comfort = %+v, %v", e, ok)
	}

	// Same report again: comfort is not re-emitted.
	before, _ := store.Latest(EventComfort)
	bus.Emit(EventReport, []byte(`{"temp":24.0,"humidity":60}`), 1)
	if after, _ := store.Latest(EventComfort); after.Seq != before.Seq {
		t.Error("unchanged comfort should not be re-emitted")
	}

	bus.Emit(EventWave, 1.0, 2)
	if e, _ := store.Latest(EventLevel); e.Data != 1.0 {
		t.Errorf("level = %v, want 1", e.Data)
	}
	bus.Emit(EventWave, -1.0, 2)
	if e, _ := store.Latest(EventPeak); math.Abs(e.Data.(float64)-0.98) > 1e-9 {
		t.Errorf("peak = %v, want decayed 0.98", e.Data)
	}
}

func TestLevelBar(t *testing.T) {
	store := event.NewStateStore()
	bar := LevelBar("bar", store, "x", 0, 10, render.RGB(255, 0, 0))
	target := render.Target{Width: 2, Height: 4}

	s, err := bar.Render(target, render.Tick{}, render.Layout{})
	if s != nil || err != nil {
		t.Fatalf("bar should decline before the event is seen, got %v, %v", s, err)
	}

	store.Update(event.Input{Type: "x", Data: 5})
	s, err = bar.Render(target, render.Tick{}, render.Layout{})
	if err != nil {
		t.Fatal(err)
	}
	for y := range 4 {
		lit := s.Pixel(0, y).A != 0
		if want := y >= 2; lit != want {
			t.Errorf("row %d lit = %v, want %v", y, lit, want)
		}
	}
}

func TestRainbow_IsOpaqueAndScrolls(t *testing.T) {
	r := Rainbow(10)
	target := render.Target{Width: 8, Height: 2}

	a, _ := r.Render(target, render.Tick{Frame: 0}, render.Layout{})
	b, _ := r.Render(target, render.Tick{Frame: 5}, render.Layout{})
	for x := range 8 {
		if a.Pixel(x, 0).A != 0xff {
			t.Fatalf("pixel %d not opaque", x)
		}
	}
	if a.Equal(b) {
		t.Error("rainbow should scroll between frames")
	}
	c, _ := r.Render(target, render.Tick{Frame: 10}, render.Layout{})
	if !a.Equal(c) {
		t.Error("rainbow should repeat after one period")
	}
}

func TestInstall(t *testing.T) {
	cfg := config.Default()
	cfg.Display.Width = 8
	cfg.Display.Height = 4
	rt, err := runtime.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Shutdown(context.Background())

	if err := Install(rt); err != nil {
		t.Fatalf("Install() = %v", err)
	}
	if got := len(rt.Renderers()); got != 4 {
		t.Errorf("renderers = %d, want 4", got)
	}
	if got := len(rt.Registry().Names()); got != len(Definitions()) {
		t.Errorf("virtual peripherals = %d, want %d", got, len(Definitions()))
	}
	if err := rt.RenderFrame(context.Background(), time.Now()); err != nil {
		t.Errorf("RenderFrame() = %v", err)
	}
}
