package viewer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/segview/internal/dataset"
	"github.com/Faultbox/segview/internal/engine/scene"
	"github.com/Faultbox/segview/internal/render"
	"github.com/Faultbox/segview/internal/volume"
)

// halfLayer is an 8x8x4 volume of constant 0.5 whose segment fills x < 4.
func halfLayer(clip dataset.Clip) (*volume.Grid, *volume.Grid) {
	box := volume.Box{Origin: [3]int{clip.X, clip.Y, clip.Z}, Size: [3]int{8, 8, clip.D}}
	vol := volume.New(box)
	seg := volume.New(box)
	for z := 0; z < box.Size[2]; z++ {
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				vol.Set(x, y, z, 0.5)
				if x < 4 {
					seg.Set(x, y, z, 1)
				}
			}
		}
	}
	return vol, seg
}

func testLoader() *dataset.MemoryLoader {
	m := dataset.NewMemoryLoader("test")
	for id, clip := range map[string]dataset.Clip{
		"A": {Z: 0, D: 4},
		"B": {Z: 5, D: 6},
	} {
		vol, seg := halfLayer(clip)
		m.AddLayer(id, clip, vol, seg)
	}
	return m
}

// gatedLoader holds loads until their gate is closed. With ignoreCancel set
// the wait does not observe the context, like a loader without cancellation.
type gatedLoader struct {
	dataset.Loader
	volumeGate   chan struct{}
	segmentGate  chan struct{}
	volumeDelay  time.Duration
	failVolume   bool
	ignoreCancel bool
	entered      chan string
}

func (l *gatedLoader) wait(ctx context.Context, kind string, gate chan struct{}, delay time.Duration) error {
	if l.entered != nil {
		l.entered <- kind
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if gate == nil {
		return nil
	}
	if l.ignoreCancel {
		<-gate
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *gatedLoader) LoadVolume(ctx context.Context, e dataset.Entry) (*volume.Grid, error) {
	if err := l.wait(ctx, "volume", l.volumeGate, l.volumeDelay); err != nil {
		return nil, err
	}
	if l.failVolume {
		return nil, errors.New("disk on fire")
	}
	return l.Loader.LoadVolume(context.WithoutCancel(ctx), e)
}

func (l *gatedLoader) LoadSegment(ctx context.Context, e dataset.Entry) (*volume.Grid, error) {
	if err := l.wait(ctx, "segment", l.segmentGate, 0); err != nil {
		return nil, err
	}
	return l.Loader.LoadSegment(context.WithoutCancel(ctx), e)
}

type fixture struct {
	core  *Core
	orch  *Orchestrator
	pool  *render.Pool
	graph *scene.Graph
	logs  *observer.ObservedLogs
}

func newFixture(t *testing.T, loader dataset.Loader) *fixture {
	t.Helper()
	zcore, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(zcore)

	graph := scene.NewGraph()
	core := NewCore(loader, graph, log.Named("core"))
	if err := core.LoadMeta(context.Background()); err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	pool := render.NewPool(8, 8)
	return &fixture{
		core:  core,
		orch:  NewOrchestrator(core, pool, log.Named("orchestrator")),
		pool:  pool,
		graph: graph,
		logs:  logs,
	}
}

func (f *fixture) activate(t *testing.T, m Mode) {
	t.Helper()
	if _, err := f.core.UpdateParams(func(p *Params) { p.Mode = m }); err != nil {
		t.Fatalf("set mode %s: %v", m, err)
	}
	if err := f.orch.Activate(context.Background()); err != nil {
		t.Fatalf("activate %s: %v", m, err)
	}
}

func TestModeClassTable(t *testing.T) {
	tests := []struct {
		mode  Mode
		class render.Class
	}{
		{ModeSegment, render.ClassSegment},
		{ModeVolume, render.ClassVolume},
		{ModeVolumeSegment, render.ClassVolume},
		{ModeLayer, render.ClassLayer},
		{ModeGridLayer, render.ClassLayer},
	}
	for _, tt := range tests {
		if got := tt.mode.Class(); got != tt.class {
			t.Errorf("%s.Class() = %v, want %v", tt.mode, got, tt.class)
		}
		if m, err := ParseMode(string(tt.mode)); err != nil || m != tt.mode {
			t.Errorf("ParseMode(%q) = %v, %v", tt.mode, m, err)
		}
	}
	if _, err := ParseMode("isosurface"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestParamsValidate(t *testing.T) {
	base := Params{Mode: ModeLayer, Surface: 0.1, Layers: Layers{Select: "A", Options: []string{"A", "B"}}}
	tests := []struct {
		name    string
		mutate  func(p *Params)
		wantErr bool
	}{
		{"valid", func(*Params) {}, false},
		{"min surface", func(p *Params) { p.Surface = SurfaceMin }, false},
		{"max surface", func(p *Params) { p.Surface = SurfaceMax }, false},
		{"surface too small", func(p *Params) { p.Surface = 0 }, true},
		{"surface too large", func(p *Params) { p.Surface = 0.6 }, true},
		{"unknown mode", func(p *Params) { p.Mode = "x" }, true},
		{"unknown layer", func(p *Params) { p.Layers.Select = "C" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base.clone()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrParams) {
				t.Errorf("expected ErrParams, got %v", err)
			}
		})
	}
}

func TestClearThenActivateLeavesOnlyModeGeometry(t *testing.T) {
	f := newFixture(t, testLoader())
	f.graph.Add(scene.Node{Kind: scene.KindAnnotation, Owner: scene.OwnerPersistent})

	composite := []scene.Kind{scene.KindSegment, scene.KindSurface, scene.KindVolume}
	want := map[Mode][]scene.Kind{
		ModeSegment:       {scene.KindSegment},
		ModeVolume:        {scene.KindVolume},
		ModeVolumeSegment: composite,
		ModeLayer:         composite,
		ModeGridLayer:     composite,
	}

	// Visit every mode from every other mode.
	for _, from := range Modes {
		for _, to := range Modes {
			f.activate(t, from)
			f.core.Clear()
			f.activate(t, to)
			if got := f.graph.ModeKinds(); !reflect.DeepEqual(got, want[to]) {
				t.Errorf("%s -> %s: mode nodes = %v, want %v", from, to, got, want[to])
			}
		}
	}
	if n := len(f.graph.Persistent(scene.KindAnnotation)); n != 1 {
		t.Errorf("annotations = %d, want 1", n)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	f := newFixture(t, testLoader())
	f.activate(t, ModeVolumeSegment)
	f.core.Clear()
	f.core.Clear()
	if kinds := f.graph.ModeKinds(); len(kinds) != 0 {
		t.Errorf("mode nodes after clear = %v", kinds)
	}
}

func TestClipWaitsForBothLoads(t *testing.T) {
	for _, mode := range []Mode{ModeVolumeSegment, ModeLayer, ModeGridLayer} {
		t.Run(string(mode), func(t *testing.T) {
			loader := &gatedLoader{Loader: testLoader(), volumeDelay: 100 * time.Millisecond}
			f := newFixture(t, loader)
			f.activate(t, mode)

			var order []string
			for _, e := range f.logs.FilterMessage("step done").All() {
				order = append(order, e.ContextMap()["step"].(string))
			}
			want := []string{"updateSegment", "updateVolume", "clipSegment", "updateSegmentSDF", "render"}
			if !reflect.DeepEqual(order, want) {
				t.Errorf("step order = %v, want %v", order, want)
			}
		})
	}
}

func TestStepsOutOfOrder(t *testing.T) {
	f := newFixture(t, testLoader())
	ctx := context.Background()

	if err := f.core.ClipSegment(ctx); !errors.Is(err, ErrOrder) {
		t.Errorf("ClipSegment before loads: %v, want ErrOrder", err)
	}
	if err := f.core.UpdateVolume(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.core.ClipSegment(ctx); !errors.Is(err, ErrOrder) {
		t.Errorf("ClipSegment with only volume: %v, want ErrOrder", err)
	}
	if err := f.core.UpdateSegmentSDF(ctx); !errors.Is(err, ErrOrder) {
		t.Errorf("UpdateSegmentSDF before clip: %v, want ErrOrder", err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := f.core.Render(ctx, dst); !errors.Is(err, ErrOrder) {
		t.Errorf("Render before sdf: %v, want ErrOrder", err)
	}
}

func TestRenderWritesOnlyItsTarget(t *testing.T) {
	f := newFixture(t, testLoader())
	f.activate(t, ModeSegment)
	f.activate(t, ModeLayer)

	seg, _ := f.pool.Snapshot(render.ClassSegment)
	layer, _ := f.pool.Snapshot(render.ClassLayer)
	targets := [render.NumClasses]*render.Target{}
	for c := render.Class(0); c < render.NumClasses; c++ {
		targets[c] = f.pool.Target(c)
	}

	for i := 0; i < 3; i++ {
		f.activate(t, ModeVolume)
		f.activate(t, ModeVolumeSegment)
	}

	seg2, _ := f.pool.Snapshot(render.ClassSegment)
	layer2, _ := f.pool.Snapshot(render.ClassLayer)
	if !bytes.Equal(seg.Pix, seg2.Pix) {
		t.Error("segment target changed by volume renders")
	}
	if !bytes.Equal(layer.Pix, layer2.Pix) {
		t.Error("layer target changed by volume renders")
	}
	for c := render.Class(0); c < render.NumClasses; c++ {
		if f.pool.Target(c) != targets[c] {
			t.Errorf("target %v reallocated", c)
		}
	}
	if v := f.pool.Version(render.ClassVolume); v != 6 {
		t.Errorf("volume target version = %d, want 6", v)
	}
}

func TestStaleSegmentDoesNotClobberVolume(t *testing.T) {
	for _, ignoreCancel := range []bool{false, true} {
		name := "cancellable"
		if ignoreCancel {
			name = "ignores cancellation"
		}
		t.Run(name, func(t *testing.T) {
			loader := &gatedLoader{
				Loader:       testLoader(),
				segmentGate:  make(chan struct{}),
				ignoreCancel: ignoreCancel,
				entered:      make(chan string, 8),
			}
			f := newFixture(t, loader)
			ctx := context.Background()

			f.core.UpdateParams(func(p *Params) { p.Mode = ModeSegment })
			f.orch.Submit(ctx)
			if kind := <-loader.entered; kind != "segment" {
				t.Fatalf("first load = %s, want segment", kind)
			}

			f.activate(t, ModeVolume)
			<-loader.entered
			vol, version := f.pool.Snapshot(render.ClassVolume)

			close(loader.segmentGate)
			f.orch.Wait()

			after, version2 := f.pool.Snapshot(render.ClassVolume)
			if !bytes.Equal(vol.Pix, after.Pix) || version != version2 {
				t.Error("stale segment chain wrote into the volume target")
			}
			if v := f.pool.Version(render.ClassSegment); v != 0 {
				t.Errorf("segment target version = %d, want 0", v)
			}
			if m := f.core.Params().Mode; m != ModeVolume {
				t.Errorf("mode = %s, want volume", m)
			}
			if got := f.graph.ModeKinds(); !reflect.DeepEqual(got, []scene.Kind{scene.KindVolume}) {
				t.Errorf("mode nodes = %v, want [volume]", got)
			}
			if n := f.logs.FilterMessage("activation superseded").Len(); n != 1 {
				t.Errorf("superseded activations logged = %d, want 1", n)
			}
		})
	}
}

func TestStaleActivationCannotCommit(t *testing.T) {
	f := newFixture(t, testLoader())
	ctx := context.Background()

	old := withActivation(ctx, f.core.begin(ModeVolume))
	f.core.begin(ModeSegment)

	if err := f.core.UpdateVolume(old); !errors.Is(err, ErrStale) {
		t.Fatalf("stale UpdateVolume: %v, want ErrStale", err)
	}
	if kinds := f.graph.ModeKinds(); len(kinds) != 0 {
		t.Errorf("stale commit added nodes: %v", kinds)
	}
	dst := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := f.core.Render(old, dst); !errors.Is(err, ErrStale) {
		t.Errorf("stale Render: %v, want ErrStale", err)
	}
	if g := f.core.Generation(); g != 2 {
		t.Errorf("Generation() = %d, want 2", g)
	}
}

func TestLoadFailureKeepsBuffer(t *testing.T) {
	loader := &gatedLoader{Loader: testLoader()}
	f := newFixture(t, loader)
	f.activate(t, ModeVolume)
	before, v := f.pool.Snapshot(render.ClassVolume)

	loader.failVolume = true
	f.core.UpdateParams(func(p *Params) { p.Layers.Select = "B" })
	err := f.orch.Activate(context.Background())
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}

	after, v2 := f.pool.Snapshot(render.ClassVolume)
	if !bytes.Equal(before.Pix, after.Pix) || v != v2 {
		t.Error("failed activation touched the target")
	}
	if n := f.logs.FilterMessage("mode activation failed").Len(); n != 1 {
		t.Errorf("failures logged = %d, want 1", n)
	}
}

func TestMissingEntryIsLoadError(t *testing.T) {
	m := dataset.NewMemoryLoader("partial")
	vol, _ := halfLayer(dataset.Clip{D: 2})
	m.AddLayer("A", dataset.Clip{D: 2}, vol, nil)
	f := newFixture(t, m)

	if err := f.core.UpdateSegment(context.Background()); !errors.Is(err, ErrLoad) {
		t.Errorf("UpdateSegment without entry: %v, want ErrLoad", err)
	}
	f.core.UpdateParams(func(p *Params) { p.Mode = ModeVolumeSegment })
	if err := f.orch.Activate(context.Background()); !errors.Is(err, ErrLoad) {
		t.Errorf("composite activation: %v, want ErrLoad", err)
	}
}

func TestSetLoaderSwapsDataset(t *testing.T) {
	f := newFixture(t, testLoader())
	f.activate(t, ModeVolume)
	before := f.core.Generation()

	f.core.SetLoader(dataset.Synthetic())
	if got := f.graph.ModeKinds(); len(got) != 0 {
		t.Errorf("mode nodes after swap = %v, want none", got)
	}
	if f.core.Generation() == before {
		t.Error("swap should invalidate the running generation")
	}
	if err := f.core.UpdateVolume(context.Background()); !errors.Is(err, ErrLoad) {
		t.Errorf("UpdateVolume before LoadMeta: %v, want ErrLoad", err)
	}

	if err := f.core.LoadMeta(context.Background()); err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	if lo, hi, ok := f.core.LayerBounds("B"); !ok || lo != 5 || hi != 25 {
		t.Errorf("LayerBounds(B) = %d, %d, %v after swap", lo, hi, ok)
	}
	f.activate(t, ModeVolume)
	if f.pool.Version(render.ClassVolume) != 2 {
		t.Errorf("volume version = %d, want 2", f.pool.Version(render.ClassVolume))
	}
}

func TestUpdateBuffersKeepsActiveMode(t *testing.T) {
	f := newFixture(t, testLoader())
	f.activate(t, ModeLayer)

	if err := f.orch.UpdateBuffers(context.Background()); err != nil {
		t.Fatalf("UpdateBuffers: %v", err)
	}
	for c := render.Class(0); c < render.NumClasses; c++ {
		if f.pool.Version(c) == 0 {
			t.Errorf("class %v was not rendered", c)
		}
	}
	if m := f.core.Params().Mode; m != ModeLayer {
		t.Errorf("mode = %s, want layer", m)
	}
	want := []scene.Kind{scene.KindSegment, scene.KindSurface, scene.KindVolume}
	if got := f.graph.ModeKinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("mode nodes = %v, want %v", got, want)
	}
}

func TestUpdateBuffersSkipsWhileRunning(t *testing.T) {
	f := newFixture(t, testLoader())
	f.orch.refreshMu.Lock()
	f.orch.refreshing = true
	f.orch.refreshMu.Unlock()
	if err := f.orch.UpdateBuffers(context.Background()); err != nil {
		t.Fatal(err)
	}
	for c := render.Class(0); c < render.NumClasses; c++ {
		if f.pool.Version(c) != 0 {
			t.Errorf("class %v rendered during an in-flight refresh", c)
		}
	}
	f.orch.refreshMu.Lock()
	defer f.orch.refreshMu.Unlock()
	if !f.orch.pending {
		t.Error("skipped refresh was not marked pending")
	}
}

func TestUpdateBuffersRepeatsRequestDuringRefresh(t *testing.T) {
	loader := &gatedLoader{
		Loader:      testLoader(),
		segmentGate: make(chan struct{}),
		entered:     make(chan string, 16),
	}
	f := newFixture(t, loader)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.orch.UpdateBuffers(ctx) }()
	if kind := <-loader.entered; kind != "segment" {
		t.Fatalf("first load = %s, want segment", kind)
	}

	if err := f.orch.UpdateBuffers(ctx); err != nil {
		t.Fatalf("UpdateBuffers during refresh: %v", err)
	}
	f.orch.RequestRefresh(ctx)
	close(loader.segmentGate)
	if err := <-done; err != nil {
		t.Fatalf("UpdateBuffers: %v", err)
	}
	f.orch.Wait()

	for c := render.Class(0); c < render.NumClasses; c++ {
		if v := f.pool.Version(c); v != 2 {
			t.Errorf("class %v version = %d, want 2", c, v)
		}
	}
	f.orch.refreshMu.Lock()
	defer f.orch.refreshMu.Unlock()
	if f.orch.refreshing || f.orch.pending {
		t.Errorf("refreshing = %v, pending = %v after refresh, want both false", f.orch.refreshing, f.orch.pending)
	}
}

func TestPipelineTable(t *testing.T) {
	composite := [][]Step{
		{StepUpdateVolume, StepUpdateSegment},
		{StepClipSegment},
		{StepUpdateSegmentSDF},
		{StepRender},
	}
	tests := []struct {
		mode Mode
		want [][]Step
	}{
		{ModeSegment, [][]Step{{StepUpdateSegment}, {StepRender}}},
		{ModeVolume, [][]Step{{StepUpdateVolume}, {StepRender}}},
		{ModeVolumeSegment, composite},
		{ModeLayer, composite},
		{ModeGridLayer, composite},
	}
	for _, tt := range tests {
		if got := Pipeline(tt.mode); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Pipeline(%s) = %v, want %v", tt.mode, got, tt.want)
		}
	}

	got := Pipeline(ModeLayer)
	got[0][0] = StepRender
	if Pipeline(ModeGridLayer)[0][0] != StepUpdateVolume {
		t.Error("Pipeline result shares storage with the table")
	}
}

func TestLayerBoundsFollowSelection(t *testing.T) {
	f := newFixture(t, dataset.Synthetic())
	tests := []struct {
		id     string
		lo, hi int
	}{
		{"A", 0, 10},
		{"B", 5, 25},
	}
	for _, tt := range tests {
		lo, hi, ok := f.core.LayerBounds(tt.id)
		if !ok || lo != tt.lo || hi != tt.hi {
			t.Errorf("LayerBounds(%s) = [%d, %d] %v, want [%d, %d]", tt.id, lo, hi, ok, tt.lo, tt.hi)
		}
	}
	if _, _, ok := f.core.LayerBounds("nope"); ok {
		t.Error("expected no bounds for unknown layer")
	}
	if p := f.core.Params(); p.Layers.Select != "A" || !reflect.DeepEqual(p.Layers.Options, []string{"A", "B"}) {
		t.Errorf("layers = %+v", p.Layers)
	}
}

func renderStage(t *testing.T, f *fixture, mutate func(p *Params)) *image.RGBA {
	t.Helper()
	ctx := context.Background()
	f.core.UpdateParams(mutate)
	for _, step := range []func(context.Context) error{
		f.core.UpdateVolume, f.core.UpdateSegment, f.core.ClipSegment, f.core.UpdateSegmentSDF,
	} {
		if err := step(ctx); err != nil {
			t.Fatal(err)
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := f.core.Render(ctx, dst); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return dst
}

func TestRenderLayerShadesSurfaceBand(t *testing.T) {
	plain := color.RGBA{R: 128, G: 128, B: 128, A: 0xff}

	f := newFixture(t, testLoader())
	img := renderStage(t, f, func(p *Params) { p.Mode = ModeLayer; p.Layer = 1 })
	if got := img.RGBAAt(0, 3); got == plain {
		t.Error("voxel inside the segment should be tinted")
	}
	if got := img.RGBAAt(7, 3); got != plain {
		t.Errorf("voxel outside the segment = %v, want %v", got, plain)
	}

	inv := renderStage(t, f, func(p *Params) { p.Inverse = true })
	if got := inv.RGBAAt(0, 3); got != plain {
		t.Errorf("inverse: inside voxel = %v, want %v", got, plain)
	}
	if got := inv.RGBAAt(7, 3); got == plain {
		t.Error("inverse: outside voxel should be tinted")
	}
}

func TestRenderVolumeIsMIP(t *testing.T) {
	m := dataset.NewMemoryLoader("mip")
	box := volume.Box{Size: [3]int{8, 8, 3}}
	vol := volume.New(box)
	vol.Set(2, 2, 1, 1)
	m.AddLayer("A", dataset.Clip{D: 3}, vol, nil)
	f := newFixture(t, m)

	f.activate(t, ModeVolume)
	img, _ := f.pool.Snapshot(render.ClassVolume)
	if got := img.RGBAAt(2, 2); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("MIP of bright voxel = %v", got)
	}
	if got := img.RGBAAt(5, 5); got != (color.RGBA{A: 255}) {
		t.Errorf("MIP of empty column = %v", got)
	}
}

func TestConcurrentActivationsSettleOnLast(t *testing.T) {
	f := newFixture(t, testLoader())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.orch.Activate(ctx)
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, a final activation renders cleanly.
	if err := f.orch.Activate(ctx); err != nil {
		t.Fatalf("final activation: %v", err)
	}
	want := []scene.Kind{scene.KindSegment, scene.KindSurface, scene.KindVolume}
	if got := f.graph.ModeKinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("mode nodes = %v, want %v", got, want)
	}
}
