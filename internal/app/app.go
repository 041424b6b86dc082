// Package app wires the viewer core, the render targets and the annotation
// scene into an ImGui window.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/AllenDang/cimgui-go/backend"
	"github.com/AllenDang/cimgui-go/imgui"
	"go.uber.org/zap"

	"github.com/Faultbox/segview/internal/annotation"
	"github.com/Faultbox/segview/internal/config"
	"github.com/Faultbox/segview/internal/dataset"
	"github.com/Faultbox/segview/internal/engine/camera"
	"github.com/Faultbox/segview/internal/engine/debug"
	"github.com/Faultbox/segview/internal/engine/input"
	"github.com/Faultbox/segview/internal/engine/renderer"
	"github.com/Faultbox/segview/internal/engine/scene"
	"github.com/Faultbox/segview/internal/engine/ui"
	"github.com/Faultbox/segview/internal/logger"
	"github.com/Faultbox/segview/internal/panel"
	"github.com/Faultbox/segview/internal/render"
	"github.com/Faultbox/segview/internal/viewer"
)

var _ renderer.Quad = (*annotation.Annotation)(nil)

// App is the viewer window and everything it drives.
type App struct {
	cfg *config.Config
	log *zap.Logger

	ui       *ui.Backend
	renderer *renderer.Renderer
	exporter *debug.Exporter

	graph  *scene.Graph
	pool   *render.Pool
	core   *viewer.Core
	orch   *viewer.Orchestrator
	panel  *panel.Panel
	store  *annotation.Store
	picker *annotation.Picker

	camera  *camera.OrbitCamera
	tracker *input.Tracker

	ctx       context.Context
	cancel    context.CancelFunc
	stopStart context.CancelFunc // Aborts the running start
	wg        sync.WaitGroup
	ready     atomic.Bool // Metadata loaded and every target rendered once

	targets  [render.NumClasses]*backend.Texture
	versions [render.NumClasses]uint64

	mu          sync.Mutex
	status      string
	pendingPath string // Set by the file dialog goroutine

	exportRequested bool
	lastMouse       imgui.Vec2
}

// New creates the window and the viewer. It must run on the main thread.
func New(cfg *config.Config) (*App, error) {
	loader, err := openLoader(cfg.Data)
	if err != nil {
		return nil, err
	}

	b, err := ui.NewBackend(cfg.Window.Title, int32(cfg.Window.Width), int32(cfg.Window.Height))
	if err != nil {
		return nil, err
	}

	rcfg := renderer.DefaultConfig()
	acfg := annotation.DefaultConfig()
	acfg.Size = cfg.Annotation.Size
	rcfg.GroundY, rcfg.GroundSize = acfg.GroundY, acfg.GroundSize
	r, err := renderer.New(rcfg)
	if err != nil {
		return nil, fmt.Errorf("creating scene renderer: %w", err)
	}

	a := &App{
		cfg:      cfg,
		log:      logger.Named("app"),
		ui:       b,
		renderer: r,
		exporter: debug.NewExporter(cfg.Annotation.ExportDir, "segview"),
		graph:    scene.NewGraph(),
		pool:     render.NewPool(cfg.Viewer.TargetWidth, cfg.Viewer.TargetHeight),
		store:    annotation.NewStore(),
		camera:   camera.NewOrbitCamera(),
		tracker:  input.New(),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.core = viewer.NewCore(loader, a.graph, logger.Named("core"))
	if _, err := a.core.UpdateParams(func(p *viewer.Params) { initialParams(p, cfg.Viewer) }); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("initial parameters: %w", err)
	}
	a.orch = viewer.NewOrchestrator(a.core, a.pool, logger.Named("orchestrator"))
	a.panel = panel.New(a.ctx, a.core, a.orch, logger.Named("panel"))
	a.picker = annotation.NewPicker(a.ctx, annotation.Deps{
		Camera:    a.camera,
		Buffers:   a.pool,
		Params:    a.core,
		Refresher: a.orch,
		Scene:     a.graph,
		Store:     a.store,
		Log:       logger.Named("picker"),
	}, acfg)

	a.start()
	return a, nil
}

func initialParams(p *viewer.Params, vc config.ViewerConfig) {
	if vc.Mode != "" {
		p.Mode = viewer.Mode(vc.Mode)
	}
	if vc.Surface > 0 {
		p.Surface = vc.Surface
	}
	p.Inverse = vc.Inverse
	p.Layers.Select = vc.Dataset
}

func openLoader(dc config.DataConfig) (dataset.Loader, error) {
	if dc.Synthetic {
		return dataset.Synthetic(), nil
	}
	l, err := dataset.OpenIndex(dc.Index)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	return l, nil
}

// start loads metadata and renders every target once in the background.
// Picks are ignored until it completes.
func (a *App) start() {
	a.ready.Store(false)
	a.setStatus("loading dataset...")
	ctx, cancel := context.WithCancel(a.ctx)
	a.stopStart = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		if err := a.core.LoadMeta(ctx); err != nil {
			a.log.Error("loading metadata failed", zap.Error(err))
			a.setStatus(err.Error())
			return
		}
		if err := a.orch.UpdateBuffers(ctx); err != nil {
			a.log.Warn("initial render incomplete", zap.Error(err))
			a.setStatus(err.Error())
		} else {
			a.setStatus("ready")
		}
		a.ready.Store(true)
	}()
}

// switchDataset replaces the data source with the index at path.
func (a *App) switchDataset(path string) {
	l, err := dataset.OpenIndex(path)
	if err != nil {
		a.log.Error("opening dataset failed", zap.String("path", path), zap.Error(err))
		a.setStatus(err.Error())
		return
	}
	a.stopStart()
	a.orch.Cancel()
	a.wg.Wait()
	a.orch.Wait()
	a.core.SetLoader(l)
	a.log.Info("dataset opened", zap.String("path", path))
	a.start()
}

func (a *App) setStatus(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

func (a *App) statusText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Run starts the main loop. It returns when the window closes.
func (a *App) Run() error {
	a.ui.Run(a.render)
	return nil
}

// Close stops pending work and releases GL resources.
func (a *App) Close() {
	a.cancel()
	a.orch.Cancel()
	a.orch.Wait()
	a.wg.Wait()
	for i, t := range a.targets {
		if t != nil {
			t.Release()
			a.targets[i] = nil
		}
	}
	a.renderer.Destroy()
}

// render is called each frame.
func (a *App) render() {
	// Captured at the start of the frame so the previous frame is complete.
	if a.exportRequested {
		a.exportRequested = false
		a.export()
	}

	a.mu.Lock()
	path := a.pendingPath
	a.pendingPath = ""
	a.mu.Unlock()
	if path != "" {
		a.switchDataset(path)
	}

	if ui.IsKeyPressed(imgui.KeyF12) {
		a.exportRequested = true
	}
	ctrlO := imgui.KeyChord(imgui.ModCtrl) | imgui.KeyChord(imgui.KeyO)
	if imgui.IsKeyChordPressed(ctrlO) {
		a.openIndexDialog()
	}

	a.uploadTargets()

	x, y, w, h := a.ui.Viewport()
	const panelWidth = 300
	imgui.SetNextWindowPos(imgui.NewVec2(x, y))
	imgui.SetNextWindowSize(imgui.NewVec2(panelWidth, h))
	flags := imgui.WindowFlagsNoMove | imgui.WindowFlagsNoResize | imgui.WindowFlagsNoCollapse
	if imgui.BeginV("Controls", nil, flags) {
		a.renderMenu()
		imgui.Separator()
		a.renderPanel()
		imgui.Separator()
		a.renderTargets()
	}
	imgui.End()

	imgui.SetNextWindowPos(imgui.NewVec2(x+panelWidth, y))
	imgui.SetNextWindowSize(imgui.NewVec2(w-panelWidth, h))
	if imgui.BeginV("Scene", nil, flags|imgui.WindowFlagsNoScrollbar) {
		a.renderScene()
	}
	imgui.End()
}

func (a *App) renderMenu() {
	if imgui.Button("Open index...") {
		a.openIndexDialog()
	}
	imgui.SameLine()
	if imgui.Button("Export") {
		a.exportRequested = true
	}
	imgui.TextDisabled(a.statusText())
	imgui.Text(fmt.Sprintf("Annotations: %d", a.store.Len()))
}

func (a *App) export() {
	paths, err := a.store.Export(a.exporter)
	if err != nil {
		a.log.Error("annotation export failed", zap.Error(err))
	}
	w, h := a.renderer.Size()
	frame, ferr := a.exporter.SavePixels(a.renderer.ReadPixels(), int(w), int(h), "scene")
	if ferr != nil {
		a.log.Error("scene export failed", zap.Error(ferr))
	} else {
		paths = append(paths, frame)
	}
	a.log.Info("exported", zap.Strings("files", paths))
	a.setStatus(fmt.Sprintf("exported %d files", len(paths)))
}
