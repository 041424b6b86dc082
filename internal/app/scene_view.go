package app

import (
	"github.com/AllenDang/cimgui-go/imgui"
	"go.uber.org/zap"

	"github.com/Faultbox/segview/internal/annotation"
	"github.com/Faultbox/segview/internal/engine/input"
)

// renderScene draws the annotation scene and feeds pointer input to the
// camera and the picker.
func (a *App) renderScene() {
	avail := imgui.ContentRegionAvail()
	w, h := int32(max(avail.X, 1)), int32(max(avail.Y, 1))
	a.renderer.Resize(w, h)
	a.picker.SetViewport(int(w), int(h))

	viewProj := a.camera.ViewProjection(int(w), int(h))
	tex := a.renderer.Render(a.graph, viewProj)

	texRef := imgui.NewTextureRefTextureID(imgui.TextureID(tex))
	imgui.ImageWithBgV(
		*texRef,
		imgui.NewVec2(float32(w), float32(h)),
		imgui.NewVec2(0, 1), // GL rows are bottom-up
		imgui.NewVec2(1, 0),
		imgui.NewVec4(0.1, 0.1, 0.12, 1.0),
		imgui.NewVec4(1, 1, 1, 1),
	)
	origin := imgui.ItemRectMin()

	if imgui.IsItemHovered() {
		a.handleSceneInput(origin)
	} else {
		a.picker.HideOverlay()
	}
	a.drawOverlay(origin)
}

func (a *App) handleSceneInput(origin imgui.Vec2) {
	io := imgui.CurrentIO()
	mouse := imgui.MousePos()
	shift := io.KeyShift()

	if imgui.IsMouseDragging(imgui.MouseButtonLeft) && !shift {
		a.camera.HandleDrag(mouse.X-a.lastMouse.X, mouse.Y-a.lastMouse.Y)
	}
	if imgui.IsMouseDragging(imgui.MouseButtonRight) {
		a.camera.HandlePan(mouse.X-a.lastMouse.X, mouse.Y-a.lastMouse.Y)
	}
	a.lastMouse = mouse

	if wheel := io.MouseWheel(); wheel != 0 {
		a.camera.HandleZoom(wheel)
	}

	events := a.tracker.Update(input.State{
		X:        mouse.X - origin.X,
		Y:        mouse.Y - origin.Y,
		Primary:  imgui.IsMouseDown(imgui.MouseButtonLeft),
		Modifier: shift,
	})
	if !a.ready.Load() {
		return
	}
	for _, ev := range events {
		res, ann := a.picker.HandleEvent(ev)
		if res == annotation.ResultPlaced {
			a.log.Debug("pick placed annotation", zap.Int("id", ann.ID))
		}
	}
}

func (a *App) drawOverlay(origin imgui.Vec2) {
	ov := a.picker.Overlay()
	if !ov.Visible {
		return
	}
	lo := imgui.NewVec2(origin.X+ov.Min[0], origin.Y+ov.Min[1])
	hi := imgui.NewVec2(origin.X+ov.Max[0], origin.Y+ov.Max[1])
	col := imgui.ColorU32Vec4(imgui.NewVec4(1.0, 0.8, 0.2, 1.0))
	imgui.WindowDrawList().AddRectV(lo, hi, col, 0, 0, 2)
}
