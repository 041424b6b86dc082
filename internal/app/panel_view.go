package app

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/imgui"
	"go.uber.org/zap"

	"github.com/Faultbox/segview/internal/panel"
	"github.com/Faultbox/segview/internal/render"
	"github.com/Faultbox/segview/internal/viewer"
)

// renderPanel draws the controls of the current mode. Changes go through the
// panel, which validates them and re-activates the mode.
func (a *App) renderPanel() {
	params := a.core.Params()

	for _, c := range a.panel.Controls() {
		var err error
		switch c.Field {
		case panel.FieldMode:
			if v, ok := combo("Mode", string(params.Mode), c.Options); ok {
				err = a.panel.SetMode(viewer.Mode(v))
			}
		case panel.FieldLayers:
			if v, ok := combo("Layers", params.Layers.Select, c.Options); ok {
				err = a.panel.SetLayers(v)
			}
		case panel.FieldSurface:
			v := float32(params.Surface)
			if imgui.SliderFloatV("Surface", &v, float32(c.Min), float32(c.Max), "%.3f", imgui.SliderFlagsNone) {
				err = a.panel.SetSurface(float64(v))
			}
		case panel.FieldInverse:
			v := params.Inverse
			if imgui.Checkbox("Inverse", &v) {
				err = a.panel.SetInverse(v)
			}
		case panel.FieldLayer:
			v := int32(params.Layer)
			if imgui.SliderIntV("Layer", &v, int32(c.Min), int32(c.Max), "%d", imgui.SliderFlagsNone) {
				err = a.panel.SetLayer(int(v))
			}
		}
		if err != nil {
			a.log.Warn("control rejected", zap.String("field", string(c.Field)), zap.Error(err))
			a.setStatus(err.Error())
		}
	}

	if len(params.Layers.Options) == 0 {
		imgui.TextDisabled("no dataset loaded")
	}
}

// combo draws a selection list and reports the newly chosen option.
func combo(label, current string, options []string) (string, bool) {
	chosen, changed := current, false
	if imgui.BeginCombo(label, current) {
		for _, opt := range options {
			selected := opt == current
			if imgui.SelectableBoolV(opt, selected, 0, imgui.NewVec2(0, 0)) && !selected {
				chosen, changed = opt, true
			}
		}
		imgui.EndCombo()
	}
	return chosen, changed
}

// renderTargets shows the three mode buffers. The active mode's buffer is the
// one a new annotation snapshots.
func (a *App) renderTargets() {
	active := a.core.Params().Mode.Class()
	imgui.Text("Buffers")
	size := imgui.NewVec2(84, 84)
	for i, t := range a.targets {
		if i > 0 {
			imgui.SameLine()
		}
		if t == nil {
			imgui.Dummy(size)
			continue
		}
		border := imgui.NewVec4(0.15, 0.15, 0.15, 1.0)
		if i == int(active) {
			border = imgui.NewVec4(0.9, 0.7, 0.2, 1.0)
		}
		imgui.ImageWithBgV(t.ID, size, imgui.NewVec2(0, 0), imgui.NewVec2(1, 1), border, imgui.NewVec4(1, 1, 1, 1))
		if imgui.IsItemHovered() {
			imgui.SetTooltip(fmt.Sprintf("%s buffer, version %d", render.Class(i), a.versions[i]))
		}
	}
}
