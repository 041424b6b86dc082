package app

import (
	"github.com/AllenDang/cimgui-go/backend"

	"github.com/Faultbox/segview/internal/render"
)

// uploadTargets re-uploads the targets whose version moved since last frame.
func (a *App) uploadTargets() {
	for c := render.Class(0); c < render.NumClasses; c++ {
		v := a.pool.Version(c)
		if v == a.versions[c] && a.targets[c] != nil {
			continue
		}
		if v == 0 {
			continue
		}
		img, v := a.pool.Snapshot(c)
		if a.targets[c] != nil {
			a.targets[c].Release()
		}
		a.targets[c] = backend.NewTextureFromRgba(img)
		a.versions[c] = v
	}
}
