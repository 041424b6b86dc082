package app

import (
	"github.com/sqweek/dialog"
	"go.uber.org/zap"
)

// openIndexDialog asks for a dataset index without blocking the frame loop.
// Window work must stay on the main thread, so the path is handed back through
// pendingPath and opened by render.
func (a *App) openIndexDialog() {
	go func() {
		filename, err := dialog.File().
			Filter("Dataset index", "yaml", "yml").
			Filter("All Files", "*").
			Title("Open dataset index").
			Load()
		if err != nil {
			if err != dialog.ErrCancelled {
				a.log.Warn("file dialog failed", zap.Error(err))
			}
			return
		}

		a.mu.Lock()
		a.pendingPath = filename
		a.mu.Unlock()
	}()
}
