// Package ui wraps the ImGui SDL backend the viewer window runs on.
package ui

import (
	"fmt"
	"os"

	"github.com/AllenDang/cimgui-go/backend"
	"github.com/AllenDang/cimgui-go/backend/sdlbackend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/gl/v4.1-core/gl"
)

// fontPaths are tried in order; the ImGui default font is used if none exist.
var fontPaths = []string{
	"/System/Library/Fonts/SFNS.ttf",
	"/Library/Fonts/Arial.ttf",
	"C:\\Windows\\Fonts\\segoeui.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
}

// Backend owns the window, the GL context and the ImGui frame loop.
type Backend struct {
	backend backend.Backend[sdlbackend.SDLWindowFlags]
	width   int32
	height  int32
}

// NewBackend creates the window and initializes OpenGL on the calling thread.
func NewBackend(title string, width, height int32) (*Backend, error) {
	b := &Backend{
		width:  width,
		height: height,
	}

	var err error
	b.backend, err = backend.CreateBackend(sdlbackend.NewSDLBackend())
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	b.backend.SetAfterCreateContextHook(loadFont)
	b.backend.SetBgColor(imgui.NewVec4(0.1, 0.1, 0.12, 1.0))
	b.backend.CreateWindow(title, int(width), int(height))

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init opengl: %w", err)
	}

	return b, nil
}

func loadFont() {
	for _, path := range fontPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fontCfg := imgui.NewFontConfig()
		defer fontCfg.Destroy()
		imgui.CurrentIO().Fonts().AddFontFromFileTTFV(path, 15.0, fontCfg, nil)
		return
	}
}

// Run starts the main render loop. It returns when the window closes.
func (b *Backend) Run(renderFunc func()) {
	b.backend.Run(renderFunc)
}

// SetWindowTitle updates the window title.
func (b *Backend) SetWindowTitle(title string) {
	b.backend.SetWindowTitle(title)
}

// Viewport returns the main viewport work area.
func (b *Backend) Viewport() (posX, posY, width, height float32) {
	viewport := imgui.MainViewport()
	workPos := viewport.WorkPos()
	workSize := viewport.WorkSize()
	return workPos.X, workPos.Y, workSize.X, workSize.Y
}

// IsKeyPressed checks if a key was pressed this frame.
func IsKeyPressed(key imgui.Key) bool {
	return imgui.IsKeyChordPressed(imgui.KeyChord(key))
}
