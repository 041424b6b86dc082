// Package renderer draws the annotation scene with OpenGL.
package renderer

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/segview/internal/engine/framebuffer"
	"github.com/Faultbox/segview/internal/engine/picking"
	"github.com/Faultbox/segview/internal/engine/renderer/shaders"
	"github.com/Faultbox/segview/internal/engine/scene"
	"github.com/Faultbox/segview/internal/engine/shader"
	"github.com/Faultbox/segview/internal/engine/texture"
	"github.com/Faultbox/segview/internal/logger"
)

// Quad is a textured rectangle lying in an XZ plane, such as a placed annotation.
type Quad interface {
	QuadID() int
	QuadRect() picking.Rect
	QuadImage() *image.RGBA
}

// Config contains renderer options.
type Config struct {
	Width       int32
	Height      int32
	GroundY     float32
	GroundSize  float32
	GroundColor mgl32.Vec4
	ClearColor  mgl32.Vec4
}

// DefaultConfig returns the ground plane used by the annotation view.
func DefaultConfig() Config {
	return Config{
		Width:       1280,
		Height:      720,
		GroundY:     -0.2,
		GroundSize:  10,
		GroundColor: mgl32.Vec4{0.22, 0.24, 0.28, 1},
		ClearColor:  mgl32.Vec4{0.1, 0.1, 0.12, 1},
	}
}

// Renderer draws the persistent scene nodes into an off-screen framebuffer.
type Renderer struct {
	config      Config
	framebuffer *framebuffer.Framebuffer
	program     *shader.Program

	vao uint32
	vbo uint32

	textures map[int]*texture.Texture
}

// New allocates GL resources.
// IMPORTANT: Must be called after gl.Init on the thread owning the context.
func New(cfg Config) (*Renderer, error) {
	logger.Info("OpenGL ready",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	fb, err := framebuffer.New(cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	program, err := shader.New(shaders.QuadVertexShader, shaders.QuadFragmentShader)
	if err != nil {
		fb.Destroy()
		return nil, fmt.Errorf("quad shader: %w", err)
	}

	r := &Renderer{
		config:      cfg,
		framebuffer: fb,
		program:     program,
		textures:    make(map[int]*texture.Texture),
	}
	r.createQuad()
	return r, nil
}

// createQuad uploads a unit quad centered on the origin in the XZ plane.
func (r *Renderer) createQuad() {
	vertices := []float32{
		// x, y, z, u, v
		-0.5, 0, -0.5, 0, 0,
		0.5, 0, -0.5, 1, 0,
		0.5, 0, 0.5, 1, 1,
		-0.5, 0, -0.5, 0, 0,
		0.5, 0, 0.5, 1, 1,
		-0.5, 0, 0.5, 0, 1,
	}

	gl.GenVertexArrays(1, &r.vao)
	gl.BindVertexArray(r.vao)

	gl.GenBuffers(1, &r.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)

	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 5*4, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, 5*4, 3*4)
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)
}

// Render draws the ground and every persistent annotation node in g, and
// returns the color texture holding the result.
func (r *Renderer) Render(g *scene.Graph, viewProj mgl32.Mat4) uint32 {
	_ = r.framebuffer.Draw(func() error {
		c := r.config.ClearColor
		r.framebuffer.Clear(c[0], c[1], c[2], c[3])

		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.LEQUAL)
		gl.Disable(gl.CULL_FACE)

		r.program.Use()
		r.program.SetMat4("uViewProj", viewProj)
		r.program.SetInt("uTexture", 0)
		gl.BindVertexArray(r.vao)

		ground := mgl32.Translate3D(0, r.config.GroundY, 0).
			Mul4(mgl32.Scale3D(r.config.GroundSize, 1, r.config.GroundSize))
		r.drawQuad(ground, r.config.GroundColor, nil)

		for _, n := range g.Persistent(scene.KindAnnotation) {
			q, ok := n.Value.(Quad)
			if !ok {
				continue
			}
			rect := q.QuadRect()
			model := mgl32.Translate3D((rect.MinX+rect.MaxX)/2, rect.Y, (rect.MinZ+rect.MaxZ)/2).
				Mul4(mgl32.Scale3D(rect.MaxX-rect.MinX, 1, rect.MaxZ-rect.MinZ))
			r.drawQuad(model, mgl32.Vec4{1, 1, 1, 1}, r.textureFor(q))
		}

		gl.BindVertexArray(0)
		return nil
	})
	return r.framebuffer.ColorTexture()
}

func (r *Renderer) drawQuad(model mgl32.Mat4, color mgl32.Vec4, tex *texture.Texture) {
	r.program.SetMat4("uModel", model)
	r.program.SetVec4("uColor", color)
	if tex != nil {
		r.program.SetInt("uTextured", 1)
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, tex.ID)
	} else {
		r.program.SetInt("uTextured", 0)
	}
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
}

// textureFor uploads a quad's image once. Annotation images never change
// after placement, so the cache is keyed by id only.
func (r *Renderer) textureFor(q Quad) *texture.Texture {
	id := q.QuadID()
	if t, ok := r.textures[id]; ok {
		return t
	}
	img := q.QuadImage()
	if img == nil {
		return nil
	}
	t := texture.FromImage(img)
	r.textures[id] = t
	return t
}

// Resize resizes the off-screen framebuffer.
func (r *Renderer) Resize(width, height int32) {
	r.framebuffer.Resize(width, height)
}

// Size returns the framebuffer dimensions.
func (r *Renderer) Size() (width, height int32) {
	return r.framebuffer.Size()
}

// ReadPixels returns the last frame as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() []byte {
	return r.framebuffer.ReadPixels()
}

// Destroy releases all GL resources.
func (r *Renderer) Destroy() {
	for id, t := range r.textures {
		t.Destroy()
		delete(r.textures, id)
	}
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
		r.vao = 0
	}
	if r.vbo != 0 {
		gl.DeleteBuffers(1, &r.vbo)
		r.vbo = 0
	}
	r.program.Destroy()
	r.framebuffer.Destroy()
}
