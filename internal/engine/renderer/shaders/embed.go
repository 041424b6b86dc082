// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// QuadVertexShader transforms unit quads lying in the XZ plane.
//
//go:embed quad.vert
var QuadVertexShader string

// QuadFragmentShader shades quads with a flat color or a texture.
//
//go:embed quad.frag
var QuadFragmentShader string
