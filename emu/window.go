package emu

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/veandco/go-sdl2/sdl"

	"gsynth/gs"
)

// GLDevice shows output in an SDL window with an OpenGL 3.3 core context.
// The merged frame is uploaded into a full-window texture each Present; the
// hardware renderer additionally streams primitive batches through a small
// color/texture shader. All GL work funnels through sdl.Do, so the process
// must be running sdl.Main on the main thread.
type GLDevice struct {
	title   string
	scale   int
	monitor int32
	novsync bool

	win     *sdl.Window
	context sdl.GLContext

	prog     uint32 // frame blit program
	frameTex uint32
	vao      uint32

	batchProg uint32
	batchVAO  uint32
	batchVBO  uint32
	useTexLoc int32

	width, height int
	maxTexSize    int32

	nextID   gs.TextureID
	textures map[gs.TextureID]glTexture

	quit bool
}

type glTexture struct {
	id   uint32
	w, h int
}

func NewGLDevice(title string, scale int, monitor int32) *GLDevice {
	if scale < 1 {
		scale = 1
	}
	return &GLDevice{
		title:    title,
		scale:    scale,
		monitor:  monitor,
		textures: make(map[gs.TextureID]glTexture),
	}
}

// SetVSync toggles swap synchronization. Only effective before Create.
func (d *GLDevice) SetVSync(enabled bool) { d.novsync = !enabled }

func (d *GLDevice) Create(width, height int) error {
	errc := make(chan error, 1)
	sdl.Do(func() { errc <- d.create(width, height) })
	return <-errc
}

func (d *GLDevice) create(width, height int) error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("failed to initialize SDL: %s", err)
	}

	sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, 3)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, 3)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE)

	winw := int32(width * d.scale)
	winh := int32(height * d.scale)
	pos := int32(sdl.WINDOWPOS_CENTERED_MASK | uint32(d.monitor))
	win, err := sdl.CreateWindow(d.title,
		pos, pos,
		winw, winh,
		sdl.WINDOW_OPENGL|sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return fmt.Errorf("failed to create window: %s", err)
	}

	context, err := win.GLCreateContext()
	if err != nil {
		win.Destroy()
		return fmt.Errorf("failed to create OpenGL context: %s", err)
	}

	if err := gl.Init(); err != nil {
		sdl.GLDeleteContext(context)
		win.Destroy()
		return fmt.Errorf("failed to initialize opengl: %s", err)
	}

	if d.novsync {
		sdl.GLSetSwapInterval(0)
	}

	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &d.maxTexSize)

	// Frame texture, sized to the merged output.
	tbuf := make([]byte, width*height*4)
	gl.GenTextures(1, &d.frameTex)
	gl.BindTexture(gl.TEXTURE_2D, d.frameTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&tbuf[0]))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)

	vert, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return fmt.Errorf("vertex shader compilation: %s", err)
	}
	frag, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return fmt.Errorf("fragment shader compilation: %s", err)
	}
	prog, err := linkProgram(vert, frag)
	if err != nil {
		return fmt.Errorf("shader program link: %s", err)
	}

	var VBO, VAO, EBO uint32
	gl.GenVertexArrays(1, &VAO)
	gl.GenBuffers(1, &VBO)
	gl.GenBuffers(1, &EBO)

	gl.BindVertexArray(VAO)

	gl.BindBuffer(gl.ARRAY_BUFFER, VBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, EBO)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(quadIndices)*4, gl.Ptr(quadIndices), gl.STATIC_DRAW)

	// Position attributes.
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 5*4, 0)
	gl.EnableVertexAttribArray(0)

	// Texture coordinate attributes.
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, 5*4, 3*4)
	gl.EnableVertexAttribArray(1)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	// Batch pipeline: a streamed VBO of pos/uv/color vertices.
	bvert, err := compileShader(batchVertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return fmt.Errorf("batch vertex shader compilation: %s", err)
	}
	bfrag, err := compileShader(batchFragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return fmt.Errorf("batch fragment shader compilation: %s", err)
	}
	bprog, err := linkProgram(bvert, bfrag)
	if err != nil {
		return fmt.Errorf("batch program link: %s", err)
	}

	gl.GenVertexArrays(1, &d.batchVAO)
	gl.GenBuffers(1, &d.batchVBO)
	gl.BindVertexArray(d.batchVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.batchVBO)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 8*4, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, 8*4, 2*4)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 4, gl.FLOAT, false, 8*4, 4*4)
	gl.EnableVertexAttribArray(2)
	gl.BindVertexArray(0)

	d.useTexLoc = gl.GetUniformLocation(bprog, gl.Str("useTex\x00"))

	d.win = win
	d.context = context
	d.prog = prog
	d.vao = VAO
	d.batchProg = bprog
	d.width = width
	d.height = height
	return nil
}

func (d *GLDevice) CreateTexture(w, h int) (gs.TextureID, error) {
	if int32(w) > d.maxTexSize || int32(h) > d.maxTexSize {
		return 0, fmt.Errorf("texture %dx%d exceeds device maximum %d", w, h, d.maxTexSize)
	}
	var tex uint32
	sdl.Do(func() {
		gl.GenTextures(1, &tex)
		gl.BindTexture(gl.TEXTURE_2D, tex)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	})
	d.nextID++
	d.textures[d.nextID] = glTexture{id: tex, w: w, h: h}
	return d.nextID, nil
}

func (d *GLDevice) UpdateTexture(id gs.TextureID, pix []uint32, w, h int) error {
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("unknown texture id %d", id)
	}
	sdl.Do(func() {
		gl.BindTexture(gl.TEXTURE_2D, t.id)
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&pix[0]))
	})
	return nil
}

func (d *GLDevice) DrawBatch(b *gs.Batch, tex gs.TextureID) error {
	verts, mode := d.buildBatch(b, tex)
	if len(verts) == 0 {
		return nil
	}
	sdl.Do(func() {
		gl.UseProgram(d.batchProg)
		if b.Snapshot.Prim.TME() {
			gl.Uniform1i(d.useTexLoc, 1)
			gl.BindTexture(gl.TEXTURE_2D, d.textures[tex].id)
		} else {
			gl.Uniform1i(d.useTexLoc, 0)
		}
		gl.BindVertexArray(d.batchVAO)
		gl.BindBuffer(gl.ARRAY_BUFFER, d.batchVBO)
		gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts), gl.STREAM_DRAW)
		gl.DrawArrays(mode, 0, int32(len(verts)/8))
		gl.BindVertexArray(0)
	})
	return nil
}

// buildBatch converts fixed-point vertices into interleaved NDC floats:
// x, y, u, v, r, g, b, a. Sprites expand into two triangles.
func (d *GLDevice) buildBatch(b *gs.Batch, tex gs.TextureID) ([]float32, uint32) {
	prim := b.Snapshot.Prim
	t := d.textures[tex]

	var mode uint32
	switch prim.Type() {
	case gs.PrimPoint:
		mode = gl.POINTS
	case gs.PrimLine, gs.PrimLineStrip:
		mode = gl.LINES
	default:
		mode = gl.TRIANGLES
	}

	push := func(out []float32, v gs.Vertex, uvFrom gs.Vertex) []float32 {
		x := float32(v.X)/16/float32(d.width)*2 - 1
		y := 1 - float32(v.Y)/16/float32(d.height)*2

		var u, s float32
		if prim.TME() && t.w > 0 {
			if prim.FST() {
				u = float32(uvFrom.U) / 16 / float32(t.w)
				s = float32(uvFrom.V) / 16 / float32(t.h)
			} else if uvFrom.Q != 0 {
				u = uvFrom.S / uvFrom.Q
				s = uvFrom.T / uvFrom.Q
			}
		}
		return append(out,
			x, y, u, s,
			float32(v.R)/255, float32(v.G)/255, float32(v.B)/255, float32(v.A)/255)
	}

	out := make([]float32, 0, len(b.Verts)*8)
	if prim.Type() == gs.PrimSprite {
		for i := 0; i+1 < len(b.Verts); i += 2 {
			v0, v1 := b.Verts[i], b.Verts[i+1]
			// Sprites are flat shaded from the closing vertex.
			v0.R, v0.G, v0.B, v0.A = v1.R, v1.G, v1.B, v1.A
			tl, tr, bl, br := v0, v0, v0, v1
			tr.X, bl.Y = v1.X, v1.Y
			tr.U, bl.V = v1.U, v1.V
			tr.S, bl.T = v1.S, v1.T

			out = push(out, tl, tl)
			out = push(out, tr, tr)
			out = push(out, br, br)
			out = push(out, tl, tl)
			out = push(out, br, br)
			out = push(out, bl, bl)
		}
		return out, gl.TRIANGLES
	}

	for _, v := range b.Verts {
		out = push(out, v, v)
	}
	return out, mode
}

func (d *GLDevice) Present(frame []uint32, w, h int) error {
	sdl.Do(func() {
		gl.BindTexture(gl.TEXTURE_2D, d.frameTex)
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&frame[0]))

		gl.Clear(gl.COLOR_BUFFER_BIT)
		gl.UseProgram(d.prog)
		gl.BindVertexArray(d.vao)
		gl.DrawElements(gl.TRIANGLES, 6, gl.UNSIGNED_INT, nil)
		d.win.GLSwap()
	})
	return nil
}

// Poll drains pending window events, reporting whether the user asked to
// quit. The replay loop calls it once per frame.
func (d *GLDevice) Poll() (quit bool) {
	sdl.Do(func() {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				d.quit = true
			case *sdl.KeyboardEvent:
				if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
					d.quit = true
				}
			case *sdl.WindowEvent:
				if e.Event == sdl.WINDOWEVENT_RESIZED {
					gl.Viewport(0, 0, e.Data1, e.Data2)
				}
			}
		}
	})
	return d.quit
}

func (d *GLDevice) Capabilities() gs.Capabilities {
	return gs.Capabilities{
		Name:           "opengl",
		MaxTextureSize: int(d.maxTexSize),
		NPOT:           true,
	}
}

func (d *GLDevice) Destroy() {
	sdl.Do(func() {
		for _, t := range d.textures {
			gl.DeleteTextures(1, &t.id)
		}
		clear(d.textures)
		if d.frameTex != 0 {
			gl.DeleteTextures(1, &d.frameTex)
			d.frameTex = 0
		}
		if d.context != nil {
			sdl.GLDeleteContext(d.context)
			d.context = nil
		}
		if d.win != nil {
			d.win.Destroy()
			d.win = nil
		}
		sdl.Quit()
	})
}

// Columns are position and texture coordinates.
// Rows are the quad vertices in clockwise order.
var quadVertices = []float32{
	// x, y, z, s, t
	1.0, 1.0, 0, 1, 0, // top right
	1.0, -1.0, 0, 1, 1, // bottom right
	-1.0, -1.0, 0, 0, 1, // bottom left
	-1.0, 1.0, 0, 0, 0, // top left
}

var quadIndices = []uint32{
	0, 1, 3,
	1, 2, 3,
}

const vertexShaderSource = `
#version 330 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec2 aTexCoord;

out vec2 TexCoord;

void main() {
    gl_Position = vec4(aPos, 1.0);
    TexCoord = aTexCoord;
}
` + "\x00"

const fragmentShaderSource = `
#version 330 core
out vec4 FragColor;
in vec2 TexCoord;

uniform sampler2D ourTexture;

void main() {
    FragColor = texture(ourTexture, TexCoord);
}
` + "\x00"

const batchVertexShaderSource = `
#version 330 core
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec2 aTexCoord;
layout (location = 2) in vec4 aColor;

out vec2 TexCoord;
out vec4 Color;

void main() {
    gl_Position = vec4(aPos, 0.0, 1.0);
    TexCoord = aTexCoord;
    Color = aColor;
}
` + "\x00"

const batchFragmentShaderSource = `
#version 330 core
out vec4 FragColor;
in vec2 TexCoord;
in vec4 Color;

uniform sampler2D ourTexture;
uniform int useTex;

void main() {
    vec4 base = Color;
    if (useTex != 0) {
        base = texture(ourTexture, TexCoord) * Color * 2.0;
    }
    FragColor = clamp(base, 0.0, 1.0);
}
` + "\x00"

func compileShader(source string, shaderType uint32) (uint32, error) {
	sh := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(source)
	gl.ShaderSource(sh, 1, csrc, nil)
	free()
	gl.CompileShader(sh)

	var status int32
	if gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status); status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLength)

		log := make([]byte, logLength+1)
		gl.GetShaderInfoLog(sh, logLength, nil, &log[0])

		return 0, fmt.Errorf("shader compile error: %v", string(log))
	}

	return sh, nil
}

func linkProgram(vertexShader, fragmentShader uint32) (uint32, error) {
	prg := gl.CreateProgram()
	gl.AttachShader(prg, vertexShader)
	gl.AttachShader(prg, fragmentShader)
	gl.LinkProgram(prg)

	var status int32
	if gl.GetProgramiv(prg, gl.LINK_STATUS, &status); status == gl.FALSE {
		var logLength int32
		var glLog [256]byte
		gl.GetProgramInfoLog(prg, int32(len(glLog)), &logLength, &glLog[0])
		return 0, fmt.Errorf("shader program link error: %v", string(glLog[:logLength]))
	}

	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	return prg, nil
}
