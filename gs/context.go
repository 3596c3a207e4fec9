package gs

// Context is one of the two parallel draw-state register sets. Primitives
// select a context through PRIM.CTXT; switching only moves a pointer, the
// register values stay where they are.
type Context struct {
	TEX0     TEX0
	TEX1     TEX1
	CLAMP    CLAMP
	XYOFFSET XYOFFSET
	SCISSOR  SCISSOR
	ALPHA    ALPHA
	TEST     TEST
	FRAME    FRAME
	ZBUF     ZBUF
}

// Vertex is one assembled vertex, produced by the register stream and
// consumed by the rasterizer within the same draw batch. XY are 12.4
// fixed-point window coordinates, already offset-corrected.
type Vertex struct {
	X, Y int32  // 12.4 fixed point
	Z    uint32
	R, G, B, A uint8
	Q    float32
	S, T float32 // normalized (STQ mode)
	U, V int32   // 10.4 fixed point (UV mode)
	F    uint8   // fog coefficient
}

// DrawState is the snapshot of everything a batch of primitives shares.
// It is copied at batch start so later register writes cannot retroactively
// change queued primitives.
type DrawState struct {
	Prim   PRIM
	Ctx    Context
	TEXA   TEXA
	FOGCOL FOGCOL
}

// ScissorBounds returns the inclusive pixel rectangle of the snapshot's
// scissor, never exceeding the 2048x2048 window space.
func (s *DrawState) ScissorBounds() (x0, y0, x1, y1 int) {
	sc := s.Ctx.SCISSOR
	return sc.X0(), sc.Y0(), sc.X1(), sc.Y1()
}
