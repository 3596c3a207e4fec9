package gs

import "gsynth/emu/log"

// transferState is the BITBLTBUF/TRXPOS/TRXREG/TRXDIR block-transfer machine.
// The cursor (x, y) counts pixels relative to the destination (host→local)
// or source (local→host) rectangle origin.
type transferState struct {
	buf BITBLTBUF
	pos TRXPOS
	reg TRXREG
	dir uint8

	x, y int
}

// startTransfer latches TRXDIR and kicks the transfer. Local→local moves
// complete immediately; the other directions set up cursor state consumed by
// IMAGE data (host→local) or ReadFIFO (local→host).
func (s *State) startTransfer(dir uint8) {
	s.trx.dir = dir
	s.trx.x, s.trx.y = 0, 0

	w, h := s.trx.reg.RRW(), s.trx.reg.RRH()
	if w == 0 || h == 0 {
		s.trx.dir = trxNone
		return
	}

	log.ModVRAM.DebugZ("transfer start").
		Uint32("dir", uint32(dir)).
		Int("w", w).Int("h", h).
		Hex32("sbp", s.trx.buf.SBP()).
		Hex32("dbp", s.trx.buf.DBP()).
		End()

	switch dir {
	case trxLocalToLocal:
		s.localToLocal()
		s.trx.dir = trxNone
	case trxNone:
		s.trx.dir = trxNone
	}
}

// writeImage consumes one IMAGE-mode quadword of host→local data.
func (s *State) writeImage(qw []byte) {
	s.writeImageSpan(qw[:16])
}

// writeImageSpan writes a run of host pixel data at the transfer cursor.
// Data always arrives in multiples of 8 bytes, so 16- and 32-bit destination
// formats never split a pixel across calls.
func (s *State) writeImageSpan(data []byte) {
	if s.trx.dir != trxHostToLocal {
		log.ModVRAM.DebugZ("image data outside host transfer").End()
		return
	}

	dst := s.vram.View(s.trx.buf.DBP(), int(s.trx.buf.DBW())*64, PixelFormat(s.trx.buf.DPSM()))
	bpp := PixelFormat(s.trx.buf.DPSM()).BytesPerPixel()
	w, h := s.trx.reg.RRW(), s.trx.reg.RRH()
	dx, dy := s.trx.pos.DSAX(), s.trx.pos.DSAY()

	lo, hi := -1, -1
	for len(data) >= bpp && s.trx.y < h {
		x := dx + s.trx.x
		y := dy + s.trx.y

		var px uint32
		if bpp == 2 {
			px = uint32(data[0]) | uint32(data[1])<<8
		} else {
			px = uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
		}
		data = data[bpp:]

		dst.SetPixel(x, y, px, 0xffffffff)
		off := dst.PixOffset(x, y)
		if lo < 0 || off < lo {
			lo = off
		}
		if off+bpp > hi {
			hi = off + bpp
		}

		if s.trx.x++; s.trx.x == w {
			s.trx.x = 0
			s.trx.y++
		}
	}

	if s.trx.y >= h {
		s.trx.dir = trxNone
	}
	if lo >= 0 && s.onVRAMWrite != nil {
		s.onVRAMWrite(lo, hi)
	}
}

// localToLocal copies the transfer rectangle inside local memory. The copy
// honors the TRXPOS direction field so overlapping rectangles move without
// self-corruption.
func (s *State) localToLocal() {
	src := s.vram.View(s.trx.buf.SBP(), int(s.trx.buf.SBW())*64, PixelFormat(s.trx.buf.SPSM()))
	dst := s.vram.View(s.trx.buf.DBP(), int(s.trx.buf.DBW())*64, PixelFormat(s.trx.buf.DPSM()))

	w, h := s.trx.reg.RRW(), s.trx.reg.RRH()
	sx, sy := s.trx.pos.SSAX(), s.trx.pos.SSAY()
	dx, dy := s.trx.pos.DSAX(), s.trx.pos.DSAY()

	x0, xd, y0, yd := 0, 1, 0, 1
	if s.trx.pos.DIR()&1 != 0 { // right-to-left
		x0, xd = w-1, -1
	}
	if s.trx.pos.DIR()&2 != 0 { // bottom-to-top
		y0, yd = h-1, -1
	}

	for j, y := 0, y0; j < h; j, y = j+1, y+yd {
		for i, x := 0, x0; i < w; i, x = i+1, x+xd {
			dst.SetPixel(dx+x, dy+y, src.Pixel(sx+x, sy+y), 0xffffffff)
		}
	}

	if s.onVRAMWrite != nil {
		lo, hi := dst.Rect(w+dx, h+dy)
		s.onVRAMWrite(lo, hi)
	}
}

// ReadFIFO fills buf with local→host transfer data from the cursor and
// returns the number of bytes produced. It returns 0 once the rectangle is
// exhausted or when no local→host transfer is active.
func (s *State) ReadFIFO(buf []byte) int {
	if s.trx.dir != trxLocalToHost {
		return 0
	}

	src := s.vram.View(s.trx.buf.SBP(), int(s.trx.buf.SBW())*64, PixelFormat(s.trx.buf.SPSM()))
	bpp := PixelFormat(s.trx.buf.SPSM()).BytesPerPixel()
	w, h := s.trx.reg.RRW(), s.trx.reg.RRH()
	sx, sy := s.trx.pos.SSAX(), s.trx.pos.SSAY()

	n := 0
	for n+bpp <= len(buf) && s.trx.y < h {
		px := src.Pixel(sx+s.trx.x, sy+s.trx.y)
		buf[n] = byte(px)
		buf[n+1] = byte(px >> 8)
		if bpp == 4 {
			buf[n+2] = byte(px >> 16)
			buf[n+3] = byte(px >> 24)
		}
		n += bpp

		if s.trx.x++; s.trx.x == w {
			s.trx.x = 0
			s.trx.y++
		}
	}

	if s.trx.y >= h {
		s.trx.dir = trxNone
	}
	return n
}
