// Package gsdump reads and writes register-stream dump files: a frozen
// starting state followed by the exact sequence of transfers and vsyncs a
// game produced. Replaying a dump reproduces the original frames, which
// makes dumps the primary regression vehicle for renderer work.
package gsdump

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/go-faster/errors"

	"gsynth/gs"
)

const (
	Magic   = 0x50445347 // "GSDP"
	Version = 1
)

// Event kinds, in file order.
const (
	EvTransfer uint8 = iota
	EvVSync
	EvReadFIFO
	EvPrivWrite
)

// Event is one replayable step.
type Event struct {
	Kind uint8

	Path  int    // EvTransfer
	Data  []byte // EvTransfer, EvPrivWrite (register image)
	Field int    // EvVSync
	Size  int    // EvReadFIFO: bytes the host drained
}

// Header identifies the dumped title and carries the initial chip state.
type Header struct {
	CRC    uint32
	Freeze []byte // gs.FreezeSize() bytes
	Priv   []byte // gs.PrivSize bytes
}

// Writer streams a dump to w. Events are appended in emulation order.
type Writer struct {
	w   *bufio.Writer
	err error
}

func NewWriter(w io.Writer, h Header) (*Writer, error) {
	if len(h.Freeze) != gs.FreezeSize() {
		return nil, errors.Errorf("dump: freeze blob is %d bytes, want %d", len(h.Freeze), gs.FreezeSize())
	}
	if len(h.Priv) != gs.PrivSize {
		return nil, errors.Errorf("dump: priv image is %d bytes, want %d", len(h.Priv), gs.PrivSize)
	}

	bw := bufio.NewWriter(w)
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:], Magic)
	binary.LittleEndian.PutUint32(hdr[4:], Version)
	binary.LittleEndian.PutUint32(hdr[8:], h.CRC)
	binary.LittleEndian.PutUint32(hdr[12:], uint32(len(h.Freeze)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return nil, err
	}
	if _, err := bw.Write(h.Freeze); err != nil {
		return nil, err
	}
	if _, err := bw.Write(h.Priv); err != nil {
		return nil, err
	}
	return &Writer{w: bw}, nil
}

func (w *Writer) Transfer(path int, data []byte) {
	w.event(EvTransfer, func() {
		w.u8(uint8(path))
		w.u32(uint32(len(data)))
		w.bytes(data)
	})
}

func (w *Writer) VSync(field int) {
	w.event(EvVSync, func() { w.u8(uint8(field)) })
}

func (w *Writer) ReadFIFO(size int) {
	w.event(EvReadFIFO, func() { w.u32(uint32(size)) })
}

// PrivWrite records a fresh privileged register image, captured whenever
// the host touched the mapped block since the last event.
func (w *Writer) PrivWrite(priv []byte) {
	w.event(EvPrivWrite, func() { w.bytes(priv[:gs.PrivSize]) })
}

func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func (w *Writer) event(kind uint8, body func()) {
	if w.err != nil {
		return
	}
	w.u8(kind)
	body()
}

func (w *Writer) u8(v uint8) {
	if w.err == nil {
		w.err = w.w.WriteByte(v)
	}
}

func (w *Writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.bytes(b[:])
}

func (w *Writer) bytes(b []byte) {
	if w.err == nil {
		_, w.err = w.w.Write(b)
	}
}

// Reader decodes a dump sequentially: header first, then Next until io.EOF.
type Reader struct {
	r   *bufio.Reader
	hdr Header
}

func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var hdr [16]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, errors.Wrap(err, "dump header")
	}
	if got := binary.LittleEndian.Uint32(hdr[0:]); got != Magic {
		return nil, errors.Errorf("dump: bad magic %#x", got)
	}
	if got := binary.LittleEndian.Uint32(hdr[4:]); got != Version {
		return nil, errors.Errorf("dump: unsupported version %d", got)
	}

	d := &Reader{r: br}
	d.hdr.CRC = binary.LittleEndian.Uint32(hdr[8:])

	flen := int(binary.LittleEndian.Uint32(hdr[12:]))
	if flen != gs.FreezeSize() {
		return nil, errors.Errorf("dump: freeze blob is %d bytes, want %d", flen, gs.FreezeSize())
	}
	d.hdr.Freeze = make([]byte, flen)
	if _, err := io.ReadFull(br, d.hdr.Freeze); err != nil {
		return nil, errors.Wrap(err, "dump freeze blob")
	}
	d.hdr.Priv = make([]byte, gs.PrivSize)
	if _, err := io.ReadFull(br, d.hdr.Priv); err != nil {
		return nil, errors.Wrap(err, "dump priv image")
	}
	return d, nil
}

func (d *Reader) Header() Header { return d.hdr }

// Next returns the next event, or io.EOF at the end of the dump.
func (d *Reader) Next() (Event, error) {
	kind, err := d.r.ReadByte()
	if err != nil {
		return Event{}, err
	}

	ev := Event{Kind: kind}
	switch kind {
	case EvTransfer:
		path, err := d.r.ReadByte()
		if err != nil {
			return ev, errors.Wrap(err, "transfer event")
		}
		ev.Path = int(path)
		n, err := d.u32()
		if err != nil {
			return ev, errors.Wrap(err, "transfer event")
		}
		ev.Data = make([]byte, n)
		if _, err := io.ReadFull(d.r, ev.Data); err != nil {
			return ev, errors.Wrap(err, "transfer payload")
		}

	case EvVSync:
		field, err := d.r.ReadByte()
		if err != nil {
			return ev, errors.Wrap(err, "vsync event")
		}
		ev.Field = int(field)

	case EvReadFIFO:
		n, err := d.u32()
		if err != nil {
			return ev, errors.Wrap(err, "readfifo event")
		}
		ev.Size = int(n)

	case EvPrivWrite:
		ev.Data = make([]byte, gs.PrivSize)
		if _, err := io.ReadFull(d.r, ev.Data); err != nil {
			return ev, errors.Wrap(err, "privwrite payload")
		}

	default:
		return ev, errors.Errorf("dump: unknown event kind %d", kind)
	}
	return ev, nil
}

func (d *Reader) u32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
