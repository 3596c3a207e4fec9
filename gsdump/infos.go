package gsdump

import (
	"fmt"
	"io"

	"github.com/go-faster/jx"
)

// Infos summarizes a dump without replaying it.
type Infos struct {
	CRC       uint32
	Frames    int // vsync count
	Transfers int
	Bytes     int64 // total transfer payload
	ReadFIFOs int
	PrivSnaps int
}

// Scan walks every event of d and tallies the dump.
func Scan(d *Reader) (Infos, error) {
	inf := Infos{CRC: d.Header().CRC}
	for {
		ev, err := d.Next()
		if err == io.EOF {
			return inf, nil
		}
		if err != nil {
			return inf, err
		}
		switch ev.Kind {
		case EvTransfer:
			inf.Transfers++
			inf.Bytes += int64(len(ev.Data))
		case EvVSync:
			inf.Frames++
		case EvReadFIFO:
			inf.ReadFIFOs++
		case EvPrivWrite:
			inf.PrivSnaps++
		}
	}
}

// WriteText prints a human-readable summary.
func (inf Infos) WriteText(w io.Writer) {
	fmt.Fprintf(w, "crc:       %08X\n", inf.CRC)
	fmt.Fprintf(w, "frames:    %d\n", inf.Frames)
	fmt.Fprintf(w, "transfers: %d (%d bytes)\n", inf.Transfers, inf.Bytes)
	fmt.Fprintf(w, "readfifo:  %d\n", inf.ReadFIFOs)
	fmt.Fprintf(w, "privsnaps: %d\n", inf.PrivSnaps)
}

// WriteJSON emits the summary as a single JSON object.
func (inf Infos) WriteJSON(w io.Writer) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("crc", func(e *jx.Encoder) { e.Str(fmt.Sprintf("%08X", inf.CRC)) })
		e.Field("frames", func(e *jx.Encoder) { e.Int(inf.Frames) })
		e.Field("transfers", func(e *jx.Encoder) { e.Int(inf.Transfers) })
		e.Field("bytes", func(e *jx.Encoder) { e.Int64(inf.Bytes) })
		e.Field("readfifo", func(e *jx.Encoder) { e.Int(inf.ReadFIFOs) })
		e.Field("privsnaps", func(e *jx.Encoder) { e.Int(inf.PrivSnaps) })
	})
	_, err := w.Write(append(e.Bytes(), '\n'))
	return err
}
