package gsdump

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gsynth/gs"
)

func testHeader(t *testing.T) Header {
	t.Helper()
	state := gs.NewState(gs.NewVRAM())
	priv := gs.NewPriv(nil)
	return Header{
		CRC:    0xdeadbeef,
		Freeze: state.Freeze(priv),
		Priv:   priv.Mem(),
	}
}

func TestDumpRoundTrip(t *testing.T) {
	hdr := testHeader(t)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, hdr)
	if err != nil {
		t.Fatal(err)
	}

	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	privImg := make([]byte, gs.PrivSize)
	privImg[0x70] = 0xab

	w.Transfer(2, payload)
	w.VSync(0)
	w.ReadFIFO(1024)
	w.PrivWrite(privImg)
	w.Transfer(0, payload[:16])
	w.VSync(1)
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(hdr, r.Header()); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	want := []Event{
		{Kind: EvTransfer, Path: 2, Data: payload},
		{Kind: EvVSync, Field: 0},
		{Kind: EvReadFIFO, Size: 1024},
		{Kind: EvPrivWrite, Data: privImg},
		{Kind: EvTransfer, Path: 0, Data: payload[:16]},
		{Kind: EvVSync, Field: 1},
	}
	var got []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, ev)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderRejectsBadInput(t *testing.T) {
	hdr := testHeader(t)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, hdr)
	if err != nil {
		t.Fatal(err)
	}
	w.VSync(0)
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()

	t.Run("bad magic", func(t *testing.T) {
		bad := bytes.Clone(raw)
		bad[0] ^= 0xff
		if _, err := NewReader(bytes.NewReader(bad)); err == nil {
			t.Error("want error for corrupt magic")
		}
	})
	t.Run("truncated header", func(t *testing.T) {
		if _, err := NewReader(bytes.NewReader(raw[:20])); err == nil {
			t.Error("want error for truncated header")
		}
	})
	t.Run("unknown event", func(t *testing.T) {
		bad := append(bytes.Clone(raw), 0xee)
		r, err := NewReader(bytes.NewReader(bad))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := r.Next(); err != nil {
			t.Fatal(err) // the valid vsync
		}
		if _, err := r.Next(); err == nil {
			t.Error("want error for unknown event kind")
		}
	})
}

func TestWriterRejectsBadHeader(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, Header{Freeze: make([]byte, 8)}); err == nil {
		t.Error("want error for short freeze blob")
	}
	hdr := testHeader(t)
	hdr.Priv = hdr.Priv[:16]
	if _, err := NewWriter(&buf, hdr); err == nil {
		t.Error("want error for short priv image")
	}
}

func TestScan(t *testing.T) {
	hdr := testHeader(t)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, hdr)
	if err != nil {
		t.Fatal(err)
	}
	w.Transfer(0, make([]byte, 16))
	w.Transfer(2, make([]byte, 48))
	w.VSync(0)
	w.VSync(1)
	w.VSync(0)
	w.ReadFIFO(256)
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	inf, err := Scan(r)
	if err != nil {
		t.Fatal(err)
	}
	want := Infos{CRC: 0xdeadbeef, Frames: 3, Transfers: 2, Bytes: 64, ReadFIFOs: 1}
	if diff := cmp.Diff(want, inf); diff != "" {
		t.Errorf("infos mismatch (-want +got):\n%s", diff)
	}

	var js bytes.Buffer
	if err := inf.WriteJSON(&js); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(js.Bytes(), []byte(`"frames":3`)) {
		t.Errorf("json output missing frame count: %s", js.String())
	}
}
