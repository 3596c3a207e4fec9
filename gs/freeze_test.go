package gs

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// busyState drives a state into a non-trivial configuration: registers,
// both contexts, a half-open tag, latched transfer settings, queued
// vertices and dirty local memory.
func busyState(t *testing.T) (*State, Priv) {
	t.Helper()
	s := NewState(NewVRAM())
	priv := NewPriv(nil)
	priv.SetReg(regsPMODE, 0x23)
	priv.SetReg(regsDISPFB1, 0x1234)

	var pkt []byte
	pkt = adTag(pkt, 8, false) // tag left unfinished on purpose
	pkt = ad(pkt, addrFRAME_1, 0x08|4<<16)
	pkt = ad(pkt, addrSCISSOR_2, 0x7f<<16|0x7f<<48)
	pkt = ad(pkt, addrPRIM, uint64(PrimTriangle)|1<<3)
	pkt = ad(pkt, addrRGBAQ, 0x80402010)
	pkt = ad(pkt, addrXYZ2, xyzReg(4<<4, 4<<4, 99)) // one queued vertex
	pkt = ad(pkt, addrBITBLTBUF, 0x20|1<<16)
	s.Transfer(Path3, pkt)

	v := s.vram.View(0, 64, PSMCT32)
	v.SetPixel(5, 5, 0xfeedface, 0xffffffff)
	return s, priv
}

func TestFreezeSizeExact(t *testing.T) {
	s, priv := busyState(t)
	blob := s.Freeze(priv)
	if len(blob) != FreezeSize() {
		t.Errorf("blob is %d bytes, FreezeSize says %d", len(blob), FreezeSize())
	}
}

func TestFreezeDefrostRoundTrip(t *testing.T) {
	s, priv := busyState(t)
	blob := s.Freeze(priv)

	fresh := NewState(NewVRAM())
	freshPriv := NewPriv(nil)
	if err := fresh.Defrost(freshPriv, blob); err != nil {
		t.Fatalf("defrost: %v", err)
	}

	if !bytes.Equal(priv.Mem(), freshPriv.Mem()) {
		t.Error("privileged registers diverge")
	}
	if !bytes.Equal(s.vram.Data(), fresh.vram.Data()) {
		t.Error("local memory diverges")
	}
	if diff := cmp.Diff(s.raw, fresh.raw); diff != "" {
		t.Errorf("register file diverges:\n%s", diff)
	}
	if diff := cmp.Diff(s.ctx, fresh.ctx); diff != "" {
		t.Errorf("contexts diverge:\n%s", diff)
	}

	// A bit-identical second freeze proves nothing was lost in flight.
	if !bytes.Equal(blob, fresh.Freeze(freshPriv)) {
		t.Error("refreeze is not bit-identical")
	}

	// The restored state must continue the interrupted tag seamlessly.
	var tail []byte
	for range 2 {
		tail = ad(tail, addrFOGCOL, 0x334455)
	}
	fresh.Transfer(Path3, tail)
	if got := fresh.Reg(addrFOGCOL); got != 0x334455 {
		t.Errorf("resumed tag did not decode: FOGCOL=%#x", got)
	}
}

func TestDefrostRejectsCorruptBlobs(t *testing.T) {
	s, priv := busyState(t)
	blob := s.Freeze(priv)

	fresh := NewState(NewVRAM())
	sentinel := fresh.Reg(addrFRAME_1)

	bad := append([]byte(nil), blob...)
	bad[0] ^= 0xff
	if err := fresh.Defrost(NewPriv(nil), bad); err == nil {
		t.Error("bad magic accepted")
	}

	bad = append([]byte(nil), blob...)
	bad[4] = 0xee
	if err := fresh.Defrost(NewPriv(nil), bad); err == nil {
		t.Error("bad version accepted")
	}

	if err := fresh.Defrost(NewPriv(nil), blob[:len(blob)-1]); err == nil {
		t.Error("truncated blob accepted")
	}
	if err := fresh.Defrost(NewPriv(nil), nil); err == nil {
		t.Error("nil blob accepted")
	}

	if fresh.Reg(addrFRAME_1) != sentinel {
		t.Error("failed defrost mutated state")
	}
}
