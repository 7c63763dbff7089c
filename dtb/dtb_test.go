package dtb

import (
	"encoding/binary"
	"testing"
)

// buildBlob assembles a minimal, valid FDT blob by hand: a root node with
// #address-cells=2/#size-cells=1, two cpu children (cpu@0, cpu@1), and a
// "soc" child with #address-cells=2/#size-cells=2 whose plic@c000000
// child carries compatible, reg and riscv,ndev properties. Good enough to
// exercise Parse's token walk without needing a real devicetree compiler.
func buildBlob(t *testing.T) []byte {
	t.Helper()
	be := binary.BigEndian

	var strs []byte
	nameOffset := map[string]uint32{}
	intern := func(name string) uint32 {
		if off, ok := nameOffset[name]; ok {
			return off
		}
		off := uint32(len(strs))
		strs = append(strs, append([]byte(name), 0)...)
		nameOffset[name] = off
		return off
	}

	var sb []byte
	putU32 := func(v uint32) { sb = append(sb, 0, 0, 0, 0); be.PutUint32(sb[len(sb)-4:], v) }
	putToken := func(tok uint32) { putU32(tok) }
	putCString := func(s string) {
		sb = append(sb, append([]byte(s), 0)...)
		for len(sb)%4 != 0 {
			sb = append(sb, 0)
		}
	}
	putProp := func(name string, value []byte) {
		putToken(tokenProp)
		putU32(uint32(len(value)))
		putU32(intern(name))
		sb = append(sb, value...)
		for len(sb)%4 != 0 {
			sb = append(sb, 0)
		}
	}
	beU32 := func(v uint32) []byte {
		b := make([]byte, 4)
		be.PutUint32(b, v)
		return b
	}
	beU64 := func(v uint64) []byte {
		b := make([]byte, 8)
		be.PutUint64(b, v)
		return b
	}

	putToken(tokenBeginNode)
	putCString("") // root
	putProp("#address-cells", beU32(2))
	putProp("#size-cells", beU32(1))

	putToken(tokenBeginNode)
	putCString("cpu@0")
	putProp("device_type", []byte("cpu\x00"))
	putToken(tokenEndNode)

	putToken(tokenBeginNode)
	putCString("cpu@1")
	putToken(tokenEndNode)

	putToken(tokenBeginNode)
	putCString("soc")
	putProp("#address-cells", beU32(2))
	putProp("#size-cells", beU32(2))

	putToken(tokenBeginNode)
	putCString("plic@c000000")
	putProp("compatible", []byte("sifive,plic-1.0.0\x00"))
	reg := append(append([]byte{}, beU64(0xc000000)...), beU64(0x600000)...)
	putProp("reg", reg)
	putProp("riscv,ndev", beU32(31))
	putToken(tokenEndNode)

	putToken(tokenEndNode) // soc
	putToken(tokenEndNode) // root
	putToken(tokenEnd)

	const headerLen = headerSize
	structOff := uint32(headerLen)
	structLen := uint32(len(sb))
	stringsOff := structOff + structLen
	stringsLen := uint32(len(strs))
	total := stringsOff + stringsLen

	blob := make([]byte, total)
	be.PutUint32(blob[0:4], headerMagic)
	be.PutUint32(blob[4:8], total)
	be.PutUint32(blob[8:12], structOff)
	be.PutUint32(blob[12:16], stringsOff)
	be.PutUint32(blob[16:20], headerLen) // off_mem_rsvmap, unused by Parse
	be.PutUint32(blob[20:24], headerSupportedVersion)
	be.PutUint32(blob[24:28], headerSupportedVersion)
	be.PutUint32(blob[28:32], 0) // boot_cpuid_phys
	be.PutUint32(blob[32:36], stringsLen)
	be.PutUint32(blob[36:40], structLen)
	copy(blob[structOff:], sb)
	copy(blob[stringsOff:], strs)
	return blob
}

func TestParseCountsCPUs(t *testing.T) {
	tree, err := Parse(buildBlob(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tree.CPUCount != 2 {
		t.Fatalf("CPUCount = %d, want 2", tree.CPUCount)
	}
}

func TestParseCompatibleAndReg(t *testing.T) {
	tree, err := Parse(buildBlob(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	node, ok := tree.NodeByCompatible("sifive,plic-1.0.0")
	if !ok {
		t.Fatal("plic node not found")
	}
	addressCells, sizeCells := tree.AddressSizeCells(node)
	regs, ok := node.Reg(addressCells, sizeCells)
	if !ok || len(regs) != 1 {
		t.Fatalf("Reg() = %v, %v", regs, ok)
	}
	if regs[0].Address != 0xc000000 || regs[0].Length != 0x600000 {
		t.Fatalf("unexpected reg entry %+v", regs[0])
	}
	if ndev, ok := node.Property("riscv,ndev"); !ok {
		t.Fatal("riscv,ndev missing")
	} else if v, ok := ndev.AsU32(); !ok || v != 31 {
		t.Fatalf("riscv,ndev = %v, %v", v, ok)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	blob := buildBlob(t)
	blob[0] = 0
	if _, err := Parse(blob); err != ErrInvalidMagicValue {
		t.Fatalf("Parse: err = %v, want ErrInvalidMagicValue", err)
	}
}
