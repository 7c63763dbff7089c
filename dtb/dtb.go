// Package dtb decodes the fields of a flattened devicetree (FDT) blob
// that the kernel core consumes: cpu-count, reg, compatible, interrupts,
// #address-cells, #size-cells, riscv,ndev and clock-frequency (spec.md
// §1, §6). spec.md treats the full device-tree parser as an external
// collaborator and only names the consumption contract; this package is
// the supplemental implementation that contract needs to be runnable end
// to end (SPEC_FULL.md §12), grounded on
// original_source/src/boot/device_tree/{header,structure_block,node,
// property,parser}.rs's FDT header layout, structure-block token stream
// and property decoding — condensed into a single forward-only walk
// instead of the original's lazy iterator-of-iterators, since the core
// only ever needs one linear pass to answer a handful of fixed queries.
package dtb

import (
	"encoding/binary"
	"errors"
	"strings"
)

// Errors surfaced while decoding a blob, per spec.md §7's parser-error
// kinds.
var (
	ErrUnalignedAccess          = errors.New("dtb: unaligned access")
	ErrOutOfBoundsAccess        = errors.New("dtb: out of bounds access")
	ErrInvalidMagicValue        = errors.New("dtb: invalid magic value")
	ErrUnsupportedVersion       = errors.New("dtb: unsupported version")
	ErrInvalidStructureBlockTok = errors.New("dtb: invalid structure block token")
)

const (
	headerMagic             = 0xd00dfeed
	headerSupportedVersion  = 17
	headerSize              = 40
	tokenBeginNode    uint32 = 0x1
	tokenEndNode      uint32 = 0x2
	tokenProp         uint32 = 0x3
	tokenNop          uint32 = 0x4
	tokenEnd          uint32 = 0x9
)

// header mirrors original_source's FDTHeader: ten big-endian u32 fields.
type header struct {
	magic           uint32
	totalSize       uint32
	offDtStruct     uint32
	offDtStrings    uint32
	offMemRsvmap    uint32
	version         uint32
	lastCompVersion uint32
	bootCPUIDPhys   uint32
	sizeDtStrings   uint32
	sizeDtStruct    uint32
}

func parseHeader(blob []byte) (header, error) {
	if len(blob) < headerSize {
		return header{}, ErrOutOfBoundsAccess
	}
	be := binary.BigEndian
	h := header{
		magic:           be.Uint32(blob[0:4]),
		totalSize:       be.Uint32(blob[4:8]),
		offDtStruct:     be.Uint32(blob[8:12]),
		offDtStrings:    be.Uint32(blob[12:16]),
		offMemRsvmap:    be.Uint32(blob[16:20]),
		version:         be.Uint32(blob[20:24]),
		lastCompVersion: be.Uint32(blob[24:28]),
		bootCPUIDPhys:   be.Uint32(blob[28:32]),
		sizeDtStrings:   be.Uint32(blob[32:36]),
		sizeDtStruct:    be.Uint32(blob[36:40]),
	}
	if h.magic != headerMagic {
		return header{}, ErrInvalidMagicValue
	}
	if h.version != headerSupportedVersion {
		return header{}, ErrUnsupportedVersion
	}
	return h, nil
}

// Property is a single name/value pair attached to a node.
type Property struct {
	Name  string
	Value []byte
}

// AsU32 decodes the property value as a single big-endian 32-bit word.
func (p Property) AsU32() (uint32, bool) {
	if len(p.Value) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(p.Value), true
}

// AsU64 decodes the property value as a single big-endian 64-bit word.
func (p Property) AsU64() (uint64, bool) {
	if len(p.Value) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(p.Value), true
}

// AsStrings splits a NUL-separated stringlist property (e.g.
// "compatible").
func (p Property) AsStrings() []string {
	parts := strings.Split(strings.TrimRight(string(p.Value), "\x00"), "\x00")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Node is a devicetree node together with its decoded property set.
// Children are discovered by continuing the walk; Node itself only
// carries the properties attached directly to it, matching the core's
// consumption contract (no parent pointers are stored; ancestor
// #address-cells/#size-cells are threaded by the walker instead, per
// spec.md's "Cyclic references: none" design note).
type Node struct {
	Name       string
	Depth      int
	Properties []Property

	// inheritedAddressCells/inheritedSizeCells are the #address-cells/
	// #size-cells in effect in the parent node at the moment this node
	// was opened — exactly what governs decoding this node's own "reg"
	// property, per Section 2.3.5 of the devicetree specification.
	inheritedAddressCells uint32
	inheritedSizeCells    uint32
}

// Property looks up a property by name on n.
func (n Node) Property(name string) (Property, bool) {
	for _, p := range n.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Compatible reports whether n's "compatible" stringlist contains name.
func (n Node) Compatible(name string) bool {
	p, ok := n.Property("compatible")
	if !ok {
		return false
	}
	for _, s := range p.AsStrings() {
		if s == name {
			return true
		}
	}
	return false
}

// RegEntry is one decoded (address, length) pair from a "reg" property.
type RegEntry struct {
	Address uint64
	Length  uint64
}

// Reg decodes n's "reg" property into address/length pairs using
// addressCells/sizeCells inherited from the nearest ancestor that
// declares them (see Tree.AddressSizeCells).
func (n Node) Reg(addressCells, sizeCells uint32) ([]RegEntry, bool) {
	p, ok := n.Property("reg")
	if !ok {
		return nil, false
	}
	stride := int((addressCells + sizeCells) * 4)
	if stride == 0 || len(p.Value)%stride != 0 {
		return nil, false
	}
	var out []RegEntry
	for off := 0; off < len(p.Value); off += stride {
		entry := p.Value[off : off+stride]
		addr := beCells(entry[:addressCells*4])
		length := beCells(entry[addressCells*4:])
		out = append(out, RegEntry{Address: addr, Length: length})
	}
	return out, true
}

func beCells(b []byte) uint64 {
	var v uint64
	for i := 0; i < len(b); i += 4 {
		v = v<<32 | uint64(binary.BigEndian.Uint32(b[i:i+4]))
	}
	return v
}

// Tree is a fully-decoded devicetree: a flat list of nodes in document
// order (pre-order), each carrying its own properties and inherited
// address/size cell counts resolved at parse time.
type Tree struct {
	Nodes       []Node
	CPUCount    int
	RiscvNdev   uint32
	ClockFreqHz uint64
}

// defaultAddressCells/defaultSizeCells are the FDT spec's root defaults
// when a node has no explicit #address-cells/#size-cells of its own.
const (
	defaultAddressCells = 2
	defaultSizeCells    = 1
)

// Parse decodes blob into a Tree. blob must contain at least the FDT
// header and the structure/strings blocks it references.
func Parse(blob []byte) (*Tree, error) {
	h, err := parseHeader(blob)
	if err != nil {
		return nil, err
	}
	if uint32(len(blob)) < h.totalSize {
		return nil, ErrOutOfBoundsAccess
	}
	structBlock := blob[h.offDtStruct : h.offDtStruct+h.sizeDtStruct]
	stringsBlock := blob[h.offDtStrings : h.offDtStrings+h.sizeDtStrings]

	t := &Tree{}
	type frame struct {
		addressCells uint32
		sizeCells    uint32
	}
	stack := []frame{{addressCells: defaultAddressCells, sizeCells: defaultSizeCells}}

	off := 0
	var cur *Node
	for off < len(structBlock) {
		if off%4 != 0 {
			return nil, ErrUnalignedAccess
		}
		if off+4 > len(structBlock) {
			return nil, ErrOutOfBoundsAccess
		}
		tok := binary.BigEndian.Uint32(structBlock[off : off+4])
		off += 4
		switch tok {
		case tokenBeginNode:
			name, n, err := readCString(structBlock, off)
			if err != nil {
				return nil, err
			}
			off = align4(off + n)
			if name == "" {
				name = "/"
			}
			parent := stack[len(stack)-1]
			t.Nodes = append(t.Nodes, Node{
				Name:                  name,
				Depth:                 len(stack),
				inheritedAddressCells: parent.addressCells,
				inheritedSizeCells:    parent.sizeCells,
			})
			cur = &t.Nodes[len(t.Nodes)-1]
			stack = append(stack, frame{addressCells: parent.addressCells, sizeCells: parent.sizeCells})

		case tokenEndNode:
			if len(stack) <= 1 {
				return nil, ErrInvalidStructureBlockTok
			}
			stack = stack[:len(stack)-1]
			cur = nil

		case tokenProp:
			if off+8 > len(structBlock) {
				return nil, ErrOutOfBoundsAccess
			}
			length := binary.BigEndian.Uint32(structBlock[off : off+4])
			nameOff := binary.BigEndian.Uint32(structBlock[off+4 : off+8])
			off += 8
			if int(nameOff) >= len(stringsBlock) {
				return nil, ErrOutOfBoundsAccess
			}
			name, _, err := readCString(stringsBlock, int(nameOff))
			if err != nil {
				return nil, err
			}
			if off+int(length) > len(structBlock) {
				return nil, ErrOutOfBoundsAccess
			}
			value := structBlock[off : off+int(length)]
			off = align4(off + int(length))

			if cur == nil {
				return nil, ErrInvalidStructureBlockTok
			}
			cur.Properties = append(cur.Properties, Property{Name: name, Value: value})

			switch name {
			case "#address-cells":
				if v, ok := (Property{Value: value}).AsU32(); ok {
					stack[len(stack)-1].addressCells = v
				}
			case "#size-cells":
				if v, ok := (Property{Value: value}).AsU32(); ok {
					stack[len(stack)-1].sizeCells = v
				}
			case "riscv,ndev":
				if v, ok := (Property{Value: value}).AsU32(); ok {
					t.RiscvNdev = v
				}
			case "clock-frequency":
				if v, ok := (Property{Value: value}).AsU32(); ok {
					t.ClockFreqHz = uint64(v)
				} else if v, ok := (Property{Value: value}).AsU64(); ok {
					t.ClockFreqHz = v
				}
			}

		case tokenNop:
			// ignored

		case tokenEnd:
			off = len(structBlock)

		default:
			return nil, ErrInvalidStructureBlockTok
		}
	}

	for _, n := range t.Nodes {
		if strings.HasPrefix(n.Name, "cpu@") {
			t.CPUCount++
		}
	}

	return t, nil
}

func align4(off int) int { return (off + 3) &^ 3 }

func readCString(b []byte, off int) (string, int, error) {
	end := off
	for end < len(b) && b[end] != 0 {
		end++
	}
	if end >= len(b) {
		return "", 0, ErrOutOfBoundsAccess
	}
	return string(b[off:end]), end - off + 1, nil
}

// NodeByCompatible returns the first node in document order whose
// "compatible" property lists name.
func (t *Tree) NodeByCompatible(name string) (Node, bool) {
	for _, n := range t.Nodes {
		if n.Compatible(name) {
			return n, true
		}
	}
	return Node{}, false
}

// AddressSizeCells returns the #address-cells/#size-cells that govern
// node's own "reg" property: the values in effect in node's parent
// (declared by the parent or its nearest declaring ancestor, or the FDT
// defaults if none declares them), captured when the node was parsed.
func (t *Tree) AddressSizeCells(node Node) (uint32, uint32) {
	return node.inheritedAddressCells, node.inheritedSizeCells
}
