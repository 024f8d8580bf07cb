package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	plyMagic = "ply"
	// Upper bound on declared element counts, so a corrupt header cannot
	// trigger a huge allocation.
	plyMaxElements = 1 << 28
	// Zeroth-order spherical harmonic constant used by Gaussian splat files
	// to store base color in f_dc_*.
	shC0 = 0.28209479177387814
)

type plyFormat int

const (
	plyASCII plyFormat = iota
	plyBinaryLE
	plyBinaryBE
)

type plyType struct {
	name  string
	size  int
	float bool
	sign  bool
}

var plyTypes = map[string]plyType{
	"char":    {"int8", 1, false, true},
	"int8":    {"int8", 1, false, true},
	"uchar":   {"uint8", 1, false, false},
	"uint8":   {"uint8", 1, false, false},
	"short":   {"int16", 2, false, true},
	"int16":   {"int16", 2, false, true},
	"ushort":  {"uint16", 2, false, false},
	"uint16":  {"uint16", 2, false, false},
	"int":     {"int32", 4, false, true},
	"int32":   {"int32", 4, false, true},
	"uint":    {"uint32", 4, false, false},
	"uint32":  {"uint32", 4, false, false},
	"float":   {"float32", 4, true, true},
	"float32": {"float32", 4, true, true},
	"double":  {"float64", 8, true, true},
	"float64": {"float64", 8, true, true},
}

type plyProperty struct {
	name      string
	typ       plyType
	list      bool
	countType plyType
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format   plyFormat
	elements []plyElement
}

// DecodePLY reads the vertex element of a PLY file. ASCII and both binary
// encodings are supported. Colors come from red/green/blue properties when
// present, otherwise from Gaussian splat f_dc_0..2 coefficients.
func DecodePLY(r io.Reader) (RawPointCloud, error) {
	br := bufio.NewReader(r)
	header, err := readPLYHeader(br)
	if err != nil {
		return RawPointCloud{}, err
	}

	var values plyValueReader
	switch header.format {
	case plyASCII:
		values = newPLYASCIIReader(br)
	case plyBinaryLE:
		values = &plyBinaryReader{r: br, order: binary.LittleEndian}
	case plyBinaryBE:
		values = &plyBinaryReader{r: br, order: binary.BigEndian}
	}

	for _, el := range header.elements {
		if el.name != "vertex" {
			if err := skipPLYElement(values, el); err != nil {
				return RawPointCloud{}, err
			}
			continue
		}
		return readPLYVertices(values, el)
	}
	return RawPointCloud{}, fmt.Errorf("%w: ply has no vertex element", ErrInvalidAsset)
}

func readPLYHeader(br *bufio.Reader) (plyHeader, error) {
	var h plyHeader

	line, err := readHeaderLine(br)
	if err != nil || line != plyMagic {
		return h, fmt.Errorf("%w: not a ply file", ErrInvalidAsset)
	}

	formatSeen := false
	for {
		line, err := readHeaderLine(br)
		if err != nil {
			return h, fmt.Errorf("%w: truncated ply header: %v", ErrInvalidAsset, err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return h, fmt.Errorf("%w: malformed format line %q", ErrInvalidAsset, line)
			}
			switch fields[1] {
			case "ascii":
				h.format = plyASCII
			case "binary_little_endian":
				h.format = plyBinaryLE
			case "binary_big_endian":
				h.format = plyBinaryBE
			default:
				return h, fmt.Errorf("%w: ply format %q", ErrUnsupportedFormat, fields[1])
			}
			formatSeen = true
		case "comment", "obj_info":
		case "element":
			if len(fields) != 3 {
				return h, fmt.Errorf("%w: malformed element line %q", ErrInvalidAsset, line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 || count > plyMaxElements {
				return h, fmt.Errorf("%w: bad element count %q", ErrInvalidAsset, fields[2])
			}
			h.elements = append(h.elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(h.elements) == 0 {
				return h, fmt.Errorf("%w: property before element", ErrInvalidAsset)
			}
			prop, err := parsePLYProperty(fields)
			if err != nil {
				return h, err
			}
			el := &h.elements[len(h.elements)-1]
			el.props = append(el.props, prop)
		case "end_header":
			if !formatSeen {
				return h, fmt.Errorf("%w: ply header has no format line", ErrInvalidAsset)
			}
			return h, nil
		default:
			return h, fmt.Errorf("%w: unknown ply header keyword %q", ErrInvalidAsset, fields[0])
		}
	}
}

func parsePLYProperty(fields []string) (plyProperty, error) {
	if len(fields) == 5 && fields[1] == "list" {
		ct, ok1 := plyTypes[fields[2]]
		it, ok2 := plyTypes[fields[3]]
		if !ok1 || !ok2 || ct.float {
			return plyProperty{}, fmt.Errorf("%w: bad list property %q", ErrInvalidAsset, strings.Join(fields, " "))
		}
		return plyProperty{name: fields[4], typ: it, list: true, countType: ct}, nil
	}
	if len(fields) != 3 {
		return plyProperty{}, fmt.Errorf("%w: malformed property %q", ErrInvalidAsset, strings.Join(fields, " "))
	}
	t, ok := plyTypes[fields[1]]
	if !ok {
		return plyProperty{}, fmt.Errorf("%w: unknown property type %q", ErrInvalidAsset, fields[1])
	}
	return plyProperty{name: fields[2], typ: t}, nil
}

func readHeaderLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func skipPLYElement(values plyValueReader, el plyElement) error {
	for i := 0; i < el.count; i++ {
		for _, p := range el.props {
			if _, err := readPLYProperty(values, p); err != nil {
				return fmt.Errorf("%w: element %s[%d]: %v", ErrInvalidAsset, el.name, i, err)
			}
		}
	}
	return nil
}

// readPLYProperty returns the scalar value, or the item count for lists
// (whose items are consumed and dropped).
func readPLYProperty(values plyValueReader, p plyProperty) (float64, error) {
	if !p.list {
		return values.next(p.typ)
	}
	n, err := values.next(p.countType)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > plyMaxElements {
		return 0, fmt.Errorf("bad list length %v", n)
	}
	for k := 0; k < int(n); k++ {
		if _, err := values.next(p.typ); err != nil {
			return 0, err
		}
	}
	return n, nil
}

type vertexLayout struct {
	x, y, z       int
	r, g, b       int
	dc0, dc1, dc2 int
}

func newVertexLayout(el plyElement) vertexLayout {
	l := vertexLayout{-1, -1, -1, -1, -1, -1, -1, -1, -1}
	for i, p := range el.props {
		if p.list {
			continue
		}
		switch p.name {
		case "x":
			l.x = i
		case "y":
			l.y = i
		case "z":
			l.z = i
		case "red", "r", "diffuse_red":
			l.r = i
		case "green", "g", "diffuse_green":
			l.g = i
		case "blue", "b", "diffuse_blue":
			l.b = i
		case "f_dc_0":
			l.dc0 = i
		case "f_dc_1":
			l.dc1 = i
		case "f_dc_2":
			l.dc2 = i
		}
	}
	return l
}

func (l vertexLayout) hasRGB() bool { return l.r >= 0 && l.g >= 0 && l.b >= 0 }
func (l vertexLayout) hasDC() bool  { return l.dc0 >= 0 && l.dc1 >= 0 && l.dc2 >= 0 }

func readPLYVertices(values plyValueReader, el plyElement) (RawPointCloud, error) {
	layout := newVertexLayout(el)
	if layout.x < 0 || layout.y < 0 || layout.z < 0 {
		return RawPointCloud{}, fmt.Errorf("%w: vertex element lacks x/y/z", ErrInvalidAsset)
	}
	withColor := layout.hasRGB() || layout.hasDC()

	capHint := min(el.count, 1<<20)
	cloud := RawPointCloud{Positions: make([]mgl64.Vec3, 0, capHint)}
	if withColor {
		cloud.Colors = make([]mgl64.Vec3, 0, capHint)
	}

	row := make([]float64, len(el.props))
	for i := 0; i < el.count; i++ {
		for j, p := range el.props {
			v, err := readPLYProperty(values, p)
			if err != nil {
				return RawPointCloud{}, fmt.Errorf("%w: vertex %d: %v", ErrInvalidAsset, i, err)
			}
			row[j] = v
		}
		cloud.Positions = append(cloud.Positions, mgl64.Vec3{row[layout.x], row[layout.y], row[layout.z]})

		switch {
		case layout.hasRGB():
			cloud.Colors = append(cloud.Colors, mgl64.Vec3{
				colorChannel(row[layout.r], el.props[layout.r].typ),
				colorChannel(row[layout.g], el.props[layout.g].typ),
				colorChannel(row[layout.b], el.props[layout.b].typ),
			})
		case layout.hasDC():
			cloud.Colors = append(cloud.Colors, mgl64.Vec3{
				mgl64.Clamp(0.5+shC0*row[layout.dc0], 0, 1),
				mgl64.Clamp(0.5+shC0*row[layout.dc1], 0, 1),
				mgl64.Clamp(0.5+shC0*row[layout.dc2], 0, 1),
			})
		}
	}
	return cloud, nil
}

func colorChannel(v float64, t plyType) float64 {
	if t.float {
		return mgl64.Clamp(v, 0, 1)
	}
	maxV := math.Pow(2, float64(8*t.size)) - 1
	if t.sign {
		maxV = math.Pow(2, float64(8*t.size-1)) - 1
	}
	return mgl64.Clamp(v/maxV, 0, 1)
}

type plyValueReader interface {
	next(t plyType) (float64, error)
}

type plyASCIIReader struct {
	sc *bufio.Scanner
}

func newPLYASCIIReader(r io.Reader) *plyASCIIReader {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	return &plyASCIIReader{sc: sc}
}

func (a *plyASCIIReader) next(t plyType) (float64, error) {
	if !a.sc.Scan() {
		if err := a.sc.Err(); err != nil {
			return 0, err
		}
		return 0, io.ErrUnexpectedEOF
	}
	tok := a.sc.Text()
	if t.float {
		return strconv.ParseFloat(tok, 64)
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(v), nil
}

type plyBinaryReader struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [8]byte
}

func (b *plyBinaryReader) next(t plyType) (float64, error) {
	buf := b.buf[:t.size]
	if _, err := io.ReadFull(b.r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	switch t.name {
	case "int8":
		return float64(int8(buf[0])), nil
	case "uint8":
		return float64(buf[0]), nil
	case "int16":
		return float64(int16(b.order.Uint16(buf))), nil
	case "uint16":
		return float64(b.order.Uint16(buf)), nil
	case "int32":
		return float64(int32(b.order.Uint32(buf))), nil
	case "uint32":
		return float64(b.order.Uint32(buf)), nil
	case "float32":
		return float64(math.Float32frombits(b.order.Uint32(buf))), nil
	case "float64":
		return math.Float64frombits(b.order.Uint64(buf)), nil
	}
	return 0, fmt.Errorf("unknown ply type %s", t.name)
}
