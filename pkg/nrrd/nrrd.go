// Package nrrd reads and writes 3D NRRD volumes with attached data.
//
// Supported: NRRD0001..NRRD0005 headers, dimension 3, types uchar/ushort/short/float,
// raw and gzip encodings, little and big endian.
package nrrd

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Type is a sample type.
type Type int

const (
	Uint8 Type = iota
	Uint16
	Int16
	Float32
)

// Size returns the sample size in bytes.
func (t Type) Size() int {
	switch t {
	case Uint16, Int16:
		return 2
	case Float32:
		return 4
	default:
		return 1
	}
}

func (t Type) String() string {
	switch t {
	case Uint16:
		return "ushort"
	case Int16:
		return "short"
	case Float32:
		return "float"
	default:
		return "uchar"
	}
}

// Volume is a decoded NRRD volume. Samples are stored x-fastest.
type Volume struct {
	Sizes  [3]int
	Type   Type
	Origin [3]float64 // "space origin", zero when absent
	Data   []float32
}

// At returns the sample at (x, y, z).
func (v *Volume) At(x, y, z int) float32 {
	return v.Data[(z*v.Sizes[1]+y)*v.Sizes[0]+x]
}

// Read decodes a NRRD stream.
func Read(r io.Reader) (*Volume, error) {
	br := bufio.NewReader(r)

	magic, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	magic = strings.TrimSpace(magic)
	if !strings.HasPrefix(magic, "NRRD000") {
		return nil, fmt.Errorf("not a NRRD file (magic %q)", magic)
	}

	fields := make(map[string]string)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		// key:=value lines are key/value pairs, not fields
		if strings.Contains(line, ":=") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	v := &Volume{}
	if v.Type, err = parseType(fields["type"]); err != nil {
		return nil, err
	}
	if dim := fields["dimension"]; dim != "3" {
		return nil, fmt.Errorf("unsupported dimension %q", dim)
	}
	if _, detached := fields["data file"]; detached {
		return nil, fmt.Errorf("detached data files are not supported")
	}

	sizes := strings.Fields(fields["sizes"])
	if len(sizes) != 3 {
		return nil, fmt.Errorf("expected 3 sizes, got %q", fields["sizes"])
	}
	for i, s := range sizes {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid size %q", s)
		}
		v.Sizes[i] = n
	}

	if origin, ok := fields["space origin"]; ok {
		if v.Origin, err = parseVector(origin); err != nil {
			return nil, err
		}
	}

	var order binary.ByteOrder = binary.LittleEndian
	switch fields["endian"] {
	case "", "little":
	case "big":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("unsupported endian %q", fields["endian"])
	}

	var body io.Reader = br
	switch fields["encoding"] {
	case "raw":
	case "gzip", "gz":
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip body: %w", err)
		}
		defer zr.Close()
		body = zr
	default:
		return nil, fmt.Errorf("unsupported encoding %q", fields["encoding"])
	}

	count := v.Sizes[0] * v.Sizes[1] * v.Sizes[2]
	raw := make([]byte, count*v.Type.Size())
	if _, err := io.ReadFull(body, raw); err != nil {
		return nil, fmt.Errorf("reading %d samples: %w", count, err)
	}

	v.Data = make([]float32, count)
	for i := range v.Data {
		switch v.Type {
		case Uint8:
			v.Data[i] = float32(raw[i])
		case Uint16:
			v.Data[i] = float32(order.Uint16(raw[i*2:]))
		case Int16:
			v.Data[i] = float32(int16(order.Uint16(raw[i*2:])))
		case Float32:
			v.Data[i] = math.Float32frombits(order.Uint32(raw[i*4:]))
		}
	}
	return v, nil
}

// Write encodes v as a little-endian NRRD stream. gzipBody selects gzip encoding.
func Write(w io.Writer, v *Volume, gzipBody bool) error {
	count := v.Sizes[0] * v.Sizes[1] * v.Sizes[2]
	if len(v.Data) != count {
		return fmt.Errorf("data length %d does not match sizes %v", len(v.Data), v.Sizes)
	}

	encoding := "raw"
	if gzipBody {
		encoding = "gzip"
	}

	var hdr bytes.Buffer
	hdr.WriteString("NRRD0004\n")
	fmt.Fprintf(&hdr, "type: %s\n", v.Type)
	hdr.WriteString("dimension: 3\n")
	fmt.Fprintf(&hdr, "sizes: %d %d %d\n", v.Sizes[0], v.Sizes[1], v.Sizes[2])
	fmt.Fprintf(&hdr, "space origin: (%g,%g,%g)\n", v.Origin[0], v.Origin[1], v.Origin[2])
	hdr.WriteString("endian: little\n")
	fmt.Fprintf(&hdr, "encoding: %s\n\n", encoding)
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}

	raw := make([]byte, count*v.Type.Size())
	for i, s := range v.Data {
		switch v.Type {
		case Uint8:
			raw[i] = uint8(s)
		case Uint16:
			binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
		case Int16:
			binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(s)))
		case Float32:
			binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
		}
	}

	if !gzipBody {
		_, err := w.Write(raw)
		return err
	}
	zw := gzip.NewWriter(w)
	if _, err := zw.Write(raw); err != nil {
		return err
	}
	return zw.Close()
}

func parseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "uchar", "unsigned char", "uint8", "uint8_t":
		return Uint8, nil
	case "ushort", "unsigned short", "unsigned short int", "uint16", "uint16_t":
		return Uint16, nil
	case "short", "short int", "signed short", "int16", "int16_t":
		return Int16, nil
	case "float":
		return Float32, nil
	}
	return 0, fmt.Errorf("unsupported type %q", s)
}

// parseVector parses "(x,y,z)".
func parseVector(s string) ([3]float64, error) {
	var out [3]float64
	parts := strings.Split(strings.Trim(s, "() "), ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("invalid vector %q", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, fmt.Errorf("invalid vector %q: %w", s, err)
		}
		out[i] = f
	}
	return out, nil
}
