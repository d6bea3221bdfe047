// Package ply writes splats in the binary little-endian PLY layout read by
// common Gaussian splat tools.
package ply

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	RestCount    = 45
	RecordFloats = 62
	RecordSize   = RecordFloats * 4
)

// Record is one exported splat. Nor is non-zero when the splat is cut out
// by a cutout volume; such records are never written.
type Record struct {
	Pos     [3]float32
	Nor     [3]float32
	DC      [3]float32
	Rest    [RestCount]float32
	Opacity float32
	Scale   [3]float32
	Rot     [4]float32
}

func (r *Record) Cut() bool {
	return r.Nor != [3]float32{}
}

// PropertyNames lists the vertex properties in file order.
func PropertyNames() []string {
	names := make([]string, 0, RecordFloats)
	names = append(names, "x", "y", "z", "nx", "ny", "nz")
	for i := 0; i < 3; i++ {
		names = append(names, "f_dc_"+strconv.Itoa(i))
	}
	for i := 0; i < RestCount; i++ {
		names = append(names, "f_rest_"+strconv.Itoa(i))
	}
	names = append(names, "opacity")
	for i := 0; i < 3; i++ {
		names = append(names, "scale_"+strconv.Itoa(i))
	}
	for i := 0; i < 4; i++ {
		names = append(names, "rot_"+strconv.Itoa(i))
	}
	return names
}

// Header returns the ASCII header for count vertices. Lines end in LF only.
func Header(count int) string {
	var sb strings.Builder
	sb.WriteString("ply\n")
	sb.WriteString("format binary_little_endian 1.0\n")
	fmt.Fprintf(&sb, "element vertex %d\n", count)
	for _, n := range PropertyNames() {
		sb.WriteString("property float ")
		sb.WriteString(n)
		sb.WriteByte('\n')
	}
	sb.WriteString("end_header\n")
	return sb.String()
}

func (r *Record) floats(dst *[RecordFloats]float32) {
	o := 0
	put := func(v ...float32) {
		o += copy(dst[o:], v)
	}
	put(r.Pos[:]...)
	put(r.Nor[:]...)
	put(r.DC[:]...)
	put(r.Rest[:]...)
	put(r.Opacity)
	put(r.Scale[:]...)
	put(r.Rot[:]...)
}

// Write streams the records that keep accepts (all when keep is nil),
// skipping cut records, and returns how many were written. The header
// count matches the records written.
func Write(w io.Writer, recs []Record, keep func(i int) bool) (int, error) {
	n := 0
	for i := range recs {
		if (keep == nil || keep(i)) && !recs[i].Cut() {
			n++
		}
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header(n)); err != nil {
		return 0, fmt.Errorf("write ply header: %w", err)
	}
	var fl [RecordFloats]float32
	var buf [RecordSize]byte
	written := 0
	for i := range recs {
		if (keep != nil && !keep(i)) || recs[i].Cut() {
			continue
		}
		recs[i].floats(&fl)
		for k, f := range fl {
			binary.LittleEndian.PutUint32(buf[k*4:], math.Float32bits(f))
		}
		if _, err := bw.Write(buf[:]); err != nil {
			return written, fmt.Errorf("write ply record %d: %w", i, err)
		}
		written++
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("flush ply: %w", err)
	}
	return written, nil
}

var ErrBadHeader = errors.New("malformed ply header")

// ReadHeader parses a header written by Header and returns the vertex
// count and property names. r is left positioned at the first record.
func ReadHeader(r *bufio.Reader) (int, []string, error) {
	line := func() (string, error) {
		s, err := r.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
		return strings.TrimSuffix(s, "\n"), nil
	}
	magic, err := line()
	if err != nil {
		return 0, nil, err
	}
	if magic != "ply" {
		return 0, nil, fmt.Errorf("%w: magic %q", ErrBadHeader, magic)
	}
	count := -1
	var props []string
	for {
		l, err := line()
		if err != nil {
			return 0, nil, err
		}
		f := strings.Fields(l)
		switch {
		case l == "end_header":
			if count < 0 {
				return 0, nil, fmt.Errorf("%w: no vertex element", ErrBadHeader)
			}
			return count, props, nil
		case len(f) == 3 && f[0] == "element" && f[1] == "vertex":
			count, err = strconv.Atoi(f[2])
			if err != nil {
				return 0, nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
			}
		case len(f) == 3 && f[0] == "property":
			props = append(props, f[2])
		case len(f) > 0 && f[0] == "format":
			if l != "format binary_little_endian 1.0" {
				return 0, nil, fmt.Errorf("%w: %s", ErrBadHeader, l)
			}
		}
	}
}
