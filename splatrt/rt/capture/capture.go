package capture

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type Format int

const (
	FormatNone Format = iota
	FormatPNG
	FormatTIFF
	FormatBMP
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatTIFF:
		return "tiff"
	case FormatBMP:
		return "bmp"
	}
	return "none"
}

var ErrUnknownFormat = errors.New("unknown capture format")

// FormatFromPath picks the encoder from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return FormatPNG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "bmp":
		return FormatBMP, nil
	}
	return FormatNone, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Encode writes img to w in format f.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case FormatBMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// Save writes img to path, choosing the format from the extension.
func Save(path string, img image.Image) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create capture: %w", err)
	}
	bw := bufio.NewWriter(file)
	if err := Encode(bw, img, f); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// NextPath returns the first dir/prefix_N.ext that does not exist yet.
func NextPath(dir, prefix, ext string) string {
	for n := 0; ; n++ {
		p := filepath.Join(dir, fmt.Sprintf("%s_%d.%s", prefix, n, ext))
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return p
		}
	}
}
