// Package imaging pins pipeline output to the print contract: lossless PNG
// encoding with no compression and a 300 DPI density tag. All functions are
// pure over byte slices.
package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"math"

	_ "image/gif"
	_ "image/jpeg"
)

// PrintDPI is the resolution density stamped on every final artifact.
const PrintDPI = 300

// Stdlib PNG encoding drops ancillary chunks, so density is carried in a pHYs
// chunk written by hand. pHYs expresses pixels per meter.
const metersPerInch = 0.0254

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Meta describes the verified properties of an encoded image.
type Meta struct {
	Width  int
	Height int
	Format string
	DPI    int
}

// Normalize re-encodes an image as lossless PNG with no compression and pins
// its density metadata to PrintDPI. Source format follows whatever the
// collaborators emit (png, jpeg, gif); pixel content and aspect ratio are
// untouched. The output is byte-deterministic: normalizing an
// already-normalized image reproduces it exactly.
func Normalize(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode image: %w", err)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}

	return setDensity(buf.Bytes(), PrintDPI)
}

// ReadMeta parses an encoded PNG's dimensions and density without decoding
// pixel data. Images without a pHYs chunk report 72 DPI, the conventional
// screen default.
func ReadMeta(data []byte) (Meta, error) {
	if len(data) < len(pngSignature)+25 || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return Meta{}, errors.New("imaging: not a png")
	}

	meta := Meta{Format: "png", DPI: 72}
	offset := len(pngSignature)
	for offset+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[offset:]))
		ctype := string(data[offset+4 : offset+8])
		body := offset + 8
		if body+length+4 > len(data) {
			return Meta{}, errors.New("imaging: truncated png chunk")
		}
		switch ctype {
		case "IHDR":
			if length < 8 {
				return Meta{}, errors.New("imaging: malformed IHDR")
			}
			meta.Width = int(binary.BigEndian.Uint32(data[body:]))
			meta.Height = int(binary.BigEndian.Uint32(data[body+4:]))
		case "pHYs":
			if length >= 9 && data[body+8] == 1 {
				ppm := binary.BigEndian.Uint32(data[body:])
				meta.DPI = int(math.Round(float64(ppm) * metersPerInch))
			}
		case "IEND":
			return meta, nil
		}
		offset = body + length + 4
	}
	return meta, nil
}

// setDensity inserts a pHYs chunk directly after IHDR. The input must come
// from the stdlib encoder, which never writes pHYs itself.
func setDensity(data []byte, dpi int) ([]byte, error) {
	if len(data) < len(pngSignature)+25 || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return nil, errors.New("imaging: not a png")
	}
	// IHDR is mandatory and always first: 4 length + 4 type + 13 data + 4 crc.
	ihdrEnd := len(pngSignature) + 25

	ppm := uint32(math.Round(float64(dpi) / metersPerInch))
	chunk := make([]byte, 21)
	binary.BigEndian.PutUint32(chunk[0:], 9)
	copy(chunk[4:], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:], ppm)
	binary.BigEndian.PutUint32(chunk[12:], ppm)
	chunk[16] = 1 // unit: meter
	binary.BigEndian.PutUint32(chunk[17:], crc32.ChecksumIEEE(chunk[4:17]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	out = append(out, data[ihdrEnd:]...)
	return out, nil
}
