package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: 0x40, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeSetsPrintDensity(t *testing.T) {
	src := encodeTestPNG(t, 40, 25)

	out, err := Normalize(src)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	meta, err := ReadMeta(out)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.Width != 40 || meta.Height != 25 {
		t.Fatalf("dimensions changed: %dx%d", meta.Width, meta.Height)
	}
	if meta.Format != "png" {
		t.Fatalf("format = %q", meta.Format)
	}
	if meta.DPI != PrintDPI {
		t.Fatalf("dpi = %d, want %d", meta.DPI, PrintDPI)
	}
}

func TestNormalizePreservesPixels(t *testing.T) {
	src := encodeTestPNG(t, 16, 16)

	out, err := Normalize(src)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want, err := png.Decode(bytes.NewReader(src))
	if err != nil {
		t.Fatalf("decode source: %v", err)
	}
	got, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode normalized: %v", err)
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			wr, wg, wb, wa := want.At(x, y).RGBA()
			gr, gg, gb, ga := got.At(x, y).RGBA()
			if wr != gr || wg != gg || wb != gb || wa != ga {
				t.Fatalf("pixel (%d,%d) changed", x, y)
			}
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	src := encodeTestPNG(t, 32, 20)

	once, err := Normalize(src)
	if err != nil {
		t.Fatalf("first Normalize: %v", err)
	}
	twice, err := Normalize(once)
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}
	if !bytes.Equal(once, twice) {
		t.Fatal("normalization is not byte-stable across runs")
	}

	m1, _ := ReadMeta(once)
	m2, _ := ReadMeta(twice)
	if m1 != m2 {
		t.Fatalf("metadata drifted: %+v vs %+v", m1, m2)
	}
}

func TestNormalizeAcceptsJPEGSource(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 24, 18))
	for y := 0; y < 18; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 9), G: uint8(y * 13), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}

	out, err := Normalize(buf.Bytes())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	meta, err := ReadMeta(out)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.Format != "png" || meta.DPI != PrintDPI {
		t.Fatalf("meta = %+v, want %d dpi png", meta, PrintDPI)
	}
	if meta.Width != 24 || meta.Height != 18 {
		t.Fatalf("dimensions changed: %dx%d", meta.Width, meta.Height)
	}
}

func TestReadMetaDefaultsTo72DPI(t *testing.T) {
	src := encodeTestPNG(t, 8, 8)
	meta, err := ReadMeta(src)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.DPI != 72 {
		t.Fatalf("dpi = %d, want 72 for untagged png", meta.DPI)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	if _, err := Normalize([]byte("definitely not a png")); err == nil {
		t.Fatal("expected error for non-png input")
	}
	if _, err := ReadMeta([]byte{0x89, 0x50}); err == nil {
		t.Fatal("expected error for truncated input")
	}
}
