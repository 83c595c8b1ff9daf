package images

import (
	"encoding/binary"
	"testing"
)

func makeJPEG(width, height int) []byte {
	data := []byte{0xFF, 0xD8}
	// APP0 segment the scanner must skip by its declared length.
	data = append(data, 0xFF, 0xE0, 0x00, 0x06, 'J', 'F', 'I', 'F')
	// SOF0 segment.
	sof := []byte{0xFF, 0xC0, 0x00, 0x11, 0x08, 0, 0, 0, 0}
	binary.BigEndian.PutUint16(sof[5:7], uint16(height))
	binary.BigEndian.PutUint16(sof[7:9], uint16(width))
	data = append(data, sof...)
	return append(data, make([]byte, 16)...)
}

func makePNG(width, height int) []byte {
	data := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
	dims := make([]byte, 8)
	binary.BigEndian.PutUint32(dims[0:4], uint32(width))
	binary.BigEndian.PutUint32(dims[4:8], uint32(height))
	return append(data, dims...)
}

func makeGIF(width, height int) []byte {
	data := []byte("GIF89a")
	dims := make([]byte, 4)
	binary.LittleEndian.PutUint16(dims[0:2], uint16(width))
	binary.LittleEndian.PutUint16(dims[2:4], uint16(height))
	return append(data, dims...)
}

func makeWebP(width, height int) []byte {
	data := []byte("RIFF\x00\x00\x00\x00WEBPVP8 \x00\x00\x00\x00")
	data = append(data, 0x00, 0x00, 0x00)       // frame tag
	data = append(data, 0x9D, 0x01, 0x2A)       // keyframe start code
	dims := make([]byte, 4)
	binary.LittleEndian.PutUint16(dims[0:2], uint16(width))
	binary.LittleEndian.PutUint16(dims[2:4], uint16(height))
	return append(data, dims...)
}

func TestDimensions(t *testing.T) {
	cases := []struct {
		name          string
		data          []byte
		width, height int
	}{
		{"jpeg", makeJPEG(1920, 1080), 1920, 1080},
		{"png", makePNG(800, 600), 800, 600},
		{"gif", makeGIF(640, 480), 640, 480},
		{"webp", makeWebP(1024, 768), 1024, 768},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, err := Dimensions(tc.data)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if w != tc.width || h != tc.height {
				t.Fatalf("got %dx%d, want %dx%d", w, h, tc.width, tc.height)
			}
		})
	}
}

func TestDimensionsUnknownFormat(t *testing.T) {
	if _, _, err := Dimensions([]byte("not an image at all")); err == nil {
		t.Fatal("expected error for unrecognized container")
	}
}

func TestJPEGSkipsSegmentsWithoutFrame(t *testing.T) {
	// EXIF-style payload full of segments but no SOF marker.
	data := []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x04, 0x00, 0x00, 0xFF, 0xD9}
	if _, _, err := Dimensions(data); err == nil {
		t.Fatal("expected error when no start-of-frame segment exists")
	}
}

func TestWebPMasksTo14Bits(t *testing.T) {
	data := makeWebP(0, 0)
	// Set both dimension fields with junk in the upper two bits.
	binary.LittleEndian.PutUint16(data[26:28], 0x3FFF|0xC000)
	binary.LittleEndian.PutUint16(data[28:30], 700|0x4000)

	w, h, err := Dimensions(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if w != 0x3FFF || h != 700 {
		t.Fatalf("mask not applied, got %dx%d", w, h)
	}
}
