package images

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var ErrUnknownFormat = errors.New("unrecognized image container")

// Dimensions reads pixel width and height straight out of the container bytes
// without decoding the image. Supported containers: JPEG, PNG, GIF, WebP.
func Dimensions(data []byte) (width, height int, err error) {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return jpegDimensions(data)
	case len(data) >= 24 && bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return pngDimensions(data)
	case len(data) >= 10 && bytes.HasPrefix(data, []byte("GIF")):
		return gifDimensions(data)
	case len(data) >= 30 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return webpDimensions(data)
	default:
		return 0, 0, ErrUnknownFormat
	}
}

// jpegDimensions walks the segment stream looking for a start-of-frame marker.
// Each non-frame segment declares its own length, so unknown segments are
// skipped rather than scanned byte by byte.
func jpegDimensions(data []byte) (int, int, error) {
	i := 2
	for i+9 < len(data) {
		if data[i] != 0xFF {
			i++
			continue
		}

		marker := data[i+1]
		// SOF0..SOF15 excluding DHT (C4), JPG (C8) and DAC (CC).
		if marker >= 0xC0 && marker <= 0xCF && marker != 0xC4 && marker != 0xC8 && marker != 0xCC {
			height := int(binary.BigEndian.Uint16(data[i+5 : i+7]))
			width := int(binary.BigEndian.Uint16(data[i+7 : i+9]))
			return width, height, nil
		}

		// Standalone markers carry no length field.
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			i += 2
			continue
		}

		if i+4 > len(data) {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if segLen < 2 {
			break
		}
		i += 2 + segLen
	}
	return 0, 0, errors.New("jpeg: no start-of-frame segment found")
}

// pngDimensions reads the IHDR width/height, which sit at fixed offsets right
// after the 8-byte signature and chunk header.
func pngDimensions(data []byte) (int, int, error) {
	width := int(binary.BigEndian.Uint32(data[16:20]))
	height := int(binary.BigEndian.Uint32(data[20:24]))
	if width == 0 || height == 0 {
		return 0, 0, errors.New("png: zero dimension in header")
	}
	return width, height, nil
}

func gifDimensions(data []byte) (int, int, error) {
	width := int(binary.LittleEndian.Uint16(data[6:8]))
	height := int(binary.LittleEndian.Uint16(data[8:10]))
	if width == 0 || height == 0 {
		return 0, 0, errors.New("gif: zero dimension in header")
	}
	return width, height, nil
}

// webpDimensions handles the lossy VP8 chunk, whose frame header stores width
// and height as 14-bit little-endian fields.
func webpDimensions(data []byte) (int, int, error) {
	if !bytes.Equal(data[12:16], []byte("VP8 ")) {
		return 0, 0, errors.New("webp: unsupported chunk variant")
	}
	width := int(binary.LittleEndian.Uint16(data[26:28])) & 0x3FFF
	height := int(binary.LittleEndian.Uint16(data[28:30])) & 0x3FFF
	if width == 0 || height == 0 {
		return 0, 0, errors.New("webp: zero dimension in frame header")
	}
	return width, height, nil
}
