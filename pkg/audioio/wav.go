package audioio

import (
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// EncodeWAV wraps raw PCM16 little-endian bytes with a 44-byte RIFF header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	dataLen := len(pcm)
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2

	header := make([]byte, wavHeaderSize)

	// RIFF chunk descriptor
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	// fmt sub-chunk
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)                 // sub-chunk size (16 for PCM)
	binary.LittleEndian.PutUint16(header[20:22], 1)                  // audio format (1 = PCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))   // channels
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(header[34:36], 16)                 // bits per sample

	// data sub-chunk
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return append(header, pcm...)
}

// DecodeWAV extracts the PCM16 payload and format from a RIFF/WAVE
// byte stream. Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(data []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(data) < wavHeaderSize {
		return nil, 0, 0, fmt.Errorf("wav too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("not a RIFF/WAVE stream")
	}

	pos := 12
	haveFmt := false
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("wav fmt chunk too short: %d bytes", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, 0, fmt.Errorf("unsupported wav format %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return nil, 0, 0, fmt.Errorf("unsupported bit depth %d (want 16)", bits)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, 0, fmt.Errorf("wav data chunk before fmt chunk")
			}
			return data[body : body+size], sampleRate, channels, nil
		}

		// Chunks are word-aligned.
		if size%2 == 1 {
			size++
		}
		pos = body + size
	}

	return nil, 0, 0, fmt.Errorf("wav data chunk not found")
}

// IsWAV reports whether the payload starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}
