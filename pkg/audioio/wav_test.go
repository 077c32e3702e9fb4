package audioio

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := SamplesToBytes([]int16{100, -100, 2000, -2000})

	wav := EncodeWAV(pcm, 16000, 1)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("Expected %d bytes, got %d", 44+len(pcm), len(wav))
	}
	if !IsWAV(wav) {
		t.Error("IsWAV returned false for encoded stream")
	}

	got, rate, channels, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if channels != 1 {
		t.Errorf("Expected 1 channel, got %d", channels)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("PCM payload mismatch: got %v, want %v", got, pcm)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("RIFF")},
		{"not riff", bytes.Repeat([]byte{0}, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := DecodeWAV(tt.data); err == nil {
				t.Error("Expected error for invalid input")
			}
		})
	}

	if IsWAV([]byte("OggS")) {
		t.Error("IsWAV returned true for non-WAV payload")
	}
}

func TestDecodeWAV_SkipsExtraChunks(t *testing.T) {
	pcm := SamplesToBytes([]int16{1, 2, 3})
	wav := EncodeWAV(pcm, 22050, 2)

	// Splice a LIST chunk between fmt and data.
	list := append([]byte("LIST"), 4, 0, 0, 0, 'I', 'N', 'F', 'O')
	spliced := append([]byte{}, wav[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, wav[36:]...)

	got, rate, channels, err := DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if rate != 22050 || channels != 2 {
		t.Errorf("Format mismatch: rate=%d channels=%d", rate, channels)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("PCM payload mismatch after chunk skip")
	}
}
