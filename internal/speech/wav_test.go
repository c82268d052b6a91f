package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	wav := EncodeWAV(pcm, CaptureFormat)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	f, got, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if f != CaptureFormat {
		t.Fatalf("format = %+v, want %+v", f, CaptureFormat)
	}
	if !bytes.Equal(got, pcm) {
		t.Fatalf("pcm = %v, want %v", got, pcm)
	}
}

func TestParseWAVSkipsUnknownChunks(t *testing.T) {
	base := EncodeWAV([]byte{9, 9}, PlaybackFormat)

	// Insert an odd-sized LIST chunk (with pad byte) between fmt and data.
	var b bytes.Buffer
	b.Write(base[:36])
	b.WriteString("LIST")
	_ = binary.Write(&b, binary.LittleEndian, uint32(3))
	b.Write([]byte{'a', 'b', 'c', 0})
	b.Write(base[36:])

	_, pcm, err := ParseWAV(b.Bytes())
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if !bytes.Equal(pcm, []byte{9, 9}) {
		t.Fatalf("pcm = %v", pcm)
	}
}

func TestParseWAVErrors(t *testing.T) {
	valid := EncodeWAV(make([]byte, 4), PlaybackFormat)

	notRiff := append([]byte(nil), valid...)
	copy(notRiff, "RIFX")

	noData := append([]byte(nil), valid...)
	copy(noData[36:], "junk")

	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"short", []byte("RIFF"), ErrWAVTooShort},
		{"not riff", notRiff, ErrNotWAV},
		{"no data", noData, ErrNoDataChunk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseWAV(tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSamplesAndDuration(t *testing.T) {
	got := Samples([]byte{0xff, 0x7f, 0x00, 0x80, 0x01})
	if len(got) != 2 || got[0] != 32767 || got[1] != -32768 {
		t.Fatalf("Samples = %v", got)
	}
	if d := CaptureFormat.Duration(32000); d != 1 {
		t.Fatalf("Duration = %v, want 1s", d)
	}
}
