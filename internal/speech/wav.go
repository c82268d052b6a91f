package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV errors.
var (
	ErrWAVTooShort   = errors.New("wav data too short")
	ErrNotWAV        = errors.New("not a valid WAV file")
	ErrNoDataChunk   = errors.New("data chunk not found in WAV")
	ErrNoFormatChunk = errors.New("fmt chunk not found in WAV")
)

// WAVFormat is the subset of the fmt chunk the player and the assessors
// care about.
type WAVFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// EncodeWAV wraps raw little-endian PCM in a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte, f WAVFormat) []byte {
	blockAlign := f.Channels * f.BitsPerSample / 8
	byteRate := f.SampleRate * blockAlign

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// ParseWAV walks the RIFF chunks and returns the format and the PCM
// payload. The payload aliases wav.
func ParseWAV(wav []byte) (WAVFormat, []byte, error) {
	var f WAVFormat
	if len(wav) < 44 {
		return f, nil, ErrWAVTooShort
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return f, nil, ErrNotWAV
	}

	haveFormat := false
	pos := 12
	for pos+8 <= len(wav) {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		start := pos + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || start+16 > len(wav) {
				return f, nil, fmt.Errorf("fmt chunk of %d bytes: %w", chunkSize, ErrNotWAV)
			}
			f.Channels = int(binary.LittleEndian.Uint16(wav[start+2 : start+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(wav[start+4 : start+8]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(wav[start+14 : start+16]))
			haveFormat = true
		case "data":
			if !haveFormat {
				return f, nil, ErrNoFormatChunk
			}
			end := start + chunkSize
			// Streaming encoders write 0 or 0xFFFFFFFF when the length is unknown.
			if end > len(wav) || chunkSize == 0 {
				end = len(wav)
			}
			return f, wav[start:end], nil
		}

		pos = start + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}
	return f, nil, ErrNoDataChunk
}

// ExtractPCM strips the WAV/RIFF header and returns raw PCM data.
func ExtractPCM(wav []byte) ([]byte, error) {
	_, pcm, err := ParseWAV(wav)
	return pcm, err
}

// Samples decodes little-endian 16-bit PCM.
func Samples(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return out
}

// Duration returns the playback length of pcm in format f.
func (f WAVFormat) Duration(pcmBytes int) float64 {
	bytesPerSec := f.SampleRate * f.Channels * f.BitsPerSample / 8
	if bytesPerSec == 0 {
		return 0
	}
	return float64(pcmBytes) / float64(bytesPerSec)
}

// PlaybackFormat is the WAV format every Synthesizer produces.
var PlaybackFormat = WAVFormat{SampleRate: SampleRate, Channels: ChannelCount, BitsPerSample: BitDepth}

// CaptureFormat is the WAV format the recorder produces.
var CaptureFormat = WAVFormat{SampleRate: CaptureSampleRate, Channels: CaptureChannels, BitsPerSample: BitDepth}
