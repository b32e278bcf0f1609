package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Sentinel errors for expected decode failures
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyAudio        = errors.New("audio contains no samples")
)

// DecodeError reports audio bytes that could not be turned into samples.
type DecodeError struct {
	Format string // "mp3", "wav", "flac", "vorbis", "ffmpeg"
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// resampleQuality is beep's interpolation quality (1-64); 4 is its recommended default.
const resampleQuality = 4

// Sniff identifies the container from its leading bytes.
// Returns an empty string when the format is not handled in-process.
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "vorbis"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG frame sync without an ID3 header
		return "mp3"
	}
	return ""
}

// Decode turns encoded audio bytes into interleaved stereo int16 PCM at 48kHz.
// MP3, WAV, FLAC and Ogg Vorbis are decoded in-process; anything else is
// handed to FFmpeg. Failures are always returned as *DecodeError.
func Decode(data []byte) ([]int16, error) {
	format := Sniff(data)
	if len(data) == 0 {
		return nil, &DecodeError{Format: "unknown", Err: ErrEmptyAudio}
	}

	var samples []int16
	var err error
	if format == "" {
		format = "ffmpeg"
		samples, err = decodeFFmpeg(data)
	} else {
		samples, err = decodeBeep(format, data)
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	if len(samples) == 0 {
		return nil, &DecodeError{Format: format, Err: ErrEmptyAudio}
	}
	return samples, nil
}

// DecodeFile reads and decodes an audio file from disk.
func DecodeFile(path string) ([]int16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(data)
}

func decodeBeep(format string, data []byte) ([]int16, error) {
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch format {
	case "mp3":
		s, f, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case "wav":
		s, f, err = wav.Decode(bytes.NewReader(data))
	case "flac":
		s, f, err = flac.Decode(bytes.NewReader(data))
	case "vorbis":
		s, f, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	defer s.Close()

	hint := s.Len()
	var streamer beep.Streamer = s
	if f.SampleRate != SampleRate {
		streamer = beep.Resample(resampleQuality, f.SampleRate, beep.SampleRate(SampleRate), s)
		if f.SampleRate > 0 {
			hint = int(int64(hint) * SampleRate / int64(f.SampleRate))
		}
	}
	return drain(streamer, hint)
}

// drain pulls every frame out of a beep streamer as interleaved int16.
// Mono sources arrive from beep already duplicated to both channels.
func drain(s beep.Streamer, hint int) ([]int16, error) {
	if hint < 0 {
		hint = 0
	}
	out := make([]int16, 0, hint*Channels)
	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, floatToInt16(frame[0]), floatToInt16(frame[1]))
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func floatToInt16(v float64) int16 {
	if v >= 1 {
		return 32767
	}
	if v <= -1 {
		return -32768
	}
	return int16(v * 32767)
}

// decodeFFmpeg runs FFmpeg over stdin to decode containers beep can't read.
func decodeFFmpeg(data []byte) ([]int16, error) {
	cmd := exec.Command("ffmpeg",
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: ffmpeg not installed", ErrUnsupportedFormat)
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	// Ensure even byte count for int16 alignment
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}

	samples := make([]int16, len(out)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[i*2 : i*2+2]))
	}

	return samples, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
