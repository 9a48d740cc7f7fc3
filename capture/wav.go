package capture

import (
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV wraps raw 16-bit little-endian PCM in a WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels uint32) (*Clip, error) {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8))
	}

	buf := &wavBuffer{}
	enc := wav.NewEncoder(buf, int(sampleRate), 16, int(channels), 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: int(channels),
			SampleRate:  int(sampleRate),
		},
		Data:           samples,
		SourceBitDepth: 16,
	}); err != nil {
		return nil, fmt.Errorf("wav encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav finalize: %w", err)
	}

	frames := len(samples) / int(channels)
	duration := time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))

	return &Clip{
		Data:     buf.Bytes(),
		MimeType: "audio/wav",
		Duration: duration,
	}, nil
}

// wavBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type wavBuffer struct {
	buf []byte
	pos int
}

func (w *wavBuffer) Bytes() []byte { return w.buf }

func (w *wavBuffer) Write(p []byte) (int, error) {
	if need := w.pos + len(p); need > len(w.buf) {
		if need > cap(w.buf) {
			grown := make([]byte, need, need*2)
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:need]
		}
	}
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
	return len(p), nil
}

func (w *wavBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(w.pos) + offset
	case io.SeekEnd:
		pos = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("wav buffer: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("wav buffer: negative seek position %d", pos)
	}
	w.pos = int(pos)
	return pos, nil
}
