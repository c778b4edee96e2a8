package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV finalizes buffered 16-bit LE PCM chunks into a single
// mono WAV payload. Zero chunks yield a valid, minimal container:
// empty recordings are still submittable.
func EncodeWAV(chunks [][]byte, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, errors.New("invalid sample rate")
	}

	var total int
	for _, c := range chunks {
		total += len(c)
	}

	data := make([]int, 0, total/2)
	for _, c := range chunks {
		for i := 0; i+1 < len(c); i += 2 {
			data = append(data, int(int16(binary.LittleEndian.Uint16(c[i:]))))
		}
	}

	buf := &seekBuffer{}
	enc := wav.NewEncoder(buf, sampleRate, 16, 1, 1)

	if len(data) > 0 {
		err := enc.Write(&gaudio.IntBuffer{
			Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           data,
			SourceBitDepth: 16,
		})
		if err != nil {
			return nil, fmt.Errorf("write samples: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize container: %w", err)
	}

	return buf.Bytes(), nil
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks
// back to patch chunk sizes into the header.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = b.pos + int(offset)
	case io.SeekEnd:
		next = len(b.data) + int(offset)
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	b.pos = next
	return int64(next), nil
}

func (b *seekBuffer) Bytes() []byte { return b.data }
