package toolchain

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"kiln/internal/platform"
)

// Sound codecs written into the encoded header.
const (
	SoundCodecPCM16LE uint8 = 1
	SoundCodecPCM16BE uint8 = 2
	SoundCodecADPCM   uint8 = 3
)

// SoundHeaderSize is the size of the header BuiltinSoundEncoder prepends:
// codec u8, channels u8, sample rate u32, frames u32, in target byte order.
const SoundHeaderSize = 10

const streamChunk = 4096

// BuiltinSoundEncoder decodes WAV input and writes 16-bit PCM for pc and
// xenon, and IMA ADPCM for ps3.
type BuiltinSoundEncoder struct{}

func (BuiltinSoundEncoder) Encode(ctx context.Context, raw []byte, target platform.ID) ([]byte, error) {
	samples, format, err := decodeWAV(ctx, raw)
	if err != nil {
		return nil, err
	}
	channels := format.NumChannels
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("sound encode: unsupported channel count %d", channels)
	}
	order := target.ByteOrder()
	codec := SoundCodecPCM16LE
	switch target {
	case platform.Xenon:
		codec = SoundCodecPCM16BE
	case platform.PS3:
		codec = SoundCodecADPCM
	}

	out := make([]byte, 0, SoundHeaderSize+len(samples)*channels*2)
	out = append(out, codec, uint8(channels))
	out = appendU32(out, order, uint32(format.SampleRate))
	out = appendU32(out, order, uint32(len(samples)))

	switch codec {
	case SoundCodecPCM16LE:
		pcm := beep.Format{SampleRate: format.SampleRate, NumChannels: channels, Precision: 2}
		buf := make([]byte, channels*2)
		for _, frame := range samples {
			n := pcm.EncodeSigned(buf, frame)
			out = append(out, buf[:n]...)
		}
	case SoundCodecPCM16BE:
		for _, frame := range samples {
			for ch := 0; ch < channels; ch++ {
				out = appendU16(out, order, uint16(toPCM16(frame[ch])))
			}
		}
	case SoundCodecADPCM:
		for ch := 0; ch < channels; ch++ {
			pcm := make([]int16, len(samples))
			for i, frame := range samples {
				pcm[i] = toPCM16(frame[ch])
			}
			out = appendADPCM(out, order, pcm)
		}
	}
	return out, nil
}

func decodeWAV(ctx context.Context, raw []byte) ([][2]float64, beep.Format, error) {
	stream, format, err := wav.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode wav: %w", err)
	}
	defer stream.Close()

	var samples [][2]float64
	buf := make([][2]float64, streamChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, beep.Format{}, err
		}
		n, ok := stream.Stream(buf)
		samples = append(samples, buf[:n]...)
		if !ok || n < len(buf) {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode wav: %w", err)
	}
	return samples, format, nil
}

func toPCM16(sample float64) int16 {
	sample = math.Max(-1, math.Min(1, sample))
	return int16(math.Round(sample * math.MaxInt16))
}

var adpcmIndexTable = [16]int{-1, -1, -1, -1, 2, 4, 6, 8, -1, -1, -1, -1, 2, 4, 6, 8}

var adpcmStepTable = [89]int{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143, 157, 173, 190, 209, 230,
	253, 279, 307, 337, 371, 408, 449, 494, 544, 598, 658, 724, 796, 876, 963,
	1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024, 3327,
	3660, 4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442,
	11487, 12635, 13899, 15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794,
	32767,
}

// appendADPCM writes one channel block: initial predictor i16, step index
// u8, a reserved byte, then 4-bit codes packed low nibble first.
func appendADPCM(out []byte, order binary.ByteOrder, pcm []int16) []byte {
	predictor, index := 0, 0
	if len(pcm) > 0 {
		predictor = int(pcm[0])
	}
	out = appendU16(out, order, uint16(int16(predictor)))
	out = append(out, uint8(index), 0)

	var packed byte
	for i, sample := range pcm {
		step := adpcmStepTable[index]
		diff := int(sample) - predictor
		var code byte
		if diff < 0 {
			code = 8
			diff = -diff
		}
		delta := step >> 3
		if diff >= step {
			code |= 4
			diff -= step
			delta += step
		}
		if diff >= step>>1 {
			code |= 2
			diff -= step >> 1
			delta += step >> 1
		}
		if diff >= step>>2 {
			code |= 1
			delta += step >> 2
		}
		if code&8 != 0 {
			predictor -= delta
		} else {
			predictor += delta
		}
		predictor = min(math.MaxInt16, max(math.MinInt16, predictor))
		index = min(len(adpcmStepTable)-1, max(0, index+adpcmIndexTable[code]))

		if i%2 == 0 {
			packed = code
		} else {
			out = append(out, packed|code<<4)
		}
	}
	if len(pcm)%2 == 1 {
		out = append(out, packed)
	}
	return out
}

func appendU16(out []byte, order binary.ByteOrder, v uint16) []byte {
	var b [2]byte
	order.PutUint16(b[:], v)
	return append(out, b[:]...)
}

func appendU32(out []byte, order binary.ByteOrder, v uint32) []byte {
	var b [4]byte
	order.PutUint32(b[:], v)
	return append(out, b[:]...)
}
