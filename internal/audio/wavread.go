package audio

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Info describes the format declared by a WAV header.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	PCMBytes   int64
}

// ReadInfo reads the header and locates the data chunk of a WAV file.
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Info{}, fmt.Errorf("invalid wav file %s", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("locate pcm chunk: %w", err)
	}
	return Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		PCMBytes:   dec.PCMLen(),
	}, nil
}

// ReadPCM decodes a mono 16-bit 16 kHz WAV file back into little-endian PCM
// bytes suitable for a frame sequence.
func ReadPCM(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if int(dec.SampleRate) != SampleRate || int(dec.NumChans) != Channels || int(dec.BitDepth) != BitDepth {
		return nil, fmt.Errorf("unsupported wav format %d Hz/%d ch/%d bit, want %d Hz/%d ch/%d bit",
			dec.SampleRate, dec.NumChans, dec.BitDepth, SampleRate, Channels, BitDepth)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return pcm, nil
}
