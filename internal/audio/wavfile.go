// Package audio persists raw PCM capture as WAV files.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// Capture format accepted by the recognizer.
const (
	SampleRate = 16000
	Channels   = 1
	BitDepth   = 16
)

const wavAudioFormatPCM = 1

// ErrMisalignedPCM is returned when the payload is not a whole number of
// 16-bit samples.
var ErrMisalignedPCM = errors.New("pcm payload not aligned to 16-bit samples")

// WriteError reports a destination that could not be opened, written or
// finalized.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write wav %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// FileWriter writes frame sequences to WAV files and logs the outcome.
type FileWriter struct {
	log *slog.Logger
}

func NewFileWriter(log *slog.Logger) *FileWriter {
	return &FileWriter{log: log.With(slog.String("component", "wav-writer"))}
}

// Write concatenates frames in order and stores them at path as mono 16-bit
// 16 kHz PCM. An empty sequence yields a valid zero-length file.
func (w *FileWriter) Write(frames [][]byte, path string) error {
	if err := writeFile(frames, path); err != nil {
		w.log.Error("failed to save wav file", slog.String("path", path), slog.String("error", err.Error()))
		return err
	}
	w.log.Info("saved wav file", slog.String("path", path))
	return nil
}

// WriteFile is FileWriter.Write with the default logger.
func WriteFile(frames [][]byte, path string) error {
	return NewFileWriter(slog.Default()).Write(frames, path)
}

func writeFile(frames [][]byte, path string) (err error) {
	total := 0
	for _, frame := range frames {
		total += len(frame)
	}
	if total%2 != 0 {
		return fmt.Errorf("%w: %d bytes", ErrMisalignedPCM, total)
	}

	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           samplesFromFrames(frames, total/2),
		SourceBitDepth: BitDepth,
	}

	file, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = &WriteError{Path: path, Err: cerr}
		}
	}()

	enc := wav.NewEncoder(file, SampleRate, BitDepth, Channels, wavAudioFormatPCM)
	// Write runs even for an empty buffer so the header and data chunk are
	// emitted before Close patches the sizes.
	if err := enc.Write(buffer); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := enc.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// samplesFromFrames decodes little-endian int16 samples across frame
// boundaries, so a sample split between two frames is still read whole.
func samplesFromFrames(frames [][]byte, count int) []int {
	samples := make([]int, 0, count)
	var pending []byte
	for _, frame := range frames {
		if len(pending) == 1 && len(frame) > 0 {
			samples = append(samples, int(int16(binary.LittleEndian.Uint16([]byte{pending[0], frame[0]}))))
			frame = frame[1:]
			pending = nil
		}
		n := len(frame) &^ 1
		for i := 0; i < n; i += 2 {
			samples = append(samples, int(int16(binary.LittleEndian.Uint16(frame[i:]))))
		}
		if n < len(frame) {
			pending = frame[n:]
		}
	}
	return samples
}

// NewFileName returns asr-{date}@{hex}.wav for the given instant.
func NewFileName(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("asr-%s@%s.wav", now.Format(time.DateOnly), id)
}

// NewFilePath joins a fresh file name onto dir.
func NewFilePath(dir string, now time.Time) string {
	return filepath.Join(dir, NewFileName(now))
}

// Duration reports the playback length of a PCM payload in the capture
// format.
func Duration(pcmBytes int) time.Duration {
	samples := pcmBytes / (BitDepth / 8) / Channels
	return time.Duration(samples) * time.Second / SampleRate
}
