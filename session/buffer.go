package session

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrBufferFull is returned when an append would exceed the buffer limit
var ErrBufferFull = errors.New("audio buffer full")

// pcmBytesPerSecond is 16kHz 16-bit mono, the Live API input format
const pcmBytesPerSecond = 16000 * 2

// AudioBuffer holds browser microphone PCM until the client ends its turn
type AudioBuffer struct {
	mu      sync.Mutex
	data    bytes.Buffer
	appends int
	maxSize int
}

func NewAudioBuffer(maxSize int) *AudioBuffer {
	return &AudioBuffer{maxSize: maxSize}
}

func (ab *AudioBuffer) MaxSize() int {
	return ab.maxSize
}

// Append copies chunk into the buffer. Nothing is written when the chunk
// does not fit.
func (ab *AudioBuffer) Append(chunk []byte) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if ab.data.Len()+len(chunk) > ab.maxSize {
		return ErrBufferFull
	}
	ab.data.Write(chunk)
	ab.appends++
	return nil
}

// Take returns the buffered audio and the number of appends that produced
// it, leaving the buffer empty. data is nil when nothing was buffered.
func (ab *AudioBuffer) Take() (data []byte, appends int) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if ab.data.Len() == 0 {
		return nil, 0
	}
	data = bytes.Clone(ab.data.Bytes())
	appends = ab.appends
	ab.data.Reset()
	ab.appends = 0
	return data, appends
}

func (ab *AudioBuffer) Clear() {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.data.Reset()
	ab.appends = 0
}

func (ab *AudioBuffer) Size() int {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return ab.data.Len()
}

// Duration is the playback length of the buffered PCM.
func (ab *AudioBuffer) Duration() time.Duration {
	return PCMDuration(ab.Size())
}

// PCMDuration converts a 16kHz 16-bit mono byte count to playback time.
func PCMDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / pcmBytesPerSecond
}
