package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	mu sync.Mutex

	bufMu   sync.Mutex
	pending []byte
	marks   []playbackMark
}

// playbackMark fires its callback once every byte enqueued before it
// has been handed to the device.
type playbackMark struct {
	offset   int
	callback func()
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = uint32(sampleRate)
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = uint32(sampleRate / 10) // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	c.ClearBuffer()
	return nil
}

// Enqueue appends raw PCM to the playback buffer. It never blocks on
// the device draining.
func (c *playbackClient) Enqueue(pcm []byte) error {
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.pending = append(c.pending, pcm...)
	return nil
}

// AwaitDrain blocks until everything enqueued so far has been handed
// to the device, or the context is cancelled. On cancellation the
// buffer is cleared so no stale audio keeps playing.
func (c *playbackClient) AwaitDrain(ctx context.Context) error {
	done := make(chan struct{})

	c.bufMu.Lock()
	if len(c.pending) == 0 {
		c.bufMu.Unlock()
		return nil
	}
	c.marks = append(c.marks, playbackMark{
		offset:   len(c.pending),
		callback: func() { close(done) },
	})
	c.bufMu.Unlock()

	select {
	case <-ctx.Done():
		c.ClearBuffer()
		return ctx.Err()
	case <-done:
		return nil
	}
}

// ClearBuffer drops all pending audio and releases every waiter.
func (c *playbackClient) ClearBuffer() {
	c.bufMu.Lock()
	marks := c.marks
	c.pending = nil
	c.marks = nil
	c.bufMu.Unlock()

	for _, mark := range marks {
		mark.callback()
	}
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.bufMu.Lock()
		n := copy(pOutput, c.pending)
		c.pending = c.pending[n:]

		var fired []playbackMark
		remaining := c.marks[:0]
		for _, mark := range c.marks {
			mark.offset -= n
			if mark.offset <= 0 {
				fired = append(fired, mark)
			} else {
				remaining = append(remaining, mark)
			}
		}
		c.marks = remaining
		c.bufMu.Unlock()

		if n < need {
			for i := n; i < need; i++ {
				pOutput[i] = 0
			}
		}

		if len(fired) > 0 {
			go func() {
				for _, mark := range fired {
					mark.callback()
				}
			}()
		}
	}
}
