package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/lkovac/narrator/core/audio"
)

// frameBacklog bounds how many captured frames may sit unconsumed
// before the device callback starts dropping.
const frameBacklog = 32

type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	mu sync.Mutex

	framesMu  sync.Mutex
	frames    chan []byte
	ctxCancel chan struct{}
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = sampleRate
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = 480
	c.config.Periods = 3

	c.audioContext = audioContext

	var err error
	c.device, err = malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}

			c.framesMu.Lock()
			frames := c.frames
			c.framesMu.Unlock()
			if frames == nil {
				return
			}

			frame := make([]byte, n)
			copy(frame, pInput[:n])
			select {
			case frames <- frame:
			default: // consumer fell behind, drop the frame
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

func (c *captureClient) Start(ctx context.Context) (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil, fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil, fmt.Errorf("capture already started")
	}

	frames := make(chan []byte, frameBacklog)
	cancelWatch := make(chan struct{})

	c.framesMu.Lock()
	c.frames = frames
	c.ctxCancel = cancelWatch
	c.framesMu.Unlock()

	if err := c.device.Start(); err != nil {
		c.framesMu.Lock()
		c.frames = nil
		c.ctxCancel = nil
		c.framesMu.Unlock()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-cancelWatch:
		}
	}()

	return frames, nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return nil
	}

	// Stopping the device joins the audio thread, so no data callback
	// can be running once it returns and the channel is safe to close.
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}

	c.framesMu.Lock()
	if c.frames != nil {
		close(c.frames)
		c.frames = nil
	}
	if c.ctxCancel != nil {
		close(c.ctxCancel)
		c.ctxCancel = nil
	}
	c.framesMu.Unlock()

	return nil
}

func (c *captureClient) Uninit() error {
	_ = c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	return nil
}
