// Package miniaudio provides microphone capture and raw PCM playback
// on top of the miniaudio library (through malgo). It is the default
// audio backend.
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/lkovac/narrator/core/audio"
)

var (
	_ audio.Capturer = (*Client)(nil)
	_ audio.Player   = (*Client)(nil)
)

type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is
	// an ownership thing
	audioContext *malgo.AllocatedContext

	playbackClient
	captureClient

	playbackSampleRate int
	withPlayback       bool
}

type ClientOption func(*Client)

// WithPlayback initializes the playback device at the given sample
// rate (speech engines that stream raw PCM need one; capture-only
// deployments can skip it).
func WithPlayback(sampleRate int) ClientOption {
	return func(c *Client) {
		c.withPlayback = true
		c.playbackSampleRate = sampleRate
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{
		audioContext: audioCtx,
	}
	for _, opt := range opts {
		opt(&client)
	}

	if client.withPlayback {
		if err := client.playbackClient.Init(audioCtx, client.playbackSampleRate); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to initialize playback client: %w", err)
		}
		if err := client.playbackClient.Start(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start playback device: %w", err)
		}
	}

	if err := client.captureClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) StartCapture(ctx context.Context) (<-chan []byte, error) {
	return c.captureClient.Start(ctx)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	if c.withPlayback {
		_ = c.playbackClient.Uninit()
	}
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
