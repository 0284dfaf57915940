package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

// GetDefaultEncodingInfo returns the encoding every capture path in
// this project uses: 16 kHz mono signed 16-bit little-endian.
func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	return 0
}

func (e EncodingInfo) BytesPerSecond() int {
	return e.SampleRate * e.Format.ByteSize()
}

// BytesFor returns the buffer size holding d of audio, rounded down to
// a whole sample.
func (e EncodingInfo) BytesFor(d time.Duration) int {
	n := int(d.Seconds() * float64(e.BytesPerSecond()))
	return n - n%e.Format.ByteSize()
}

// Duration returns the play time of n bytes of audio.
func (e EncodingInfo) Duration(n int) time.Duration {
	if e.IsZero() {
		return 0
	}
	return time.Duration(float64(n) / float64(e.BytesPerSecond()) * float64(time.Second))
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	}
	return -1
}

const EncodingLinear16 encodingFormat = "linear16"
