package deepgram

import (
	"fmt"

	"github.com/lkovac/narrator/core/audio"
)

type wireEncoding struct {
	sampleRate int
	format     string
}

func convertEncoding(encoding audio.EncodingInfo) (wireEncoding, error) {
	wire := wireEncoding{}
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
		wire.sampleRate = encoding.SampleRate
	default:
		return wireEncoding{}, fmt.Errorf("unsupported sample rate")
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		wire.format = "linear16"
	default:
		return wireEncoding{}, fmt.Errorf("unsupported encoding")
	}
	return wire, nil
}
