package voice

import (
	"encoding/binary"
	"math"
)

// silenceFloorDB anchors the confidence scale. Frames at or below this
// RMS level count as certain silence, full scale counts as certain
// speech.
const silenceFloorDB = 60.0

const smoothWindow = 4

// Confidence maps the RMS level of a little-endian 16-bit PCM frame
// onto [0, 1].
func Confidence(pcm []byte) float64 {
	sampleCount := len(pcm) / 2
	if sampleCount == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < sampleCount*2; i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0
		sum += sample * sample
	}
	rms := math.Sqrt(sum / float64(sampleCount))
	if rms == 0 {
		return 0
	}

	db := 20 * math.Log10(rms)
	confidence := (db + silenceFloorDB) / silenceFloorDB
	return min(max(confidence, 0), 1)
}

// Detector classifies fixed-size frames as speech or silence against a
// confidence threshold, smoothing over a short window so single-frame
// spikes and dips do not flip the decision.
type Detector struct {
	threshold float64
	win       []bool
}

func NewDetector(threshold float64) *Detector {
	return &Detector{threshold: threshold}
}

func (d *Detector) IsSpeech(frame []byte) bool {
	d.win = append(d.win, Confidence(frame) >= d.threshold)
	if len(d.win) > smoothWindow {
		d.win = d.win[len(d.win)-smoothWindow:]
	}

	trueCount := 0
	for _, speech := range d.win {
		if speech {
			trueCount++
		}
	}
	return trueCount*2 >= len(d.win)
}

// Reset clears the smoothing window between sessions.
func (d *Detector) Reset() {
	d.win = d.win[:0]
}
