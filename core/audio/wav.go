package audio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps raw mono PCM in a RIFF/WAVE container so it can be
// handed to tools that refuse bare sample streams.
func EncodeWAV(pcm []byte, encoding EncodingInfo) []byte {
	byteSize := encoding.Format.ByteSize()
	buf := bytes.Buffer{}
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(encoding.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(encoding.BytesPerSecond()))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(byteSize))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(8*byteSize))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
