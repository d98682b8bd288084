package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))           
	binary.Write(buf, binary.LittleEndian, uint16(1))            
	binary.Write(buf, binary.LittleEndian, uint16(1))            
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))   
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) 
	binary.Write(buf, binary.LittleEndian, uint16(2))            
	binary.Write(buf, binary.LittleEndian, uint16(16))           


	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodedWav is a parsed PCM WAV file's format header plus its raw sample
// bytes, used by devclient to stream a file to the server as though it were
// a live microphone.
type DecodedWav struct {
	SampleRate int
	Channels   int
	BitDepth   int
	PCM        []byte
}

// DecodeWav parses a canonical PCM WAV container (the "fmt " and "data"
// chunks NewWavBuffer writes), skipping any other chunk it encounters.
func DecodeWav(r io.Reader) (DecodedWav, error) {
	var riffHeader [12]byte
	if _, err := io.ReadFull(r, riffHeader[:]); err != nil {
		return DecodedWav{}, fmt.Errorf("reading RIFF header: %w", err)
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return DecodedWav{}, fmt.Errorf("not a RIFF/WAVE file")
	}

	var out DecodedWav
	var sawFmt bool

	for {
		var chunkID [4]byte
		var chunkSize uint32
		if _, err := io.ReadFull(r, chunkID[:]); err != nil {
			if err == io.EOF {
				break
			}
			return DecodedWav{}, fmt.Errorf("reading chunk id: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return DecodedWav{}, fmt.Errorf("reading chunk size: %w", err)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return DecodedWav{}, fmt.Errorf("reading fmt chunk: %w", err)
			}
			br := bytes.NewReader(body)
			var audioFormat, numChannels uint16
			var sampleRate, byteRate uint32
			var blockAlign, bitsPerSample uint16
			binary.Read(br, binary.LittleEndian, &audioFormat)
			binary.Read(br, binary.LittleEndian, &numChannels)
			binary.Read(br, binary.LittleEndian, &sampleRate)
			binary.Read(br, binary.LittleEndian, &byteRate)
			binary.Read(br, binary.LittleEndian, &blockAlign)
			binary.Read(br, binary.LittleEndian, &bitsPerSample)
			out.Channels = int(numChannels)
			out.SampleRate = int(sampleRate)
			out.BitDepth = int(bitsPerSample)
			sawFmt = true
		case "data":
			out.PCM = make([]byte, chunkSize)
			if _, err := io.ReadFull(r, out.PCM); err != nil {
				return DecodedWav{}, fmt.Errorf("reading data chunk: %w", err)
			}
		default:
			if _, err := io.CopyN(io.Discard, r, int64(chunkSize)); err != nil {
				return DecodedWav{}, fmt.Errorf("skipping chunk %q: %w", chunkID, err)
			}
		}
		if chunkSize%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				break
			}
		}
	}

	if !sawFmt || out.PCM == nil {
		return DecodedWav{}, fmt.Errorf("missing fmt or data chunk")
	}
	return out, nil
}
