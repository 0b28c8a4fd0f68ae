// Package audio turns voice-note recordings into PCM that a speech
// recogniser can consume. The read side understands Ogg/Opus (the container
// every chat platform uses for voice notes); the write side produces the WAV
// artifact stored next to each transcript.
package audio

import (
	"fmt"
	"strings"

	"layeh.com/gopus"
)

// Opus always decodes at 48 kHz regardless of the encoder's input rate.
const opusSampleRate = 48000

// maxOpusFrameSize is the largest possible Opus frame: 120 ms at 48 kHz.
const maxOpusFrameSize = opusSampleRate * 120 / 1000

// Decoded is raw interleaved 16-bit little-endian PCM with its format.
type Decoded struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// DecodeOggOpus decodes a complete Ogg/Opus file into 48 kHz PCM.
// Malformed container data is an error; it is never reported as
// unrecognised speech.
func DecodeOggOpus(data []byte) (Decoded, error) {
	packets, err := parseOggPackets(data)
	if err != nil {
		return Decoded{}, err
	}

	head, err := parseOpusHead(packets[0])
	if err != nil {
		return Decoded{}, err
	}

	dec, err := gopus.NewDecoder(opusSampleRate, head.channels)
	if err != nil {
		return Decoded{}, fmt.Errorf("audio: create opus decoder: %w", err)
	}

	var pcm []byte
	for i, packet := range packets[1:] {
		// Second packet is the OpusTags comment header; skip without decoding.
		if i == 0 && len(packet) >= 8 && strings.HasPrefix(string(packet[:8]), "OpusTags") {
			continue
		}
		samples, err := dec.Decode(packet, maxOpusFrameSize, false)
		if err != nil {
			return Decoded{}, fmt.Errorf("audio: opus decode packet %d: %w", i+1, err)
		}
		pcm = append(pcm, int16sToBytes(samples)...)
	}

	// Drop the encoder pre-skip samples from the front of the stream.
	if skip := head.preSkip * head.channels * 2; skip > 0 && skip <= len(pcm) {
		pcm = pcm[skip:]
	}

	return Decoded{PCM: pcm, SampleRate: opusSampleRate, Channels: head.channels}, nil
}

// DownmixResample converts d to mono PCM at targetRate. The input is
// returned unchanged when it already matches.
func DownmixResample(d Decoded, targetRate int) []byte {
	pcm := d.PCM
	if d.Channels == 2 {
		pcm = StereoToMono(pcm)
	}
	return ResampleMono16(pcm, d.SampleRate, targetRate)
}

// int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}
