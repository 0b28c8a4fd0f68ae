package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Ogg page constants. Layout per RFC 3533 §6.
const (
	oggCapture       = "OggS"
	oggHeaderSize    = 27
	oggMaxSegments   = 255
	oggFlagContinued = 0x01
)

var errShortPage = errors.New("audio: truncated ogg page")

// opusHead is the decoded identification header of an Ogg/Opus stream
// (RFC 7845 §5.1).
type opusHead struct {
	channels int
	preSkip  int
}

// parseOggPackets walks the Ogg pages in data and reassembles the logical
// packets of the first (and only expected) stream. Voice notes are single
// stream files, so no serial demultiplexing is performed.
func parseOggPackets(data []byte) ([][]byte, error) {
	var (
		packets [][]byte
		pending []byte
	)

	off := 0
	for off < len(data) {
		if len(data)-off < oggHeaderSize {
			return nil, errShortPage
		}
		if string(data[off:off+4]) != oggCapture {
			return nil, fmt.Errorf("audio: bad ogg capture pattern at offset %d", off)
		}
		if version := data[off+4]; version != 0 {
			return nil, fmt.Errorf("audio: unsupported ogg version %d", version)
		}
		headerType := data[off+5]
		nSegs := int(data[off+26])
		segTable := off + oggHeaderSize
		if segTable+nSegs > len(data) {
			return nil, errShortPage
		}

		// A continuation page whose first packet we never started is only
		// legal at the very start of a damaged capture; reject it.
		if headerType&oggFlagContinued != 0 && pending == nil && len(packets) > 0 {
			return nil, errors.New("audio: unexpected ogg continuation page")
		}

		body := segTable + nSegs
		for i := range nSegs {
			segLen := int(data[segTable+i])
			if body+segLen > len(data) {
				return nil, errShortPage
			}
			pending = append(pending, data[body:body+segLen]...)
			body += segLen
			if segLen < oggMaxSegments {
				packets = append(packets, pending)
				pending = nil
			}
		}
		off = body
	}

	if pending != nil {
		return nil, errors.New("audio: ogg stream ends mid-packet")
	}
	if len(packets) == 0 {
		return nil, errors.New("audio: no ogg packets found")
	}
	return packets, nil
}

// parseOpusHead validates and decodes an OpusHead identification packet.
func parseOpusHead(packet []byte) (opusHead, error) {
	if len(packet) < 19 || string(packet[:8]) != "OpusHead" {
		return opusHead{}, errors.New("audio: first ogg packet is not an OpusHead")
	}
	if version := packet[8]; version != 1 {
		return opusHead{}, fmt.Errorf("audio: unsupported opus head version %d", version)
	}
	head := opusHead{
		channels: int(packet[9]),
		preSkip:  int(binary.LittleEndian.Uint16(packet[10:12])),
	}
	if head.channels < 1 || head.channels > 2 {
		return opusHead{}, fmt.Errorf("audio: unsupported channel count %d", head.channels)
	}
	return head, nil
}
