package sds011

import (
	"errors"
	"fmt"
)

const (
	HEAD          byte = 0xAA
	TAIL          byte = 0xAB
	COMMAND       byte = 0xB4
	REPLY_DATA    byte = 0xC0
	REPLY_COMMAND byte = 0xC5

	CMD_REPORTING_MODE byte = 0x02
	CMD_QUERY_DATA     byte = 0x04
	CMD_WORK_MODE      byte = 0x06

	COMMAND_LENGTH = 19
	REPLY_LENGTH   = 10

	commandDataLength = 12
)

var (
	ErrBadHeader   = errors.New("sds011: bad frame header")
	ErrBadTail     = errors.New("sds011: bad frame tail")
	ErrBadChecksum = errors.New("sds011: checksum mismatch")
	ErrShortFrame  = errors.New("sds011: short frame")
)

// Sample is one particulate reading in µg/m³.
type Sample struct {
	PM25 float64
	PM10 float64
}

// Reply is a decoded 10 byte frame sent by the sensor.
type Reply struct {
	Command byte
	Data    [6]byte
}

// Sample decodes a REPLY_DATA frame. Values are little endian tenths.
func (r Reply) Sample() (Sample, error) {
	if r.Command != REPLY_DATA {
		return Sample{}, fmt.Errorf("sds011: reply 0x%02X carries no measurement", r.Command)
	}

	pm25 := int(r.Data[0]) | int(r.Data[1])<<8
	pm10 := int(r.Data[2]) | int(r.Data[3])<<8

	return Sample{
		PM25: float64(pm25) / 10,
		PM10: float64(pm10) / 10,
	}, nil
}

// EncodeCommand builds a command frame addressed to every device.
func EncodeCommand(cmd byte, data ...byte) []byte {
	frame := make([]byte, COMMAND_LENGTH)
	frame[0] = HEAD
	frame[1] = COMMAND
	frame[2] = cmd
	copy(frame[3:3+commandDataLength], data)
	frame[15] = 0xFF
	frame[16] = 0xFF
	frame[17] = checksum(frame[2:17])
	frame[18] = TAIL

	return frame
}

// DecodeReply validates and decodes a reply frame.
func DecodeReply(frame []byte) (Reply, error) {
	if len(frame) != REPLY_LENGTH {
		return Reply{}, ErrShortFrame
	}
	if frame[0] != HEAD {
		return Reply{}, ErrBadHeader
	}
	if frame[9] != TAIL {
		return Reply{}, ErrBadTail
	}
	if checksum(frame[2:8]) != frame[8] {
		return Reply{}, ErrBadChecksum
	}

	reply := Reply{Command: frame[1]}
	copy(reply.Data[:], frame[2:8])

	return reply, nil
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}
