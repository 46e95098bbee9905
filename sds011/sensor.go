package sds011

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"
)

const (
	DEFAULT_PORT   = "/dev/ttyUSB0"
	BAUD_RATE      = 9600
	READ_TIMEOUT   = 2 * time.Second
	MAX_SCAN_BYTES = 4 * REPLY_LENGTH
	MAX_REPLIES    = 3
)

var errTimeout = errors.New("sds011: read timed out")

// Sensor talks to an SDS011 in query reporting mode.
type Sensor struct {
	port   io.ReadWriter
	logger *slog.Logger
}

// Open opens the serial port and switches the sensor to query mode.
func Open(portName string, logger *slog.Logger) (*Sensor, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: BAUD_RATE,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(READ_TIMEOUT); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	sensor := New(port, logger)
	if err := sensor.SetQueryMode(); err != nil {
		port.Close()
		return nil, err
	}

	return sensor, nil
}

// New wraps an already opened port. A Read returning no bytes and no error
// is treated as a timeout, as go.bug.st/serial does.
func New(port io.ReadWriter, logger *slog.Logger) *Sensor {
	return &Sensor{
		port:   port,
		logger: logger,
	}
}

func (sensor *Sensor) log(level slog.Level, msg string, args ...any) {
	if sensor.logger != nil {
		sensor.logger.Log(context.Background(), level, msg, args...)
	}
}

func (sensor *Sensor) Close() error {
	if closer, ok := sensor.port.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SetQueryMode makes the sensor report only when queried.
func (sensor *Sensor) SetQueryMode() error {
	return sensor.command(CMD_REPORTING_MODE, 0x01, 0x01)
}

func (sensor *Sensor) Sleep() error {
	sensor.log(slog.LevelDebug, "Putting sensor to sleep")
	return sensor.command(CMD_WORK_MODE, 0x01, 0x00)
}

func (sensor *Sensor) Wake() error {
	sensor.log(slog.LevelDebug, "Waking sensor")
	return sensor.command(CMD_WORK_MODE, 0x01, 0x01)
}

// Query asks for one measurement. It reports false when the sensor did not
// answer with a valid measurement frame.
func (sensor *Sensor) Query() (Sample, bool) {
	sensor.resetInput()

	if _, err := sensor.port.Write(EncodeCommand(CMD_QUERY_DATA)); err != nil {
		sensor.log(slog.LevelDebug, "Failed to send query", "error", err)
		return Sample{}, false
	}

	for i := 0; i < MAX_REPLIES; i++ {
		reply, err := sensor.readReply()
		if err != nil {
			sensor.log(slog.LevelDebug, "Sensor not ready", "error", err)
			return Sample{}, false
		}

		if reply.Command != REPLY_DATA {
			continue
		}

		sample, err := reply.Sample()
		if err != nil {
			return Sample{}, false
		}

		return sample, true
	}

	return Sample{}, false
}

// command sends cmd and consumes its acknowledgement. A missing or garbled
// acknowledgement is logged, not returned.
func (sensor *Sensor) command(cmd byte, data ...byte) error {
	sensor.resetInput()

	if _, err := sensor.port.Write(EncodeCommand(cmd, data...)); err != nil {
		return fmt.Errorf("failed to send command 0x%02X: %w", cmd, err)
	}

	if _, err := sensor.readReply(); err != nil {
		sensor.log(slog.LevelDebug, "No acknowledgement from sensor", "command", cmd, "error", err)
	}

	return nil
}

func (sensor *Sensor) resetInput() {
	if resetter, ok := sensor.port.(interface{ ResetInputBuffer() error }); ok {
		if err := resetter.ResetInputBuffer(); err != nil {
			sensor.log(slog.LevelDebug, "Failed to reset input buffer", "error", err)
		}
	}
}

func (sensor *Sensor) readReply() (Reply, error) {
	frame := make([]byte, REPLY_LENGTH)

	found := false
	for i := 0; i < MAX_SCAN_BYTES; i++ {
		b, err := sensor.readByte()
		if err != nil {
			return Reply{}, err
		}
		if b == HEAD {
			found = true
			break
		}
	}
	if !found {
		return Reply{}, ErrBadHeader
	}

	frame[0] = HEAD
	for i := 1; i < REPLY_LENGTH; i++ {
		b, err := sensor.readByte()
		if err != nil {
			return Reply{}, err
		}
		frame[i] = b
	}

	return DecodeReply(frame)
}

func (sensor *Sensor) readByte() (byte, error) {
	var buf [1]byte

	n, err := sensor.port.Read(buf[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errTimeout
	}

	return buf[0], nil
}
