package trace

import (
	"bufio"
	"errors"
	"io"

	"github.com/sigurn/crc8"

	"sparkrtc/sparkos/kernel"
)

// Frame layout, before byte stuffing:
//
//	0x7E | seq kind nest prio arg | crc8 | 0x7E
//
// 0x7E and 0x7D inside a frame are sent as 0x7D followed by the byte XOR 0x20.
const (
	frameFlag   = 0x7E
	frameEscape = 0x7D
	frameXOR    = 0x20

	payloadBytes = 5
	frameBytes   = payloadBytes + 1
)

var (
	ErrChecksum    = errors.New("trace frame checksum mismatch")
	ErrFrameLength = errors.New("trace frame has wrong length")
)

var frameCRC = crc8.MakeTable(crc8.CRC8)

func checksum(data []byte) uint8 {
	c := crc8.Init(frameCRC)
	c = crc8.Update(c, data, frameCRC)
	return crc8.Complete(c, frameCRC)
}

// Encoder writes framed records to a byte stream such as a UART.
type Encoder struct {
	w   io.Writer
	seq uint8
	buf [2 + 2*frameBytes]byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one frame for r.
func (e *Encoder) Encode(r kernel.Record) error {
	var raw [frameBytes]byte
	raw[0] = e.seq
	raw[1] = uint8(r.Kind)
	raw[2] = r.Nest
	raw[3] = uint8(r.Prio)
	raw[4] = r.Arg
	raw[5] = checksum(raw[:payloadBytes])

	out := e.buf[:0]
	out = append(out, frameFlag)
	for _, b := range raw {
		if b == frameFlag || b == frameEscape {
			out = append(out, frameEscape, b^frameXOR)
			continue
		}
		out = append(out, b)
	}
	out = append(out, frameFlag)

	if _, err := e.w.Write(out); err != nil {
		return err
	}
	e.seq++
	return nil
}

// Decoder reads framed records, resynchronizing on the next flag after a bad frame.
type Decoder struct {
	r       *bufio.Reader
	started bool
	next    uint8
	lost    int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Lost returns the number of frames missing from the sequence so far.
func (d *Decoder) Lost() int { return d.lost }

// Decode returns the next record. It returns io.EOF at the end of the stream,
// and ErrChecksum or ErrFrameLength for a damaged frame; decoding may continue
// after either.
func (d *Decoder) Decode() (kernel.Record, error) {
	var raw [frameBytes]byte
	for {
		n, err := d.readFrame(raw[:])
		if err != nil {
			return kernel.Record{}, err
		}
		if n == 0 {
			continue
		}
		if n != frameBytes {
			return kernel.Record{}, ErrFrameLength
		}
		if checksum(raw[:payloadBytes]) != raw[payloadBytes] {
			return kernel.Record{}, ErrChecksum
		}

		seq := raw[0]
		if d.started {
			d.lost += int(seq - d.next)
		}
		d.started = true
		d.next = seq + 1

		return kernel.Record{
			Kind: kernel.Kind(raw[1]),
			Nest: raw[2],
			Prio: kernel.Priority(raw[3]),
			Arg:  raw[4],
		}, nil
	}
}

// readFrame reads the unstuffed bytes between two flags into dst. It returns the
// full frame length even when dst is too small to hold it.
func (d *Decoder) readFrame(dst []byte) (int, error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == frameFlag {
			break
		}
	}

	n := 0
	escaped := false
	for {
		b, err := d.r.ReadByte()
		if err == io.EOF {
			if n == 0 {
				return 0, io.EOF
			}
			return 0, io.ErrUnexpectedEOF
		}
		if err != nil {
			return 0, err
		}
		switch {
		case b == frameFlag:
			if err := d.r.UnreadByte(); err != nil {
				return 0, err
			}
			return n, nil
		case b == frameEscape:
			escaped = true
			continue
		case escaped:
			b ^= frameXOR
			escaped = false
		}
		if n < len(dst) {
			dst[n] = b
		}
		n++
	}
}
