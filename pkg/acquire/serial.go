package acquire

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/itohio/potservo/pkg/serialport"
)

// Frame header sent by the ADC MCU before every block.
const (
	frameSync0 = 0xA5
	frameSync1 = 0x5A
)

var errFrameTooLong = errors.New("frame longer than pool buffer")

// Serial reads framed sample blocks from an ADC microcontroller.
//
// Frame format: 0xA5 0x5A, uint16 sample count, count uint16 samples.
// All integers are little-endian.
type Serial struct {
	port     string
	baudRate int
	pool     *Pool

	conn      io.ReadCloser
	mu        sync.Mutex
	cancel    context.CancelFunc
	connected bool
}

// NewSerial creates a serial source that fills buffers from pool.
func NewSerial(port string, baudRate int, pool *Pool) *Serial {
	return &Serial{
		port:     port,
		baudRate: baudRate,
		pool:     pool,
	}
}

// Attach makes Start read from an already open connection instead of
// opening the port itself. Close closes conn.
func (s *Serial) Attach(conn io.ReadCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}
	s.conn = conn
	return nil
}

// Start opens the serial port, unless a connection was attached, and starts
// reading blocks.
func (s *Serial) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	if s.conn == nil {
		conn, err := serialport.Open(s.port, s.baudRate)
		if err != nil {
			return err
		}
		s.conn = conn
	}

	s.connected = true
	ctx, s.cancel = context.WithCancel(ctx)

	go s.readBlocks(ctx, s.conn)

	return nil
}

// Close closes the port and stops reading.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		if s.conn != nil {
			err := s.conn.Close()
			s.conn = nil
			return err
		}
		return nil
	}

	s.cancel()
	if err := s.conn.Close(); err != nil {
		log.Printf("Error closing ADC serial port: %v", err)
	}
	s.conn = nil
	s.connected = false

	return nil
}

// readBlocks moves frames from r into the pool until r fails or ctx ends.
func (s *Serial) readBlocks(ctx context.Context, r io.Reader) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Panic in readBlocks: %v", rec)
		}
	}()

	br := bufio.NewReader(r)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		count, err := readHeader(br)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("Error reading ADC frame: %v", err)
			}
			return
		}

		b, ok := s.pool.Acquire()
		if !ok {
			// Pool exhausted: skip the payload to stay in sync with the stream.
			if _, err := br.Discard(count * 2); err != nil {
				return
			}
			continue
		}

		n, err := readPayload(br, count, b.Samples)
		if err != nil {
			s.pool.put(b)
			if errors.Is(err, errFrameTooLong) {
				log.Printf("Dropping ADC frame: %v", err)
				continue
			}
			log.Printf("Error reading ADC frame: %v", err)
			return
		}
		b.Samples = b.Samples[:n]
		s.pool.Commit(b)
	}
}

// readHeader skips to the next frame header and returns its sample count.
func readHeader(r *bufio.Reader) (int, error) {
	if err := syncFrame(r); err != nil {
		return 0, err
	}
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(hdr[:])), nil
}

// readPayload decodes count samples into dst and returns count. A frame that
// does not fit dst is skipped and reported as errFrameTooLong.
func readPayload(r *bufio.Reader, count int, dst []uint16) (int, error) {
	if count > len(dst) {
		if _, err := r.Discard(count * 2); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %d > %d", errFrameTooLong, count, len(dst))
	}
	if err := readSamples(r, dst[:count]); err != nil {
		return 0, err
	}
	return count, nil
}

func readSamples(r io.Reader, dst []uint16) error {
	var raw [2]byte
	for i := range dst {
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return err
		}
		dst[i] = binary.LittleEndian.Uint16(raw[:])
	}
	return nil
}

func syncFrame(r *bufio.Reader) error {
	prev := byte(0)
	for {
		c, err := r.ReadByte()
		if err != nil {
			return err
		}
		if prev == frameSync0 && c == frameSync1 {
			return nil
		}
		prev = c
	}
}

// EncodeFrame appends one framed block to dst. It is the inverse of the
// MCU-side framing and is used by tools and tests.
func EncodeFrame(dst []byte, samples []uint16) []byte {
	dst = append(dst, frameSync0, frameSync1)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(samples)))
	for _, v := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, v)
	}
	return dst
}
