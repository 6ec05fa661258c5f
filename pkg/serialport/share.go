package serialport

import (
	"io"
	"sync"
)

// Share splits one open port into n handles for drivers that each expect to
// own and close their connection. Reads and writes go straight to the port;
// the port is closed together with the last handle.
func Share(port io.ReadWriteCloser, n int) []io.ReadWriteCloser {
	s := &shared{port: port, refs: n}
	handles := make([]io.ReadWriteCloser, n)
	for i := range handles {
		handles[i] = &handle{shared: s}
	}
	return handles
}

type shared struct {
	port io.ReadWriteCloser

	mu   sync.Mutex
	refs int
}

type handle struct {
	shared *shared
	once   sync.Once
}

func (h *handle) Read(p []byte) (int, error) {
	return h.shared.port.Read(p)
}

func (h *handle) Write(p []byte) (int, error) {
	return h.shared.port.Write(p)
}

// Close releases the handle. Closing twice is a no-op.
func (h *handle) Close() error {
	var err error
	h.once.Do(func() {
		s := h.shared
		s.mu.Lock()
		defer s.mu.Unlock()
		s.refs--
		if s.refs == 0 {
			err = s.port.Close()
		}
	})
	return err
}
