package acquire

import "context"

// Source fills pool buffers with interleaved samples: for every frame,
// motor 0 setpoint, motor 0 position, motor 1 setpoint, and so on.
type Source interface {
	Start(ctx context.Context) error
	Close() error
}

// Ensure sources implement Source.
var (
	_ Source = (*Mock)(nil)
	_ Source = (*Serial)(nil)
)
