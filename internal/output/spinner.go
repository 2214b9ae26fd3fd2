package output

import (
	"context"
	"time"

	"github.com/charmbracelet/huh/spinner"
)

// SpinOption configures Spin.
type SpinOption func(*spinConfig)

type spinConfig struct {
	timeout time.Duration
}

// WithTimeout bounds the action. Its context is cancelled when d elapses.
func WithTimeout(d time.Duration) SpinOption {
	return func(c *spinConfig) {
		c.timeout = d
	}
}

// spinnerEnabled is swapped in tests.
var spinnerEnabled = IsTTY

// Spin runs action under title. On a terminal a spinner is shown until the
// action returns; otherwise the title is logged at debug level.
func Spin(ctx context.Context, title string, action func(context.Context) error, opts ...SpinOption) error {
	var cfg spinConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	if !spinnerEnabled() {
		Debug(title)
		return action(ctx)
	}

	return spinner.New().Title(title).Context(ctx).ActionWithErr(action).Run()
}
