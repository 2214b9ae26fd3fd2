package output

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withoutSpinner(t *testing.T) {
	t.Helper()
	prev := spinnerEnabled
	spinnerEnabled = func() bool { return false }
	t.Cleanup(func() { spinnerEnabled = prev })
}

func TestSpin(t *testing.T) {
	withoutSpinner(t)

	t.Run("returns the action error", func(t *testing.T) {
		err := Spin(context.Background(), "Refreshing catalog", func(context.Context) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("timeout cancels the action", func(t *testing.T) {
		err := Spin(context.Background(), "Refreshing catalog", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, WithTimeout(10*time.Millisecond))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("passes the caller context", func(t *testing.T) {
		type key struct{}
		ctx := context.WithValue(context.Background(), key{}, "portal")
		var got any
		err := Spin(ctx, "Refreshing versions of portal", func(ctx context.Context) error {
			got = ctx.Value(key{})
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "portal", got)
	})
}
