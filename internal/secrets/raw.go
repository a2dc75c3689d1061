package secrets

import (
	"context"

	"github.com/bwscache/bwscache/internal/invoker"
)

// Raw forwards arbitrary argument lists to bws using the Manager's
// credentials and executable.
//
// Raw bypasses the cache entirely. Anything it changes on the server (for
// example creating a secret with a duplicate key, or deleting secrets in
// bulk) leaves the Manager out of sync until Refresh is called. The access
// token is still appended and redacted as for every other call.
type Raw struct {
	inv *invoker.Invoker
}

// Raw returns the unsynchronized passthrough for this Manager.
func (m *Manager) Raw() *Raw {
	m.logger.Warn().Msg("Raw bws access requested; call Refresh after any change made through it")
	return &Raw{inv: m.inv}
}

// Text runs bws with args and returns its raw output.
func (r *Raw) Text(ctx context.Context, args ...string) (string, error) {
	return r.inv.Text(ctx, args...)
}

// JSON runs bws with args, requesting JSON output, and decodes it into v.
func (r *Raw) JSON(ctx context.Context, v any, args ...string) error {
	return r.inv.JSON(ctx, v, args...)
}
