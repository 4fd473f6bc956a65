package resdb

import "context"

type txKey struct{}

// FromContext returns the open transaction carried by ctx, if any.
func FromContext(ctx context.Context) (*Transaction, bool) {
	tx, ok := ctx.Value(txKey{}).(*Transaction)
	return tx, ok && tx != nil
}
