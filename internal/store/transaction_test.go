package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingBeginner always refuses to start a transaction.
type failingBeginner struct {
	err error
}

func (f *failingBeginner) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return nil, f.err
}

func TestRunInTransactionBeginFailure(t *testing.T) {
	db := &failingBeginner{err: errors.New("connection refused")}

	called := false
	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, called, "fn must not run without a transaction")
}
