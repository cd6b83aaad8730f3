package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "outcomes", []string{"org", "route"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"outcomes"}, []string{"org", "route"}).WillReturnResult(3)

	rows := [][]any{{"acme", "web"}, {"acme", "agent"}, {"globex", "direct"}}
	n, err := CopyFrom(context.Background(), mock, "outcomes", []string{"org", "route"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"outcomes"}, []string{"org", "route"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"acme", "web"}}
	_, err = CopyFrom(context.Background(), mock, "outcomes", []string{"org", "route"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO outcomes")
	assert.NoError(t, mock.ExpectationsWereMet())
}
