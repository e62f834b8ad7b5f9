package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCertPath(t *testing.T) {
	assert.Equal(t, "/tmp/ca.pem", resolveCertPath("/tmp/ca.pem"))
	assert.Equal(t, filepath.Join("./config/certs", "missing-ca.pem"), resolveCertPath("@certs/missing-ca.pem"))
}

func TestRegisterTLSConfig(t *testing.T) {
	t.Run("nothing configured", func(t *testing.T) {
		assert.NoError(t, registerTLSConfig(Config{}))
	})

	t.Run("unreadable file", func(t *testing.T) {
		err := registerTLSConfig(Config{TLSCAPath: filepath.Join(t.TempDir(), "nope.pem")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("invalid pem", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ca.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))
		err := registerTLSConfig(Config{TLSCAPath: path})
		assert.EqualError(t, err, "failed to parse CA certificate")
	})
}

func TestBindNamed_ExpandsSlices(t *testing.T) {
	q, args, err := bindNamed("SELECT id FROM ad WHERE id IN (:ids) AND active = :active", map[string]any{
		"ids":    []int64{4, 5, 6},
		"active": true,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM ad WHERE id IN (?, ?, ?) AND active = ?", q)
	assert.Equal(t, []any{int64(4), int64(5), int64(6), true}, args)
}

func TestPing(t *testing.T) {
	ms, mock := newMockStore(t)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	require.NoError(t, ms.Ping(context.Background()))

	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("connection refused"))
	err := ms.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database ping failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewFromDB_CloseIsNoop(t *testing.T) {
	ms, mock := newMockStore(t)
	ms.Close()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	assert.NoError(t, ms.Ping(context.Background()))
}
