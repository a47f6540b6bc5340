package factory

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toheart/flightrec/domain/model"
)

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCreateMemoryFactory(t *testing.T) {
	f, err := CreateRepositoryFactory(string(DBTypeMemory), "", newTestLogger())
	require.NoError(t, err)
	defer CloseFactory(f)

	repo := f.GetSessionEventRepository()
	require.NotNil(t, repo)
	_, err = repo.SaveEvent(model.NewSessionEvent(1, "created", "CREATED", "2026-01-02 15:04:05.000"))
	assert.NoError(t, err)
}

func TestCreateSQLiteFactory(t *testing.T) {
	f, err := CreateRepositoryFactory(string(DBTypeSQLite), filepath.Join(t.TempDir(), "j.db"), newTestLogger())
	require.NoError(t, err)
	defer CloseFactory(f)
	require.NotNil(t, f.GetSessionEventRepository())
}

func TestCreateUnsupportedFactory(t *testing.T) {
	_, err := CreateRepositoryFactory("postgres", "", newTestLogger())
	assert.Error(t, err)
}

func TestCloseFactoryNil(t *testing.T) {
	assert.NoError(t, CloseFactory(nil))
}
