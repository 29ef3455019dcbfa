package sqlite_test

import (
	"testing"

	"github.com/origindb/origindb/internal/storage/backingstore/drivertest"
	_ "github.com/origindb/origindb/internal/storage/backingstore/sqlite"
)

func TestSQLiteDriver(t *testing.T) {
	drivertest.Run(t, "sqlite")
}
