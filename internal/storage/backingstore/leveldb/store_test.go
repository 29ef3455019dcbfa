package leveldb_test

import (
	"testing"

	"github.com/origindb/origindb/internal/storage/backingstore/drivertest"
	_ "github.com/origindb/origindb/internal/storage/backingstore/leveldb"
)

func TestLevelDBDriver(t *testing.T) {
	drivertest.Run(t, "leveldb")
}
