package pebble_test

import (
	"testing"

	"github.com/origindb/origindb/internal/storage/backingstore/drivertest"
	_ "github.com/origindb/origindb/internal/storage/backingstore/pebble"
)

func TestPebbleDriver(t *testing.T) {
	drivertest.Run(t, "pebble")
}
