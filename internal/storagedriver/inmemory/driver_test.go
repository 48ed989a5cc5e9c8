package inmemory

import (
	"testing"

	"github.com/vircadia/assetd/internal/storagedriver/storagedrivertest"
)

func TestInMemoryDriverConformance(t *testing.T) {
	storagedrivertest.Run(t, New())
}
