package filesystem

import (
	"testing"

	"github.com/vircadia/assetd/internal/storagedriver/storagedrivertest"
)

func TestFilesystemDriverConformance(t *testing.T) {
	root := t.TempDir()
	driver, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	storagedrivertest.Run(t, driver)
}
