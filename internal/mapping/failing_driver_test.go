package mapping

import (
	"context"
	"fmt"

	"github.com/vircadia/assetd/internal/storagedriver/inmemory"
)

// failingDriver wraps an inmemory.Driver and can be told to fail every
// subsequent PutContent call, simulating a persistence failure so that
// rollback behavior can be exercised without a real disk.
type failingDriver struct {
	*inmemory.Driver
	failPuts bool
}

func (d *failingDriver) PutContent(ctx context.Context, path string, contents []byte) error {
	if d.failPuts {
		return fmt.Errorf("failingDriver: simulated write failure")
	}
	return d.Driver.PutContent(ctx, path, contents)
}
