// Package all is a meta-package that imports all store implementations.
//
// Import it for side effects wherever a store backend is picked by name from
// configuration.
package all

import (
	_ "github.com/TecharoHQ/codegate/lib/store/bbolt"
	_ "github.com/TecharoHQ/codegate/lib/store/memory"
	_ "github.com/TecharoHQ/codegate/lib/store/valkey"
)
