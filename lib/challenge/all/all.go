// Package all imports every challenge type so that it registers itself.
package all

import (
	_ "github.com/TecharoHQ/codegate/lib/challenge/customize"
	_ "github.com/TecharoHQ/codegate/lib/challenge/image"
	_ "github.com/TecharoHQ/codegate/lib/challenge/puzzle"
	_ "github.com/TecharoHQ/codegate/lib/challenge/sms"
)
