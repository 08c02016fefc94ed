//go:build !linux

package gpio

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// OpenChardev is only available on Linux
func OpenChardev(chip string, pins PinMap, log zerolog.Logger) (*Bus, error) {
	return nil, errors.New("gpio: character device access requires Linux")
}
