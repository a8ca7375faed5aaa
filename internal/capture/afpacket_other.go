//go:build !linux

package capture

import (
	"context"
	"fmt"

	"firestige.xyz/netscope/internal/core"
)

func openAFPacket(_ context.Context, _ Options) (Source, error) {
	return nil, fmt.Errorf("%w: afpacket capture requires linux", core.ErrDeviceUnavailable)
}
