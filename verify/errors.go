package verify

import (
	"fmt"

	"github.com/shieldnet/validator/protocol"
)

func errFailed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", protocol.ErrVerificationFailed, fmt.Sprintf(format, args...))
}

func errUnknownPacketKind(kind protocol.PacketKind) error {
	return fmt.Errorf("%w: unknown packet kind %d", protocol.ErrVerificationFailed, kind)
}
