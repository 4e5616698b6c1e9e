package node

import (
	"errors"

	"github.com/adamgarcia4/goLearning/meff/peer"
)

var (
	ErrNameRequired             = errors.New("node name is required")
	ErrAddressRequired          = errors.New("address is required")
	ErrPortRequired             = errors.New("port is required")
	ErrInvalidPort              = errors.New("port must be a number between 1 and 65535")
	ErrInvalidHeartbeatInterval = errors.New("heartbeat interval must be positive")
	ErrInvalidTimeout           = errors.New("timeouts must be positive")
	ErrInvalidProbeSettings     = errors.New("probe threshold and target count must be at least 1")
	ErrInvalidJoinAddress       = errors.New("join address must be host:port")
	ErrInvalidRequestTTL        = errors.New("request ttl must be positive")
	ErrInvalidLeaveGrace        = errors.New("leave grace must not be negative")

	ErrAlreadyStarted = errors.New("node already started")
	ErrStopped        = errors.New("node is stopped")
	ErrUnknownOp      = errors.New("unknown playback operation")

	// Re-exported from the state machine so callers only import node.
	ErrNotFound = peer.ErrNotFound
	ErrNoPeers  = peer.ErrNoPeers
	ErrEmptyKey = peer.ErrEmptyKey
)
