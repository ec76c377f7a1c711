package agent

import "errors"

var (
	// ErrStateVersion means a persisted state uses another schema version.
	ErrStateVersion = errors.New("unsupported learning state version")
	// ErrShapeMismatch means saved network weights do not fit the current network.
	ErrShapeMismatch = errors.New("network shape mismatch")
)
