// Package walletlog is the shared logging entry point for utxocore. Each
// consuming package keeps its own package-level Logger and wires
// it up through UseLogger, mirroring how pktwallet's subpackages each
// expose their own UseLogger/DisableLog pair backed by a common backend.
package walletlog

import (
	"io"

	"github.com/btcsuite/btclog"
)

// Logger is the narrow slice of btclog.Logger that consuming packages
// actually call. btclog.Logger's method set is a superset of this one,
// so any real btclog.Logger (including Disabled) is assignable to a
// Logger variable directly.
type Logger interface {
	Tracef(string, ...interface{})
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})
}

// Disabled is a logger that discards everything. Packages default to it
// until a caller supplies a real backend with UseLogger.
var Disabled Logger = btclog.Disabled

// Backend is a btclog backend writing to a given writer, to be handed to
// btclog.NewBackend(w).Logger(subsystem) by the host process and then
// threaded into each package's UseLogger.
type Backend = btclog.Backend

// NewBackend is a thin re-export so callers don't need a direct btclog
// import just to stand up a logger for this module.
func NewBackend(w io.Writer) *Backend {
	return btclog.NewBackend(w)
}
