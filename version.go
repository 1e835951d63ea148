package internode

import "errors"

// Messaging versions are negotiated during the connection handshake, before
// any decoder exists. A decoder is locked to one version for its lifetime.
const (
	// MinimumVersion is the oldest wire layout this decoder understands.
	// Connections negotiated below it use the legacy first-chunk layout and
	// must be handled by a different decoder variant.
	MinimumVersion = 12
	// CurrentVersion is the layout this node speaks natively.
	CurrentVersion = 12
)

// ErrUnsupportedVersion is returned when constructing a decoder for a
// messaging version below MinimumVersion. This is a configuration error: it
// fires at construction time, never per message.
var ErrUnsupportedVersion = errors.New("unsupported messaging version")
