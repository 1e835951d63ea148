package internode

import (
	"encoding/binary"
	"net/netip"

	"github.com/pkg/errors"
)

// ParameterType identifies a typed key/value metadata entry attached to a
// message header. Parameters travel as {key string, length, raw value} on the
// wire; the key selects the codec that turns the raw value into a typed one.
type ParameterType int

const (
	// ParamForwardTo lists additional replicas the coordinator wants this
	// write forwarded to. Value: []netip.AddrPort.
	ParamForwardTo ParameterType = iota
	// ParamRespondTo overrides the reply address. Value: netip.AddrPort.
	ParamRespondTo
	// ParamFailureResponse flags a response as a failure. Value: bool (true).
	ParamFailureResponse
	// ParamFailureReason carries the failure code. Value: uint16.
	ParamFailureReason
	// ParamTraceSession carries the tracing session id. Value: [16]byte.
	ParamTraceSession
	// ParamTraceType selects the tracing flavor. Value: byte.
	ParamTraceType
)

var parameterKeys = map[ParameterType]string{
	ParamForwardTo:       "FWD_TO",
	ParamRespondTo:       "RSP_TO",
	ParamFailureResponse: "FAIL",
	ParamFailureReason:   "FAIL_REASON",
	ParamTraceSession:    "TRACE_SESSION",
	ParamTraceType:       "TRACE_TYPE",
}

var parameterTypesByKey = func() map[string]ParameterType {
	m := make(map[string]ParameterType, len(parameterKeys))
	for pt, key := range parameterKeys {
		m[key] = pt
	}
	return m
}()

// ParameterTypeByKey maps a wire key to its ParameterType. A false second
// return means the peer sent a key this node does not know, which is stream
// corruption: the value cannot be decoded and byte accounting is untrusted.
func ParameterTypeByKey(key string) (ParameterType, bool) {
	pt, ok := parameterTypesByKey[key]
	return pt, ok
}

// Key returns the wire key of the parameter type.
func (p ParameterType) Key() string {
	return parameterKeys[p]
}

func (p ParameterType) String() string {
	return p.Key()
}

// decodeValue turns the raw value bytes of one parameter into its typed form.
func (p ParameterType) decodeValue(value []byte, version int) (any, error) {
	switch p {
	case ParamForwardTo:
		if len(value) < 1 {
			return nil, errors.Errorf("parameter %s: missing address count", p)
		}
		count := int(value[0])
		rest := value[1:]
		targets := make([]netip.AddrPort, 0, count)
		for i := 0; i < count; i++ {
			var (
				ap  netip.AddrPort
				err error
			)
			ap, rest, err = consumeAddrPort(rest)
			if err != nil {
				return nil, errors.Wrapf(err, "parameter %s", p)
			}
			targets = append(targets, ap)
		}
		if len(rest) != 0 {
			return nil, errors.Errorf("parameter %s: %d trailing bytes", p, len(rest))
		}
		return targets, nil
	case ParamRespondTo:
		ap, rest, err := consumeAddrPort(value)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %s", p)
		}
		if len(rest) != 0 {
			return nil, errors.Errorf("parameter %s: %d trailing bytes", p, len(rest))
		}
		return ap, nil
	case ParamFailureResponse:
		// Presence is the whole signal; the value carries no bytes.
		if len(value) != 0 {
			return nil, errors.Errorf("parameter %s: expected empty value, got %d bytes", p, len(value))
		}
		return true, nil
	case ParamFailureReason:
		if len(value) != 2 {
			return nil, errors.Errorf("parameter %s: expected 2 bytes, got %d", p, len(value))
		}
		return binary.BigEndian.Uint16(value), nil
	case ParamTraceSession:
		if len(value) != 16 {
			return nil, errors.Errorf("parameter %s: expected 16 bytes, got %d", p, len(value))
		}
		var session [16]byte
		copy(session[:], value)
		return session, nil
	case ParamTraceType:
		if len(value) != 1 {
			return nil, errors.Errorf("parameter %s: expected 1 byte, got %d", p, len(value))
		}
		return value[0], nil
	}
	return nil, errors.Errorf("parameter type %d has no codec", int(p))
}

// encodeValue appends the wire form of a typed parameter value to dst.
func (p ParameterType) encodeValue(dst []byte, v any, version int) ([]byte, error) {
	switch p {
	case ParamForwardTo:
		targets, ok := v.([]netip.AddrPort)
		if !ok {
			return nil, errors.Errorf("parameter %s: want []netip.AddrPort, got %T", p, v)
		}
		if len(targets) > 0xff {
			return nil, errors.Errorf("parameter %s: %d targets exceeds the 255 limit", p, len(targets))
		}
		dst = append(dst, byte(len(targets)))
		for _, ap := range targets {
			dst = appendAddrPort(dst, ap)
		}
		return dst, nil
	case ParamRespondTo:
		ap, ok := v.(netip.AddrPort)
		if !ok {
			return nil, errors.Errorf("parameter %s: want netip.AddrPort, got %T", p, v)
		}
		return appendAddrPort(dst, ap), nil
	case ParamFailureResponse:
		return dst, nil
	case ParamFailureReason:
		reason, ok := v.(uint16)
		if !ok {
			return nil, errors.Errorf("parameter %s: want uint16, got %T", p, v)
		}
		return binary.BigEndian.AppendUint16(dst, reason), nil
	case ParamTraceSession:
		session, ok := v.([16]byte)
		if !ok {
			return nil, errors.Errorf("parameter %s: want [16]byte, got %T", p, v)
		}
		return append(dst, session[:]...), nil
	case ParamTraceType:
		b, ok := v.(byte)
		if !ok {
			return nil, errors.Errorf("parameter %s: want byte, got %T", p, v)
		}
		return append(dst, b), nil
	}
	return nil, errors.Errorf("parameter type %d has no codec", int(p))
}

// Addresses travel as a 1-byte length (4 or 16), the raw address bytes, and a
// 2-byte big-endian port.

func appendAddrPort(dst []byte, ap netip.AddrPort) []byte {
	raw := ap.Addr().AsSlice()
	dst = append(dst, byte(len(raw)))
	dst = append(dst, raw...)
	return binary.BigEndian.AppendUint16(dst, ap.Port())
}

func consumeAddrPort(value []byte) (netip.AddrPort, []byte, error) {
	if len(value) < 1 {
		return netip.AddrPort{}, nil, errors.New("missing address length")
	}
	n := int(value[0])
	if n != 4 && n != 16 {
		return netip.AddrPort{}, nil, errors.Errorf("bad address length %d", n)
	}
	if len(value) < 1+n+2 {
		return netip.AddrPort{}, nil, errors.Errorf("truncated address, have %d bytes", len(value))
	}
	addr, _ := netip.AddrFromSlice(value[1 : 1+n])
	port := binary.BigEndian.Uint16(value[1+n:])
	return netip.AddrPortFrom(addr, port), value[1+n+2:], nil
}
