package fees

import (
	"fmt"
	"strings"
)

// OverflowMode selects what happens to per-claim fees once the cumulative
// USD cap has been reached.
type OverflowMode uint8

const (
	// OverflowCancel waives every fee after the cap.
	OverflowCancel OverflowMode = iota
	// OverflowRouteToPartner keeps charging and pays the partner overflow receiver.
	OverflowRouteToPartner
	// OverflowRouteToProtocol keeps charging and pays the protocol overflow receiver.
	OverflowRouteToProtocol
)

func (m OverflowMode) Valid() bool {
	switch m {
	case OverflowCancel, OverflowRouteToPartner, OverflowRouteToProtocol:
		return true
	default:
		return false
	}
}

func (m OverflowMode) String() string {
	switch m {
	case OverflowCancel:
		return "cancel"
	case OverflowRouteToPartner:
		return "route_to_partner"
	case OverflowRouteToProtocol:
		return "route_to_protocol"
	default:
		return "unknown"
	}
}

// ParseOverflowMode accepts the snake_case names as well as the camelCase and
// numeric spellings used by older configuration files.
func ParseOverflowMode(value string) (OverflowMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch normalized {
	case "", "cancel", "0":
		return OverflowCancel, nil
	case "route_to_partner", "routetopartner", "partner", "1":
		return OverflowRouteToPartner, nil
	case "route_to_protocol", "routetoprotocol", "protocol", "2":
		return OverflowRouteToProtocol, nil
	default:
		return OverflowCancel, fmt.Errorf("fees: unknown overflow mode %q", value)
	}
}

// MarshalText renders the mode for JSON and TOML encoders.
func (m OverflowMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("fees: invalid overflow mode %d", uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes the mode from JSON strings and TOML values.
func (m *OverflowMode) UnmarshalText(data []byte) error {
	parsed, err := ParseOverflowMode(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
