package mode

import (
	"fmt"
	"strings"
)

// Kind is the closed set of action kinds a mode may contain.
type Kind int

const (
	KindLaunch Kind = iota + 1
	KindKill
	KindSetVolume
	KindRunScript
	KindExecute
	KindLaunchURI
	KindAdjustDisplay
)

var kindNames = map[Kind]string{
	KindLaunch:        "launch",
	KindKill:          "kill",
	KindSetVolume:     "volume",
	KindRunScript:     "script",
	KindExecute:       "execute",
	KindLaunchURI:     "launch_uri",
	KindAdjustDisplay: "display",
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindLaunch,
		KindKill,
		KindSetVolume,
		KindRunScript,
		KindExecute,
		KindLaunchURI,
		KindAdjustDisplay,
	}
}

// String returns the wire name of k.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind maps a wire name to its Kind.
func ParseKind(raw string) (Kind, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for kind, name := range kindNames {
		if name == raw {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown action type %q", raw)
}

// MarshalText encodes k as its wire name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid action kind %d", int(k))
	}
	return []byte(k.String()), nil
}
