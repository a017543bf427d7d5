package lotledger

import (
	"encoding/json"
	"fmt"
)

// LotSelectionMethod defines the policy for choosing which lots satisfy a
// disposal. An explicit lot-number selection always takes precedence over the
// policy.
type LotSelectionMethod int

const (
	// FirstInFirstOut consumes the chronologically oldest lots first.
	FirstInFirstOut LotSelectionMethod = iota
	// LastInFirstOut consumes the newest lots first.
	LastInFirstOut
	// HighestCostFirst consumes the lots with the highest acquisition price first.
	HighestCostFirst
)

// DefaultLotSelectionMethod is applied when callers do not specify one.
const DefaultLotSelectionMethod = FirstInFirstOut

func (m LotSelectionMethod) String() string {
	switch m {
	case FirstInFirstOut:
		return "fifo"
	case LastInFirstOut:
		return "lifo"
	case HighestCostFirst:
		return "highest-cost"
	default:
		return "unknown"
	}
}

// ParseLotSelectionMethod parses a string into a LotSelectionMethod.
func ParseLotSelectionMethod(s string) (LotSelectionMethod, error) {
	switch s {
	case "fifo", "":
		return FirstInFirstOut, nil
	case "lifo":
		return LastInFirstOut, nil
	case "highest-cost":
		return HighestCostFirst, nil
	default:
		return 0, fmt.Errorf("unknown lot selection method: %q", s)
	}
}

func (m LotSelectionMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *LotSelectionMethod) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseLotSelectionMethod(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
