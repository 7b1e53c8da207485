package stake

import "fmt"

// Activation is the warm-up/cool-down status reported for a stake account.
type Activation string

// Activation states.
const (
	Activating   Activation = "activating"
	Active       Activation = "active"
	Deactivating Activation = "deactivating"
	Inactive     Activation = "inactive"
)

// ParseActivation validates a status string reported by the node.
func ParseActivation(s string) (Activation, error) {
	switch a := Activation(s); a {
	case Activating, Active, Deactivating, Inactive:
		return a, nil
	}
	return "", fmt.Errorf("unknown stake activation %q", s)
}

// Withdrawable reports whether the full balance can be withdrawn.
func (a Activation) Withdrawable() bool {
	return a == Inactive
}
