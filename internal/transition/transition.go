package transition

import "fmt"

// Kind selects how long a preset change takes to blend in.
type Kind string

const (
	Default      Kind = "default"
	Immediate    Kind = "immediate"
	UserSelected Kind = "user_selected"
)

// Seconds returns the blend duration for k. Unknown kinds blend like Default.
func Seconds(k Kind) float64 {
	switch k {
	case Immediate:
		return 0
	case UserSelected:
		return 5.7
	default:
		return 2.7
	}
}

func (k Kind) String() string { return string(k) }

// Parse accepts the text forms used on the control socket and in config files.
// An empty string is Default.
func Parse(s string) (Kind, error) {
	switch Kind(s) {
	case "", Default:
		return Default, nil
	case Immediate:
		return Immediate, nil
	case UserSelected:
		return UserSelected, nil
	}
	return Default, fmt.Errorf("unknown transition kind %q", s)
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
