// Package notice defines the GZ::CTF notice record and turns it into chat text.
package notice

// Kind is the notice type as reported by the feed. Values outside the known
// set are kept verbatim so they can be logged.
type Kind string

const (
	KindNewChallenge Kind = "NewChallenge"
	KindFirstBlood   Kind = "FirstBlood"
	KindSecondBlood  Kind = "SecondBlood"
	KindThirdBlood   Kind = "ThirdBlood"
	KindNewHint      Kind = "NewHint"
)

// Known reports whether k has a message template.
func (k Kind) Known() bool {
	switch k {
	case KindNewChallenge, KindFirstBlood, KindSecondBlood, KindThirdBlood, KindNewHint:
		return true
	default:
		return false
	}
}

// Notice is one event from the feed. Field order is the canonical
// serialization order used for fingerprints (keys sorted).
type Notice struct {
	Time   string   `json:"time"`
	Type   Kind     `json:"type"`
	Values []string `json:"values"`
}

// Equal compares two notices structurally. A nil and an empty Values are equal.
func (n Notice) Equal(o Notice) bool {
	if n.Type != o.Type || n.Time != o.Time || len(n.Values) != len(o.Values) {
		return false
	}
	for i := range n.Values {
		if n.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// Contains reports whether list holds a notice structurally equal to n.
func Contains(list []Notice, n Notice) bool {
	for _, x := range list {
		if x.Equal(n) {
			return true
		}
	}
	return false
}

// Reversed returns a reversed copy of list.
func Reversed(list []Notice) []Notice {
	out := make([]Notice, len(list))
	for i, n := range list {
		out[len(list)-1-i] = n
	}
	return out
}
