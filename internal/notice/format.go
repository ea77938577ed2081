package notice

import (
	"errors"
	"fmt"
)

// ErrMissingValue is returned when a notice lacks a value its template needs.
var ErrMissingValue = errors.New("notice: missing value")

type template struct {
	header string
	// challenge and solver index into Notice.Values; solver < 0 means unused.
	challenge int
	solver    int
	line      string
}

var templates = map[Kind]template{
	KindNewChallenge: {header: "[New challenge!]", challenge: 0, solver: -1, line: "Challenge: <%s> is now live."},
	KindFirstBlood:   {header: "[First blood!]", challenge: 1, solver: 0, line: "Challenge: <%s>"},
	KindSecondBlood:  {header: "[Second blood!]", challenge: 1, solver: 0, line: "Challenge: <%s>"},
	KindThirdBlood:   {header: "[Third blood!]", challenge: 1, solver: 0, line: "Challenge: <%s>"},
	KindNewHint:      {header: "[New hint!]", challenge: 0, solver: -1, line: "Challenge: <%s> has a new hint."},
}

// Format renders n as chat text.
//
// An unrecognized type yields ("", nil); callers decide whether to skip it.
func Format(n Notice) (string, error) {
	tpl, ok := templates[n.Type]
	if !ok {
		return "", nil
	}
	challenge, err := value(n, tpl.challenge)
	if err != nil {
		return "", err
	}
	at, err := NormalizeTime(n.Time)
	if err != nil {
		return "", err
	}

	msg := tpl.header + "\n" + fmt.Sprintf(tpl.line, challenge)
	if tpl.solver >= 0 {
		solver, err := value(n, tpl.solver)
		if err != nil {
			return "", err
		}
		msg += "\nTaken by: " + solver
	}
	return msg + "\nTime: " + at, nil
}

func value(n Notice, i int) (string, error) {
	if i >= len(n.Values) {
		return "", fmt.Errorf("%w: %s needs values[%d], got %d", ErrMissingValue, n.Type, i, len(n.Values))
	}
	return n.Values[i], nil
}
