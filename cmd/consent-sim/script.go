package main

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
)

const defaultScript = "5:request:A,6:accept:B,9:withdraw:B"

// Script verbs.
const (
	verbRequest  = "request"
	verbAccept   = "accept"
	verbCancel   = "cancel"
	verbWithdraw = "withdraw"
	verbToggle   = "toggle"
	verbReset    = "reset"
)

type action struct {
	At   time.Duration
	Verb string
	Who  consent.ParticipantID
}

func (a action) String() string {
	if a.Who == "" {
		return a.Verb
	}
	return a.Verb + " by " + string(a.Who)
}

// parseScript parses "1.5:request:B,2:accept:A". Consent verbs need a
// participant; mover verbs (toggle, reset) take none. The result is ordered
// by time, keeping script order for equal times.
func parseScript(raw string) ([]action, error) {
	var out []action
	for entry := range strings.SplitSeq(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		a, err := parseAction(entry)
		if err != nil {
			return nil, fmt.Errorf("script entry %q: %w", entry, err)
		}
		out = append(out, a)
	}
	slices.SortStableFunc(out, func(x, y action) int { return cmp.Compare(x.At, y.At) })
	return out, nil
}

func parseAction(entry string) (action, error) {
	parts := strings.Split(entry, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return action{}, errors.New("want seconds:action[:participant]")
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || secs < 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
		return action{}, fmt.Errorf("invalid time %q", parts[0])
	}
	a := action{
		At:   time.Duration(secs * float64(time.Second)),
		Verb: strings.ToLower(strings.TrimSpace(parts[1])),
	}
	if len(parts) == 3 {
		a.Who = consent.ParticipantID(strings.TrimSpace(parts[2]))
	}

	switch a.Verb {
	case verbRequest, verbAccept, verbCancel, verbWithdraw:
		if !a.Who.Valid() {
			return action{}, fmt.Errorf("%s needs a participant", a.Verb)
		}
	case verbToggle, verbReset:
		if a.Who != "" {
			return action{}, fmt.Errorf("%s takes no participant", a.Verb)
		}
	default:
		return action{}, fmt.Errorf("unknown action %q", a.Verb)
	}
	return a, nil
}
