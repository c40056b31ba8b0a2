// Package signal extracts structured trade intents from free-text channel messages.
package signal

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Side denotes position direction using exchange wire values.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Opposite returns the closing side for a position side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Intent is an immutable trade instruction parsed from a signal message.
type Intent struct {
	Symbol   string
	Side     Side
	Entry    float64
	StopLoss float64
	Targets  []float64
}

var (
	// ErrNotSignal means the text does not match the signal pattern at all.
	ErrNotSignal = errors.New("signal: text does not match signal pattern")
	// ErrInvalidSignal means the pattern matched but a field could not be extracted.
	ErrInvalidSignal = errors.New("signal: malformed signal message")
)

// A qualifying message contains direction, leverage marker, entry, stop loss
// and dash-separated targets in that order, possibly across multiple lines.
var signalRe = regexp.MustCompile(`(?is)(Long|Short).*?Lev\s*x\d+.*?Entry:\s*[\d.]+.*?Stop\s*Loss:\s*[\d.]+.*?Targets:\s*(?:[\d.]+\s*-\s*)*[\d.]+`)

var (
	symbolRe  = regexp.MustCompile(`(?i)#\s*([A-Z0-9]+)\s*/\s*(USDT|USDC|USD)`)
	sideRe    = regexp.MustCompile(`(?i)(Long|Short)`)
	entryRe   = regexp.MustCompile(`Entry:\s*([\d.]+)`)
	slRe      = regexp.MustCompile(`Stop\s*Loss:\s*([\d.]+)`)
	targetsRe = regexp.MustCompile(`Targets:\s*([^\n]+)`)
)

// IsSignalMessage reports whether text structurally qualifies as a trading signal.
func IsSignalMessage(text string) bool {
	if text == "" {
		return false
	}
	return signalRe.MatchString(text)
}

// Parse extracts a trade intent from signal text. Texts that do not qualify
// return ErrNotSignal; qualifying texts with unextractable fields return
// ErrInvalidSignal. Parse has no side effects.
func Parse(text string) (Intent, error) {
	if !IsSignalMessage(text) {
		return Intent{}, ErrNotSignal
	}

	symbolM := symbolRe.FindStringSubmatch(text)
	sideM := sideRe.FindStringSubmatch(text)
	entryM := entryRe.FindStringSubmatch(text)
	slM := slRe.FindStringSubmatch(text)
	targetsM := targetsRe.FindStringSubmatch(text)

	if symbolM == nil || sideM == nil || entryM == nil || slM == nil || targetsM == nil {
		return Intent{}, ErrInvalidSignal
	}

	entry, err := strconv.ParseFloat(entryM[1], 64)
	if err != nil {
		return Intent{}, ErrInvalidSignal
	}
	sl, err := strconv.ParseFloat(slM[1], 64)
	if err != nil {
		return Intent{}, ErrInvalidSignal
	}

	targets, err := parseTargets(targetsM[1])
	if err != nil {
		return Intent{}, err
	}

	side := SideBuy
	if strings.EqualFold(sideM[1], "short") {
		side = SideSell
	}

	return Intent{
		Symbol:   strings.ToUpper(symbolM[1]) + strings.ToUpper(symbolM[2]),
		Side:     side,
		Entry:    entry,
		StopLoss: sl,
		Targets:  targets,
	}, nil
}

func parseTargets(list string) ([]float64, error) {
	parts := strings.Split(list, "-")
	targets := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, ErrInvalidSignal
		}
		targets = append(targets, v)
	}
	if len(targets) == 0 {
		return nil, ErrInvalidSignal
	}
	return targets, nil
}
