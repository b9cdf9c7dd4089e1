package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"seat-allocation-backend/internal/model"
)

var boundRe = regexp.MustCompile(`^\d+$`)

// Bound parses one end of a bulk seat range. Only plain non-negative decimal
// integers are accepted; signs, fractions and exponents are input errors.
func Bound(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	// JSON bodies may carry the bound quoted
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if !boundRe.MatchString(s) {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", model.ErrInput, raw)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is out of range", model.ErrInput, raw)
	}
	return n, nil
}

// Range parses both bounds. Ordering and size are checked by the generator.
func Range(startRaw, endRaw string) (start, end int, err error) {
	if start, err = Bound(startRaw); err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	if end, err = Bound(endRaw); err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}
