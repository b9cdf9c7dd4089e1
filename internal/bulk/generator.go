package bulk

import (
	"fmt"
	"strconv"
	"strings"

	"seat-allocation-backend/internal/model"
)

const (
	// MaxSpan is the largest allowed end-start, i.e. at most MaxSpan+1 seats per request.
	MaxSpan = 1000
	// PreviewSize is how many identifiers a preview shows.
	PreviewSize = 20
)

// Request describes one bulk seat-number expansion.
type Request struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// Preview is a truncated view of a generation.
type Preview struct {
	SeatNumbers []string `json:"seatNumbers"`
	Total       int      `json:"total"`
	Remaining   int      `json:"remaining"`
}

// Summary renders the remainder the way the creation dialog shows it.
func (p Preview) Summary() string {
	if p.Remaining == 0 {
		return ""
	}
	return fmt.Sprintf("... and %d more", p.Remaining)
}

// Validate checks the request without generating anything.
func (r Request) Validate() error {
	if r.Start < 0 || r.End < 0 {
		return fmt.Errorf("%w: bounds must be non-negative integers", model.ErrInput)
	}
	if r.Start > r.End {
		return fmt.Errorf("%w: start %d is greater than end %d", model.ErrRange, r.Start, r.End)
	}
	if r.End-r.Start > MaxSpan {
		return fmt.Errorf("%w: %d seats requested, at most %d allowed", model.ErrTooManyItems, r.End-r.Start+1, MaxSpan+1)
	}
	return nil
}

// Generate expands the request into seat numbers, zero padded to the width of End.
func Generate(r Request) ([]string, error) {
	return generate(r, -1)
}

// PreviewOf returns the first PreviewSize seat numbers and the count of the rest.
func PreviewOf(r Request) (Preview, error) {
	numbers, err := generate(r, PreviewSize)
	if err != nil {
		return Preview{}, err
	}
	total := r.End - r.Start + 1
	return Preview{
		SeatNumbers: numbers,
		Total:       total,
		Remaining:   total - len(numbers),
	}, nil
}

// generate produces at most limit identifiers; a negative limit means all of them.
func generate(r Request, limit int) ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	count := r.End - r.Start + 1
	if limit >= 0 && count > limit {
		count = limit
	}
	width := len(strconv.Itoa(r.End))

	out := make([]string, 0, count)
	var b strings.Builder
	for i := r.Start; len(out) < count; i++ {
		b.Reset()
		b.WriteString(r.Prefix)
		num := strconv.Itoa(i)
		for pad := width - len(num); pad > 0; pad-- {
			b.WriteByte('0')
		}
		b.WriteString(num)
		b.WriteString(r.Suffix)
		out = append(out, b.String())
	}
	return out, nil
}
