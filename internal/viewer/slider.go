package viewer

import (
	"strconv"

	"github.com/joeblew999/kochizu/internal/config"
)

// Tick is a labelled slider mark.
type Tick struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Slider configures the year slider widget.
type Slider struct {
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Start  int    `json:"start"`
	Step   int    `json:"step"`
	Suffix string `json:"suffix"`
	Ticks  []Tick `json:"ticks"`
}

// NewSlider builds the slider from the configured year range. Ticks fall on
// multiples of TickEvery inside the range.
func NewSlider(y config.YearRange) Slider {
	s := Slider{Min: y.Min, Max: y.Max, Start: y.Start, Step: y.Step, Suffix: y.Suffix, Ticks: []Tick{}}
	if y.TickEvery <= 0 {
		return s
	}
	first := y.Min
	if r := first % y.TickEvery; r != 0 {
		first += y.TickEvery - r
	}
	for v := first; v <= y.Max; v += y.TickEvery {
		s.Ticks = append(s.Ticks, Tick{Value: v, Label: strconv.Itoa(v) + y.Suffix})
	}
	return s
}
