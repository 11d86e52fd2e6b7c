package pulse

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pulse/internal/config"
)

func TestClassify_Thresholds(t *testing.T) {
	th := config.DefaultPulseConfig().Thresholds
	tests := []struct {
		in   float64
		want StatusLabel
	}{
		{0, StatusMellow},
		{0.15, StatusMellow},
		{0.1501, StatusChill},
		{0.30, StatusChill},
		{0.50, StatusChill},
		{0.60, StatusBuzzing},
		{0.85, StatusBuzzing},
		{0.86, StatusPacked},
		{3.2, StatusPacked},
		{-1, StatusMellow},
		{math.NaN(), StatusMellow},
		{math.Inf(1), StatusPacked},
	}
	for _, tt := range tests {
		if got := Classify(th, tt.in); got != tt.want {
			t.Fatalf("Classify(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProperty_ClassifierTotalAndDeterministic(t *testing.T) {
	th := config.DefaultPulseConfig().Thresholds
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("every saturation >= 0 maps to one stable label", prop.ForAll(
		func(s float64) bool {
			a := Classify(th, s)
			b := Classify(th, s)
			return a.Valid() && a == b
		},
		gen.Float64Range(0, 10),
	))

	properties.Property("higher saturation never yields a lower intensity", prop.ForAll(
		func(a, b float64) bool {
			if a > b {
				a, b = b, a
			}
			return Classify(th, a).Intensity() <= Classify(th, b).Intensity()
		},
		gen.Float64Range(0, 2),
		gen.Float64Range(0, 2),
	))

	properties.TestingRun(t)
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want StatusLabel
		ok   bool
	}{
		{"packed", StatusPacked, true},
		{" Buzzing ", StatusBuzzing, true},
		{"CHILL", StatusChill, true},
		{"dead", StatusMellow, true},
		{"mellow", StatusMellow, true},
		{"lit", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseStatus(%q) = (%q,%v), want (%q,%v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDisplayStatus_ConsensusWins(t *testing.T) {
	packed := StatusPacked
	if got := DisplayStatus(StatusChill, Consensus{Confirmed: &packed}); got != StatusPacked {
		t.Fatalf("got %q want packed", got)
	}
	if got := DisplayStatus(StatusChill, Consensus{Hint: &packed}); got != StatusChill {
		t.Fatalf("hint must not override, got %q", got)
	}
}
