package backoff

import (
	"testing"
	"time"
)

func TestCalculatorDelay(t *testing.T) {
	calc := NewCalculator(ExponentialStrategy{}, time.Second, 30*time.Second, 2, 0)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for attempt, expected := range want {
		if got := calc.Delay(attempt); got != expected {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestCalculatorDefaults(t *testing.T) {
	calc := NewCalculator(nil, 10*time.Millisecond, 0, 0, 0)

	if _, ok := calc.Strategy().(ExponentialStrategy); !ok {
		t.Errorf("Strategy() = %T, want ExponentialStrategy", calc.Strategy())
	}
	if got := calc.Delay(1); got != 20*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 20ms (multiplier defaults to 2)", got)
	}
}

func TestCalculatorSetStrategy(t *testing.T) {
	calc := NewCalculator(ExponentialStrategy{}, 100*time.Millisecond, time.Second, 2, 0)

	calc.SetStrategy(DecorrelatedJitterStrategy{})
	if _, ok := calc.Strategy().(DecorrelatedJitterStrategy); !ok {
		t.Errorf("Strategy() = %T after SetStrategy", calc.Strategy())
	}

	calc.SetStrategy(nil)
	if _, ok := calc.Strategy().(DecorrelatedJitterStrategy); !ok {
		t.Error("SetStrategy(nil) must keep the current strategy")
	}
}

func BenchmarkCalculatorExponential(b *testing.B) {
	calc := NewCalculator(ExponentialStrategy{}, 100*time.Millisecond, 5*time.Second, 2, 0.1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		calc.Delay(i % 10)
	}
}
