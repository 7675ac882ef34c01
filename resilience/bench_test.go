package resilience

import (
	"context"
	"testing"
)

func BenchmarkCircuitBreaker_Call_Closed(b *testing.B) {
	cb := NewCircuitBreaker(Config{Clock: newScriptClock()})
	ctx := context.Background()
	op := func(ctx context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Call(ctx, "bench", op)
	}
}

func BenchmarkCircuitBreaker_Call_Open(b *testing.B) {
	cb := NewCircuitBreaker(Config{FailureThreshold: 1, Clock: newScriptClock()})
	cb.RecordFailure("bench")
	ctx := context.Background()
	op := func(ctx context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Call(ctx, "bench", op)
	}
}

func BenchmarkCircuitBreaker_IsCallAllowed(b *testing.B) {
	cb := NewCircuitBreaker(Config{Clock: newScriptClock()})

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cb.IsCallAllowed()
		}
	})
}
