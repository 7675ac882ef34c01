// Package clock provides an injectable time source and scheduler.
//
// Components that sleep between retries, check elapsed time, or bound an
// operation with a timeout take a Clock instead of calling the time package
// directly. Production code uses System(); tests inject a Fake clock and
// advance it deterministically.
//
// # Usage
//
//	clk := clock.System()
//
//	// Context-aware sleep
//	if err := clk.Sleep(ctx, 500*time.Millisecond); err != nil {
//	    return err // context cancelled
//	}
//
//	// Timeout-bounded execution
//	err := clk.RunTimeout(ctx, 5*time.Second, func(ctx context.Context) error {
//	    return callExternalService(ctx)
//	})
//	if errors.Is(err, clock.ErrTimeout) {
//	    // operation exceeded its budget
//	}
//
// In tests:
//
//	fake := clock.NewFake(time.Unix(1700000000, 0))
//	go worker(fake)
//	fake.BlockUntil(1)              // wait for the worker to sleep
//	fake.Advance(30 * time.Second)  // release it
package clock
