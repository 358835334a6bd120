package transform

import (
	"runtime"
	"sync"
)

// rows below this count are processed on the calling goroutine
const minParallelRows = 32

// parallelFor runs fn(y) over y in [0, n) using up to GOMAXPROCS workers.
// Work is distributed by striding to balance uneven workloads. Each fn call
// must only write to state owned by row y. A panic in any worker is re-raised
// on the calling goroutine once all workers have stopped.
func parallelFor(n int, fn func(y int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 || n < minParallelRows {
		for y := 0; y < n; y++ {
			fn(y)
		}
		return
	}

	var (
		wg       sync.WaitGroup
		once     sync.Once
		panicked any
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(start int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { panicked = r })
				}
			}()
			for y := start; y < n; y += workers {
				fn(y)
			}
		}(w)
	}
	wg.Wait()

	if panicked != nil {
		panic(panicked)
	}
}
