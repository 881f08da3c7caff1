package commands

import (
	"runtime"
	"sync"
)

// parallelFor runs fn(i) over i in [0, n) using up to GOMAXPROCS workers.
// Work is distributed by striding to balance uneven workloads.
func parallelFor(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers := min(runtime.GOMAXPROCS(0), n)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := w; i < n; i += workers {
				fn(i)
			}
		}()
	}
	wg.Wait()
}

// chunkBounds splits [0, n) into the given number of contiguous chunks and
// returns the half-open range of chunk i.
func chunkBounds(n, chunks, i int) (int, int) {
	size := (n + chunks - 1) / chunks
	start := min(i*size, n)
	end := min(start+size, n)
	return start, end
}
