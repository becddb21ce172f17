// Package parallel provides a chunked parallel-for used by the tensor kernels.
package parallel

import (
	"runtime"
	"sync"
)

// For splits [0, n) into contiguous chunks and runs fn on each chunk, using
// up to GOMAXPROCS goroutines. Small ranges run inline on the caller.
func For(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
