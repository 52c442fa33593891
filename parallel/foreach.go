package parallel

import "sync"

// ForEach executes a for loop with a limited number of concurrent goroutines.
// Each goroutine processes one integer, from 0 to length.
// Once a body fails no further iterations are started. The error of the
// lowest failed index is returned, unchanged.
func ForEach(length, limit int, body func(i int) error) error {
	if limit <= 0 {
		limit = 1 // Default to 1 if limit is zero or negative
	}
	if length <= 0 {
		return nil // No iterations to perform
	}
	if limit > length {
		limit = length
	}

	var (
		sem    = make(chan struct{}, limit) // Semaphore with buffer size 'limit'
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed = -1
		first  error
	)

	for i := 0; i < length; i++ {
		mu.Lock()
		stop := failed >= 0
		mu.Unlock()
		if stop {
			break
		}

		sem <- struct{}{} // Acquire semaphore
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore after function exits

			if err := body(i); err != nil {
				mu.Lock()
				if failed < 0 || i < failed {
					failed, first = i, err
				}
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait() // Wait for all goroutines to finish
	return first
}
