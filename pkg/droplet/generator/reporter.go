package generator

import "fmt"

// event is sent by a chunk worker when it finishes.
type event struct {
	index   int
	message string
	err     error
}

// report consumes events until the channel closes. Successful chunks
// advance progress; failures are only logged.
func report(events <-chan event, total int, opts Options) {
	if total == 0 {
		opts.progress(100)
	}

	received := 0
	for ev := range events {
		if ev.err != nil {
			opts.log(fmt.Sprintf("chunk %d failed: %v", ev.index, ev.err))
			continue
		}

		received++
		opts.progress(float64(received) / float64(total) * 100)
		opts.log(ev.message)
	}
}
