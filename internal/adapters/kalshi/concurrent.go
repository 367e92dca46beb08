package kalshi

import (
	"context"
	"log/slog"
	"sync"
)

// eventJob es un evento a descargar; idx conserva el orden de la serie.
type eventJob struct {
	idx   int
	event string
	asset string
}

type eventResult struct {
	idx     int
	markets []Market
	err     error
}

// fetchEventsConcurrent descarga los mercados de cada evento con un worker
// pool. El rate limiter del client acota las requests; los workers sólo
// solapan la latencia. Los resultados vuelven indexados por job.
func fetchEventsConcurrent(ctx context.Context, client *Client, jobs []eventJob, workers int) []eventResult {
	if workers <= 0 {
		workers = defaultWorkers
	}
	workers = min(workers, len(jobs))

	workCh := make(chan eventJob, len(jobs))
	resultCh := make(chan eventResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range workCh {
				markets, err := client.GetEventMarkets(ctx, j.event)
				resultCh <- eventResult{idx: j.idx, markets: markets, err: err}
			}
		}()
	}

	for _, j := range jobs {
		workCh <- j
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	out := make([]eventResult, len(jobs))
	for r := range resultCh {
		out[r.idx] = r
	}

	slog.Debug("kalshi: concurrent fetch complete", "events", len(jobs), "workers", workers)
	return out
}
