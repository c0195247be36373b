package convert

import (
	"runtime"
	"sync"

	"github.com/inodb/variantconvert/internal/table"
	"github.com/inodb/variantconvert/internal/vcf"
)

// WorkItem holds a source row ready for assembly.
type WorkItem struct {
	Seq int
	Row table.Row
}

// WorkResult holds the assembled record of a single row.
type WorkResult struct {
	Seq    int
	Row    table.Row
	Record *vcf.Record
	Err    error
}

// ParallelAssemble runs a.Assemble over items on a pool of workers. Results
// arrive in completion order; OrderedCollect restores row order. A
// non-positive worker count means one worker per CPU.
func ParallelAssemble(a *vcf.Assembler, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				rec, err := a.Assemble(item.Row)
				results <- WorkResult{
					Seq:    item.Seq,
					Row:    item.Row,
					Record: rec,
					Err:    err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect hands results to fn in sequence order, holding early
// arrivals until their turn. It returns the first error of fn after draining
// the channel, so no worker is left blocked on send.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Ends once feed sees stop closed and the workers finish.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// feed sends rows as numbered work items until all are sent or stop is
// closed, then closes the returned channel.
func feed(rows []table.Row, buffer int, stop <-chan struct{}) <-chan WorkItem {
	items := make(chan WorkItem, buffer)
	go func() {
		defer close(items)
		for i, row := range rows {
			select {
			case items <- WorkItem{Seq: i, Row: row}:
			case <-stop:
				return
			}
		}
	}()
	return items
}
