package dispatcher

import "time"

// runShard collects queued events and publishes them when the batch is full
// or the linger interval elapses. A closed queue flushes what is left.
func (d *Dispatcher) runShard(queue <-chan task) {
	defer d.wg.Done()

	batch := make([]task, 0, d.opts.BatchSize)
	ticker := time.NewTicker(d.opts.Linger)
	defer ticker.Stop()

	for {
		select {
		case t, ok := <-queue:
			if !ok {
				if len(batch) > 0 {
					d.log.Debugw("draining shard on shutdown", "pending", len(batch))
					d.publishBatch(batch)
				}
				return
			}

			batch = append(batch, t)
			if len(batch) >= d.opts.BatchSize {
				d.publishBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				d.publishBatch(batch)
				batch = batch[:0]
			}
		}
	}
}
