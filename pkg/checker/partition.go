package checker

// Partitioner picks the worker, in [0, workers), for the record at position
// index of the input sequence
type Partitioner[R any] func(record R, index int, workers int) int

// RoundRobin spreads records evenly by their position in the input
func RoundRobin[R any]() Partitioner[R] {
	return func(_ R, index int, workers int) int {
		return index % workers
	}
}

// ByID assigns contiguous id ranges to workers: with ids in [0, highID) and
// N workers, worker 0 gets the first ceil(highID/N) ids, worker 1 the next
// range, and so on. Ids outside the range go to the first or last worker.
func ByID[R any](id func(R) int64, highID int64) Partitioner[R] {
	return func(record R, _ int, workers int) int {
		perWorker := (highID + int64(workers) - 1) / int64(workers)
		if perWorker <= 0 {
			perWorker = 1
		}

		w := id(record) / perWorker
		switch {
		case w < 0:
			return 0
		case w >= int64(workers):
			return workers - 1
		default:
			return int(w)
		}
	}
}
