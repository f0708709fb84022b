package main

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/raskyld/subway"
)

// Checkouts is what a worker reports on `PathWorkerCheckouts`: the jobs
// it currently holds.
type Checkouts struct {
	Worker string   `json:"worker"`
	Jobs   []string `json:"jobs"`
}

// checkoutBoard remembers the last report of each worker.
type checkoutBoard struct {
	lk      sync.Mutex
	reports map[string][]string
}

func newCheckoutBoard() *checkoutBoard {
	return &checkoutBoard{reports: make(map[string][]string)}
}

func (cb *checkoutBoard) register(mux *subway.Mux) {
	subway.HandleJSON(mux, subway.MethodPost, subway.PathWorkerCheckouts, cb.report)
	subway.HandleJSON(mux, subway.MethodGet, subway.PathWorkerCheckouts, cb.list)
}

func (cb *checkoutBoard) report(_ context.Context, in Checkouts) (Checkouts, error) {
	if !subway.ValidateID(in.Worker) {
		return in, fmt.Errorf("%w: %q", subway.ErrInvalidID, in.Worker)
	}
	cb.lk.Lock()
	defer cb.lk.Unlock()
	if len(in.Jobs) == 0 {
		delete(cb.reports, in.Worker)
	} else {
		cb.reports[in.Worker] = slices.Clone(in.Jobs)
	}
	return in, nil
}

func (cb *checkoutBoard) list(_ context.Context, _ struct{}) ([]Checkouts, error) {
	cb.lk.Lock()
	defer cb.lk.Unlock()
	workers := make([]string, 0, len(cb.reports))
	for worker := range cb.reports {
		workers = append(workers, worker)
	}
	slices.Sort(workers)

	all := make([]Checkouts, 0, len(workers))
	for _, worker := range workers {
		all = append(all, Checkouts{Worker: worker, Jobs: slices.Clone(cb.reports[worker])})
	}
	return all, nil
}
