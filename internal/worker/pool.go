package worker

import (
	"context"
	"sync"
)

// Job is a unit of work run by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job hands back to the pool
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of goroutines
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	queueOnce  sync.Once
	closeOnce  sync.Once
}

// NewPool creates a pool with the given number of workers (at least one)
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// submit queues a job; it returns immediately once the pool is done
func (p *Pool) submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Run starts the pool, feeds it jobs and collects every result.
// Results arrive in completion order, not submission order.
func (p *Pool) Run(jobs []Job) []Result {
	p.start()
	go func() {
		for _, job := range jobs {
			p.submit(job)
		}
		p.closeQueue()
	}()
	return p.drain()
}

func (p *Pool) drain() []Result {
	go func() {
		p.wg.Wait()
		p.closeResults()
		p.cancelFunc()
	}()

	var results []Result
	for result := range p.results {
		results = append(results, result)
	}
	return results
}

func (p *Pool) closeQueue() {
	p.queueOnce.Do(func() {
		close(p.jobQueue)
	})
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
