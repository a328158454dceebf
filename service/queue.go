package service

import (
	"context"
	"sync"

	"voting-ledger/log"
	"voting-ledger/models"
)

// QueueProcessor serializes ballots from concurrent producers onto a single
// worker that calls AddBlock.
type QueueProcessor struct {
	votingService *VotingService
	ballotCh      chan *BallotRequest
	processingWg  sync.WaitGroup
	shutdownCh    chan struct{}

	// mu orders enqueues against Stop so no ballot lands after the drain.
	mu     sync.RWMutex
	closed bool
}

// BallotRequest represents a queued ballot.
type BallotRequest struct {
	CandidateID string
	VoterID     string
	ResultCh    chan<- *ProcessingResult
}

// ProcessingResult is the outcome of one queued ballot.
type ProcessingResult struct {
	Block *models.Block
	Err   error
}

// NewQueueProcessor creates a processor with room for queueSize pending ballots.
func NewQueueProcessor(votingService *VotingService, queueSize int) *QueueProcessor {
	if queueSize < 1 {
		queueSize = 1
	}
	return &QueueProcessor{
		votingService: votingService,
		ballotCh:      make(chan *BallotRequest, queueSize),
		shutdownCh:    make(chan struct{}),
	}
}

// Start launches the worker.
func (qp *QueueProcessor) Start() {
	qp.processingWg.Add(1)
	go qp.ballotWorker()
}

// Stop waits for the ballot in progress, fails every ballot still queued with
// ErrQueueClosed and returns. It is safe to call more than once.
func (qp *QueueProcessor) Stop() {
	qp.mu.Lock()
	if qp.closed {
		qp.mu.Unlock()
		return
	}
	qp.closed = true
	close(qp.shutdownCh)
	qp.mu.Unlock()

	qp.processingWg.Wait()
	qp.drain()
}

// QueueBallot adds a ballot without blocking. A full or stopped queue yields
// an immediate failed result.
func (qp *QueueProcessor) QueueBallot(candidateID, voterID string) <-chan *ProcessingResult {
	resultCh := make(chan *ProcessingResult, 1)

	qp.mu.RLock()
	defer qp.mu.RUnlock()
	if qp.closed {
		resultCh <- &ProcessingResult{Err: ErrQueueClosed}
		close(resultCh)
		return resultCh
	}

	select {
	case qp.ballotCh <- &BallotRequest{CandidateID: candidateID, VoterID: voterID, ResultCh: resultCh}:
	default:
		log.Warn("ballot queue is full, request dropped", "candidate", candidateID)
		resultCh <- &ProcessingResult{Err: ErrQueueFull}
		close(resultCh)
	}
	return resultCh
}

// Submit queues a ballot and waits for its result. Cancelling ctx stops the
// wait; a ballot already handed to the worker is still processed.
func (qp *QueueProcessor) Submit(ctx context.Context, candidateID, voterID string) (*models.Block, error) {
	resultCh := make(chan *ProcessingResult, 1)
	req := &BallotRequest{CandidateID: candidateID, VoterID: voterID, ResultCh: resultCh}

	if err := qp.enqueue(ctx, req); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.Block, res.Err
	}
}

func (qp *QueueProcessor) enqueue(ctx context.Context, req *BallotRequest) error {
	qp.mu.RLock()
	defer qp.mu.RUnlock()
	if qp.closed {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case qp.ballotCh <- req:
		return nil
	}
}

func (qp *QueueProcessor) ballotWorker() {
	defer qp.processingWg.Done()

	for {
		select {
		case <-qp.shutdownCh:
			return
		case req := <-qp.ballotCh:
			block, err := qp.votingService.AddBlock(req.CandidateID, req.VoterID)
			req.ResultCh <- &ProcessingResult{Block: block, Err: err}
			close(req.ResultCh)
		}
	}
}

func (qp *QueueProcessor) drain() {
	for {
		select {
		case req := <-qp.ballotCh:
			req.ResultCh <- &ProcessingResult{Err: ErrQueueClosed}
			close(req.ResultCh)
		default:
			return
		}
	}
}
