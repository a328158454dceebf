package service

import (
	"sync"
	"time"
)

// MetricsCollector tracks timing for ballot processing and tallying.
type MetricsCollector struct {
	mu sync.RWMutex

	votingStartTime time.Time
	votingEndTime   time.Time
	votingCount     int
	rejectedCount   int
	votingTotalTime time.Duration

	votingPhaseStarted   bool
	votingPhaseStartTime time.Time
	votingPhaseEndTime   time.Time
	votingPhaseDuration  time.Duration

	countingStartTime      time.Time
	countingEndTime        time.Time
	countingCount          int
	countingProcessingTime time.Duration

	now func() time.Time
}

// OperationMetrics contains timing information for an operation
type OperationMetrics struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Count          int       `json:"count"`
	Rejected       int       `json:"rejected,omitempty"`
	ProcessingTime int64     `json:"processing_time_ms"`
}

// PhaseMetrics describes the voting phase: from open (or reset) to close.
type PhaseMetrics struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  int64     `json:"duration_ms,omitempty"`
}

// MetricsResponse provides the metrics for all operations
type MetricsResponse struct {
	Voting      OperationMetrics `json:"voting"`
	Counting    OperationMetrics `json:"counting"`
	VotingPhase PhaseMetrics     `json:"voting_phase"`
}

func NewMetricsCollector(now func() time.Time) *MetricsCollector {
	if now == nil {
		now = time.Now
	}
	return &MetricsCollector{now: now}
}

func (mc *MetricsCollector) StartVotingPhase() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.votingPhaseStarted = true
	mc.votingPhaseStartTime = mc.now()
	mc.votingPhaseEndTime = time.Time{}
	mc.votingPhaseDuration = 0
}

func (mc *MetricsCollector) EndVotingPhase() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.votingPhaseStarted {
		mc.votingPhaseEndTime = mc.now()
		mc.votingPhaseDuration = mc.votingPhaseEndTime.Sub(mc.votingPhaseStartTime)
		mc.votingPhaseStarted = false
	}
}

// RecordVote records one AddBlock call. Rejected ballots count separately and
// do not contribute to the processing time.
func (mc *MetricsCollector) RecordVote(duration time.Duration, accepted bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if !accepted {
		mc.rejectedCount++
		return
	}
	if mc.votingCount == 0 {
		mc.votingStartTime = mc.now().Add(-duration)
	}
	mc.votingCount++
	mc.votingEndTime = mc.now()
	mc.votingTotalTime += duration
}

// RecordCounting records one tally pass.
func (mc *MetricsCollector) RecordCounting(duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.countingEndTime = mc.now()
	mc.countingStartTime = mc.countingEndTime.Add(-duration)
	mc.countingProcessingTime = duration
	mc.countingCount++
}

// GetMetrics returns current metrics for all operations
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return MetricsResponse{
		Voting: OperationMetrics{
			StartTime:      mc.votingStartTime,
			EndTime:        mc.votingEndTime,
			Count:          mc.votingCount,
			Rejected:       mc.rejectedCount,
			ProcessingTime: mc.votingTotalTime.Milliseconds(),
		},
		Counting: OperationMetrics{
			StartTime:      mc.countingStartTime,
			EndTime:        mc.countingEndTime,
			Count:          mc.countingCount,
			ProcessingTime: mc.countingProcessingTime.Milliseconds(),
		},
		VotingPhase: PhaseMetrics{
			StartTime: mc.votingPhaseStartTime,
			EndTime:   mc.votingPhaseEndTime,
			Duration:  mc.votingPhaseDuration.Milliseconds(),
		},
	}
}

// Reset clears all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.votingStartTime = time.Time{}
	mc.votingEndTime = time.Time{}
	mc.votingCount = 0
	mc.rejectedCount = 0
	mc.votingTotalTime = 0

	mc.votingPhaseStarted = false
	mc.votingPhaseStartTime = time.Time{}
	mc.votingPhaseEndTime = time.Time{}
	mc.votingPhaseDuration = 0

	mc.countingStartTime = time.Time{}
	mc.countingEndTime = time.Time{}
	mc.countingCount = 0
	mc.countingProcessingTime = 0
}
