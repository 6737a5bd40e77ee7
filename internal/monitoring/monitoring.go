package monitoring

import (
	"sync/atomic"
	"time"

	nuts "github.com/vaudience/go-nuts"
)

// Service tracks operational counters for the ingestion pipeline and
// records notable events. Ingestion failures are invisible to the
// publishing device (no transport-level NACK), so these counters are the
// operator's only window into them.
type Service struct {
	messagesReceived atomic.Int64
	readingsStored   atomic.Int64
	messagesRejected atomic.Int64
	entriesFailed    atomic.Int64
	authFailures     atomic.Int64
}

// Snapshot is the exported counter state served by the metrics endpoint.
type Snapshot struct {
	MessagesReceived int64 `json:"messages_received"`
	ReadingsStored   int64 `json:"readings_stored"`
	MessagesRejected int64 `json:"messages_rejected"`
	EntriesFailed    int64 `json:"entries_failed"`
	AuthFailures     int64 `json:"auth_failures"`
}

// NewService creates a new monitoring service
func NewService() *Service {
	return &Service{}
}

func (s *Service) MessageReceived() { s.messagesReceived.Add(1) }
func (s *Service) ReadingStored()   { s.readingsStored.Add(1) }
func (s *Service) MessageRejected() { s.messagesRejected.Add(1) }
func (s *Service) EntryFailed()     { s.entriesFailed.Add(1) }
func (s *Service) AuthFailure()     { s.authFailures.Add(1) }

// Counters returns the current counter values.
func (s *Service) Counters() Snapshot {
	return Snapshot{
		MessagesReceived: s.messagesReceived.Load(),
		ReadingsStored:   s.readingsStored.Load(),
		MessagesRejected: s.messagesRejected.Load(),
		EntriesFailed:    s.entriesFailed.Load(),
		AuthFailures:     s.authFailures.Load(),
	}
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	ts := time.Now()
	nuts.L.Infof("[Monitoring] Event %s recorded at %v with labels: %v", eventName, ts, labels)
}
