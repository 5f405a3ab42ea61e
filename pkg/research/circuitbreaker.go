package research

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

// BreakerManager owns one gobreaker.CircuitBreaker per research_client_type,
// so a failing provider trips independently of the others.
type BreakerManager struct {
	logger   *logrus.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerManager builds an empty BreakerManager; breakers are created
// lazily per client type on first use.
func NewBreakerManager(logger *logrus.Logger) *BreakerManager {
	return &BreakerManager{logger: logger, breakers: map[string]*gobreaker.CircuitBreaker{}}
}

func (m *BreakerManager) breakerFor(clientType string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[clientType]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        clientType,
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.logger.WithFields(logging.NewFields().Component("research").Operation("circuit_breaker").
				Custom("client_type", name).Custom("from", from.String()).Custom("to", to.String()).ToLogrus()).
				Warn("research client circuit breaker state change")
		},
	})
	m.breakers[clientType] = b
	return b
}

// Execute runs fn through the named client type's circuit breaker.
func (m *BreakerManager) Execute(clientType string, fn func() (interface{}, error)) (interface{}, error) {
	return m.breakerFor(clientType).Execute(fn)
}
