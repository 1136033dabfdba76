package syncengine

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/register_backend/models"
)

// Engine owns the terminal's side of the sync protocol: outbound pushes
// with offline queueing, the queue drain, the inbound merge and the
// periodic reconciliation sweep. One Engine per process.
type Engine struct {
	Shared     SharedStore
	Feed       SaleFeed
	Status     *models.SyncStatusTracker
	Logger     *logrus.Logger
	TerminalID string

	PushTimeout   time.Duration
	ProbeTimeout  time.Duration
	ProbeInterval time.Duration
	SweepInterval time.Duration
	SweepPageSize int

	draining atomic.Bool
}

func NewEngine(shared SharedStore, feed SaleFeed, status *models.SyncStatusTracker, logger *logrus.Logger, terminalID string) *Engine {
	return &Engine{
		Shared:        shared,
		Feed:          feed,
		Status:        status,
		Logger:        logger,
		TerminalID:    terminalID,
		PushTimeout:   10 * time.Second,
		ProbeTimeout:  5 * time.Second,
		ProbeInterval: 30 * time.Second,
		SweepInterval: 5 * time.Minute,
		SweepPageSize: 200,
	}
}
