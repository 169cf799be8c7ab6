package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/tasks"
)

// Server wraps the asynq worker that runs the relay's background tasks.
type Server struct {
	server  *asynq.Server
	log     *logrus.Entry
	sweeper *LockSweepHandler
}

// NewServer builds the worker server.
func NewServer(redisOpt asynq.RedisClientOpt, sweeper *LockSweepHandler, logger *logrus.Logger) *Server {
	logEntry := logger.WithField("component", "worker_server")
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 2,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)
	return &Server{server: server, log: logEntry, sweeper: sweeper}
}

// Start runs the worker. It should be called in its own goroutine.
func (s *Server) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeLockSweep, s.sweeper.ProcessTask)

	s.log.Info("Worker server starting...")
	if err := s.server.Run(mux); err != nil {
		if !errors.Is(err, asynq.ErrServerClosed) {
			s.log.Fatalf("Could not run worker server: %v", err)
		}
		s.log.Info("Worker server stopped.")
	}
}

// Shutdown stops the worker gracefully.
func (s *Server) Shutdown() {
	s.log.Info("Shutting down worker server...")
	s.server.Shutdown()
}
