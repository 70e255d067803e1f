package tasks

import (
	"errors"
	"fmt"

	"mdmc/internal/config"
	"mdmc/internal/utils/logger"

	"github.com/hibiken/asynq"
)

var queuePriorities = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// Server handles task processing
type Server struct {
	server      *asynq.Server
	handler     *TaskHandler
	concurrency int
	logger      *logger.Logger
}

func NewServer(redis config.RedisConfig, worker config.WorkerConfig, handler *TaskHandler, logger *logger.Logger) *Server {
	concurrency := worker.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	server := asynq.NewServer(redisOpt(redis), asynq.Config{
		Concurrency:    concurrency,
		Queues:         queuePriorities,
		StrictPriority: true,
		Logger:         asynqLogger{logger.With("asynq")},
	})

	return &Server{
		server:      server,
		handler:     handler,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start begins processing in the background.
func (s *Server) Start() error {
	mux := asynq.NewServeMux()
	s.handler.Register(mux)

	s.logger.Info("starting task processing server concurrency %d queues %v", s.concurrency, queuePriorities)

	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight tasks and stops the server.
func (s *Server) Shutdown() {
	s.logger.Info("shutting down task processing server")
	s.server.Shutdown()
}

// asynqLogger routes asynq's own logging through ours.
type asynqLogger struct {
	l *logger.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug("%s", fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info("%s", fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn("%s", fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) {
	_ = a.l.Error("asynq", errors.New(fmt.Sprint(args...)))
}
func (a asynqLogger) Fatal(args ...interface{}) {
	_ = a.l.Error("asynq fatal", errors.New(fmt.Sprint(args...)))
}
