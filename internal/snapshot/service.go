package snapshot

import (
	"log/slog"

	"github.com/rickgao/robot-telemetry/internal/model"
	"github.com/rickgao/robot-telemetry/internal/store"
)

// Service answers snapshot requests. It holds no mutable state, so one
// Service can serve any number of concurrent callers.
type Service struct {
	loader store.Loader
	logger *slog.Logger
}

// New creates a Service reading through loader.
func New(loader store.Loader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loader: loader,
		logger: logger,
	}
}

// Robots loads the store and returns every record in wire form.
//
// Loader errors are returned unchanged so callers can classify them with
// store.Kind. A successful load with zero records returns store.ErrNoData.
func (s *Service) Robots() ([]model.WireRecord, error) {
	records, err := s.loader.Load()
	if err != nil {
		s.logger.Warn("snapshot load failed",
			"kind", store.Kind(err),
			"error", err,
		)
		return nil, err
	}

	if len(records) == 0 {
		s.logger.Debug("snapshot store is empty")
		return nil, store.ErrNoData
	}

	return model.WireRecords(records), nil
}
