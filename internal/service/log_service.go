package service

import (
	"errors"
	"fmt"
	"strings"

	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/internal/pkg/serverutils"
)

const defaultLogLimit = 50

type ILogService interface {
	List(req *dto.LogListRequest) ([]logger.LogEntry, error)
	Get(id string) (*logger.LogEntry, error)
}

type logService struct {
	logger logger.ILogger
}

func NewLogService(log logger.ILogger) ILogService {
	return &logService{logger: log}
}

func (s *logService) List(req *dto.LogListRequest) ([]logger.LogEntry, error) {
	limit := req.Limit
	if limit == 0 {
		limit = defaultLogLimit
	}
	// The file encoder writes upper-case levels.
	return s.logger.GetLogs(strings.ToUpper(req.Level), limit, req.Offset)
}

func (s *logService) Get(id string) (*logger.LogEntry, error) {
	entry, err := s.logger.GetLogById(id)
	if errors.Is(err, logger.ErrLogNotFound) {
		return nil, fmt.Errorf("log %s %w", id, serverutils.ErrNotFound)
	}
	return entry, err
}
