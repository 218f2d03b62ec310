package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"torrent-notify/internal/domain"
	"torrent-notify/internal/metrics"
	"torrent-notify/internal/repository"
	"torrent-notify/internal/torrentclient"
)

// Submission stages reported by SubmissionError.
const (
	StageResolve  = "resolve"
	StageAdd      = "add"
	StageRegister = "register"
)

// SubmissionError reports why a torrent was not registered. No wait list entry exists afterwards.
type SubmissionError struct {
	Stage string
	Err   error
}

func (e *SubmissionError) Error() string {
	return e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ResolveError wraps a failure to turn an attachment into a fetchable URL.
func ResolveError(err error) error {
	return &SubmissionError{Stage: StageResolve, Err: err}
}

// SubmissionService submits torrents and registers the submitting chat for the finish notification.
type SubmissionService interface {
	Submit(ctx context.Context, sourceURL string, recipientID int64) (*domain.Torrent, error)
}

type submissionService struct {
	torrents torrentclient.Client
	waitList repository.WaitListRepository
	logger   *logrus.Logger
}

func NewSubmissionService(torrents torrentclient.Client, waitList repository.WaitListRepository, logger *logrus.Logger) SubmissionService {
	if logger == nil {
		logger = logrus.New()
	}
	return &submissionService{
		torrents: torrents,
		waitList: waitList,
		logger:   logger,
	}
}

func (s *submissionService) Submit(ctx context.Context, sourceURL string, recipientID int64) (torrent *domain.Torrent, err error) {
	defer func() {
		result := "ok"
		var subErr *SubmissionError
		if errors.As(err, &subErr) {
			result = subErr.Stage
		}
		metrics.SubmissionsTotal.WithLabelValues(result).Inc()
	}()

	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, &SubmissionError{Stage: StageResolve, Err: errors.New("torrent url is required")}
	}
	if recipientID == 0 {
		return nil, &SubmissionError{Stage: StageResolve, Err: errors.New("recipient is required")}
	}

	torrent, err = s.torrents.AddByURL(ctx, sourceURL)
	if err != nil {
		return nil, &SubmissionError{Stage: StageAdd, Err: fmt.Errorf("add torrent: %w", err)}
	}

	logger := s.logger.WithFields(logrus.Fields{"torrent_id": torrent.ID, "chat_id": recipientID})
	if err := s.waitList.Put(ctx, torrent.ID, recipientID); err != nil {
		logger.Errorf("register wait list entry: %v", err)
		return nil, &SubmissionError{Stage: StageRegister, Err: fmt.Errorf("register torrent: %w", err)}
	}

	logger.Infof("torrent %q submitted", torrent.Name)
	return torrent, nil
}

var _ SubmissionService = (*submissionService)(nil)
