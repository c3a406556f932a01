package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/common/kafka"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/common/models"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/manifest"
	"github.com/synaptica-ai/phenoxtract/pkg/pipeline"
)

// MaxAttempts bounds redelivered requests before a run is marked failed.
const MaxAttempts = 3

// Runner executes one manifest under runID.
type Runner func(ctx context.Context, m *manifest.Manifest, runID string) (*pipeline.Result, error)

// PipelineRunner runs manifests with pipeline.Run.
func PipelineRunner(opts pipeline.Options) Runner {
	return func(ctx context.Context, m *manifest.Manifest, runID string) (*pipeline.Result, error) {
		o := opts
		o.RunID = runID
		return pipeline.Run(ctx, m, o)
	}
}

type Service struct {
	validator *Validator
	repo      RunStore
	events    *kafka.Producer
	runner    Runner
	root      string
	statusTTL time.Duration
	cache     *StatusCache

	wg sync.WaitGroup
}

func NewService(validator *Validator, repo RunStore, events *kafka.Producer, runner Runner, manifestRoot string, ttl time.Duration) *Service {
	return &Service{
		validator: validator,
		repo:      repo,
		events:    events,
		runner:    runner,
		root:      manifestRoot,
		statusTTL: ttl,
	}
}

func (s *Service) WithCache(c *StatusCache) *Service {
	s.cache = c
	return s
}

// Submit records the request and starts the run in the background.
func (s *Service) Submit(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionResponse, error) {
	run, m, err := s.accept(ctx, uuid.New().String(), req)
	if err != nil {
		return nil, err
	}

	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.execute(runCtx, run, m, false); err != nil {
			logger.Log.WithError(err).WithField("run_id", run.ID).Warn("extraction run failed")
		}
	}()

	return &models.ExtractionResponse{ID: run.ID, Status: StatusQueued, Timestamp: time.Now().UTC()}, nil
}

// Process records the request and runs it before returning.
func (s *Service) Process(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionResponse, error) {
	run, m, err := s.accept(ctx, uuid.New().String(), req)
	if err != nil {
		return nil, err
	}
	status := StatusCompleted
	if err := s.execute(ctx, run, m, false); err != nil {
		status = StatusFailed
	}
	return &models.ExtractionResponse{ID: run.ID, Status: status, Timestamp: time.Now().UTC()}, nil
}

// HandleEvent serves extraction requests from the event bus. The event id is
// the run id, so a redelivered event resumes its run instead of starting a
// new one. Only failures worth retrying are returned.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	if event.Type != models.EventExtractionRequested {
		return nil
	}
	req, err := decodeRequest(event)
	if err != nil {
		logger.Log.WithError(err).WithField("event_id", event.ID).Warn("dropping malformed extraction request")
		return nil
	}

	existing, err := s.repo.Get(ctx, event.ID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("loading run %s: %w", event.ID, err)
	case existing.Terminal():
		return nil
	case existing.RetryCount+1 >= MaxAttempts:
		return s.setStatus(ctx, existing.ID, StatusFailed, "too many attempts")
	default:
		if err := s.repo.IncrementRetry(ctx, existing.ID); err != nil {
			return err
		}
		m, err := s.loadManifest(req)
		if err != nil {
			return s.setStatus(ctx, existing.ID, StatusFailed, err.Error())
		}
		return s.execute(ctx, existing, m, true)
	}

	run, m, err := s.accept(ctx, event.ID, req)
	if err != nil {
		if IsRequestError(err) {
			logger.Log.WithError(err).WithField("event_id", event.ID).Warn("rejected extraction request")
			return nil
		}
		return err
	}
	return s.execute(ctx, run, m, true)
}

func decodeRequest(event models.Event) (models.ExtractionRequest, error) {
	var req models.ExtractionRequest
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return req, err
	}
	err = json.Unmarshal(raw, &req)
	return req, err
}

func (s *Service) accept(ctx context.Context, id string, req models.ExtractionRequest) (*Run, *manifest.Manifest, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, nil, err
	}
	m, err := s.loadManifest(req)
	if err != nil {
		return nil, nil, err
	}

	metadata := make(map[string]interface{}, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	name := req.Manifest
	if name == "" {
		name = "inline"
	}
	run := &Run{
		ID:          id,
		Manifest:    name,
		Cohort:      m.Pipeline.MetaData.CohortName,
		RequestedBy: req.RequestedBy,
		Metadata:    metadata,
		Status:      StatusQueued,
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("persisting extraction run: %w", err)
	}
	return run, m, nil
}

// loadManifest reads the requested manifest. Broken manifests are the
// caller's problem and come back as RequestErrors.
func (s *Service) loadManifest(req models.ExtractionRequest) (*manifest.Manifest, error) {
	var (
		m   *manifest.Manifest
		err error
	)
	if strings.TrimSpace(req.ManifestYAML) != "" {
		m, err = manifest.Parse([]byte(req.ManifestYAML), s.root)
	} else {
		m, err = manifest.Load(filepath.Join(s.root, filepath.Clean(req.Manifest)))
	}
	if err != nil {
		return nil, RequestError{reason: err}
	}
	return m, nil
}

// execute runs the manifest and records the outcome. With retry set, a
// failure other than a configuration error leaves the run queued and is
// returned so the event is redelivered. Ledger write failures are returned
// too; a run that cannot be marked running is not started.
func (s *Service) execute(ctx context.Context, run *Run, m *manifest.Manifest, retry bool) error {
	if err := s.setStatus(ctx, run.ID, StatusRunning, ""); err != nil {
		return err
	}
	s.publish(ctx, models.EventExtractionStarted, map[string]interface{}{
		"run_id": run.ID,
		"cohort": run.Cohort,
	})

	res, err := s.runner(ctx, m, run.ID)
	if err != nil {
		if retry && !extract.IsConfigError(err) {
			return errors.Join(err, s.setStatus(ctx, run.ID, StatusQueued, err.Error()))
		}
		statusErr := s.setStatus(ctx, run.ID, StatusFailed, err.Error())
		s.publish(ctx, models.EventExtractionFailed, map[string]interface{}{
			"run_id": run.ID,
			"cohort": run.Cohort,
			"error":  err.Error(),
		})
		if extract.IsConfigError(err) {
			return statusErr
		}
		return errors.Join(err, statusErr)
	}

	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return err
	}
	if err := s.repo.Complete(ctx, run.ID, summary); err != nil {
		logger.Log.WithError(err).WithField("run_id", run.ID).Error("failed to record run summary")
		return err
	}
	s.publish(ctx, models.EventExtractionCompleted, map[string]interface{}{
		"run_id":   run.ID,
		"cohort":   run.Cohort,
		"patients": res.Summary.Patients,
		"packets":  res.Summary.Packets,
		"issues":   res.Summary.Issues,
	})
	return nil
}

// setStatus writes a status transition to the run ledger. Failures are
// logged and returned.
func (s *Service) setStatus(ctx context.Context, id, status, errMsg string) error {
	if err := s.repo.UpdateStatus(ctx, id, status, errMsg); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"run_id": id,
			"status": status,
		}).Error("failed to update run status")
		return err
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, eventType, config.ToolName, data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish run event")
	}
}

func (s *Service) Status(ctx context.Context, id string) (*Run, error) {
	if run, ok := s.cache.Get(ctx, id); ok {
		return run, nil
	}
	run, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, run)
	return run, nil
}

func (s *Service) Cleanup(ctx context.Context) error {
	return s.repo.CleanupExpired(ctx, s.statusTTL)
}

// Wait blocks until background runs started by Submit have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
