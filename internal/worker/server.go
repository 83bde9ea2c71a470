package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoomtile/zoomtile/internal/codec"
	"github.com/zoomtile/zoomtile/internal/config"
	"github.com/zoomtile/zoomtile/internal/id"
	"github.com/zoomtile/zoomtile/internal/iiif"
	"github.com/zoomtile/zoomtile/internal/queue"
	"github.com/zoomtile/zoomtile/internal/render"
	"github.com/zoomtile/zoomtile/internal/storage"
	"github.com/zoomtile/zoomtile/internal/store"
	"github.com/zoomtile/zoomtile/internal/webhook"
)

const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	sem           chan struct{}
	renderer      *render.Service
	storage       *storage.Client
	webhookClient webhookSender
	renderStore   store.RenderStore
	metrics       *metrics
	tracer        trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	renderer *render.Service,
	storageClient *storage.Client,
	webhookClient *webhook.Client,
	renderStore store.RenderStore,
) (*Server, error) {
	if renderer == nil {
		return nil, fmt.Errorf("render service is required")
	}
	if storageClient == nil {
		return nil, fmt.Errorf("storage client is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:           make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		renderer:      renderer,
		storage:       storageClient,
		webhookClient: webhookClient,
		renderStore:   renderStore,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("zoomtile/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeRenderImage, s.handleRenderImage)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// RecentRendersHandler serves the newest render log entries as JSON, newest
// first. Limit comes from the ?limit query parameter; the store's default
// applies when absent.
func (s *Server) RecentRendersHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.renderStore == nil {
			http.Error(w, "render log disabled", http.StatusNotFound)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := s.renderStore.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Printf("render log query failed err=%v", err)
			http.Error(w, "render log unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			s.logger.Printf("render log encode failed err=%v", err)
		}
	})
}

func (s *Server) handleRenderImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := statusFailed
	format := "unknown"

	payload, err := queue.ParseRenderPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	sel, err := iiif.ParseSelector(payload.Selector)
	if err != nil {
		return fmt.Errorf("parse selector %q: %v: %w", payload.Selector, err, asynq.SkipRetry)
	}
	format = sel.Format

	ctx, span := s.tracer.Start(ctx, "worker.render_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("render.job_id", payload.JobID),
		attribute.String("render.identifier", payload.Identifier),
		attribute.String("render.selector", payload.Selector),
	)
	defer span.End()
	defer func() {
		s.metrics.renderDuration.WithLabelValues(format, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.rendersTotal.WithLabelValues(format, outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeRenders.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeRenders.Dec()
	}()

	s.logger.Printf(
		"Rendering... job_id=%s identifier=%s selector=%s output_key=%s",
		payload.JobID,
		payload.Identifier,
		payload.Selector,
		payload.OutputKey,
	)

	var buf bytes.Buffer
	if err := s.renderer.Render(ctx, payload.Identifier, sel, &buf); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		s.dispatchWebhook(ctx, payload, webhook.EventRenderFailed, webhook.RenderEvent{
			JobID:      payload.JobID,
			Identifier: payload.Identifier,
			Selector:   payload.Selector,
			Error:      err.Error(),
		})
		if isPermanent(err) {
			return fmt.Errorf("render: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("render: %w", err)
	}

	outputKey := strings.TrimSpace(payload.OutputKey)
	if outputKey == "" {
		outputKey = fmt.Sprintf("renders/%s.%s", payload.JobID, sel.Format)
	}

	if err := s.storage.WriteObject(ctx, outputKey, buf.Bytes(), codec.ContentType(sel.Format)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return fmt.Errorf("upload render: %w", err)
	}

	s.logger.Printf("Rendered job_id=%s output_key=%s bytes=%d", payload.JobID, outputKey, buf.Len())
	s.recordRender(ctx, payload, sel, buf.Len(), time.Since(startedAt))

	if err := s.dispatchWebhook(ctx, payload, webhook.EventRenderCompleted, webhook.RenderEvent{
		JobID:      payload.JobID,
		Identifier: payload.Identifier,
		Selector:   payload.Selector,
		OutputKey:  outputKey,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = statusSucceeded
	span.SetStatus(codes.Ok, "rendered")
	return nil
}

// isPermanent reports whether retrying could ever succeed. Bad selectors,
// unknown identifiers, and unsupported formats fail the same way every
// attempt.
func isPermanent(err error) bool {
	return errors.Is(err, iiif.ErrNotFound) ||
		errors.Is(err, iiif.ErrInvalidParameters) ||
		errors.Is(err, iiif.ErrUnsupportedFormat) ||
		errors.Is(err, iiif.ErrUnsupportedOperation)
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.RenderPayload, event string, body webhook.RenderEvent) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", payload.JobID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordRender(ctx context.Context, payload queue.RenderPayload, sel iiif.Selector, encodedBytes int, elapsed time.Duration) {
	if s.renderStore == nil {
		return
	}

	info, err := s.renderer.Info(ctx, payload.Identifier)
	if err != nil {
		s.logger.Printf("render log dimensions lookup failed job_id=%s err=%v", payload.JobID, err)
		return
	}
	geom, err := iiif.Resolve(info.Width, info.Height, sel)
	if err != nil {
		s.logger.Printf("render log geometry failed job_id=%s err=%v", payload.JobID, err)
		return
	}

	width, height := geom.Width, geom.Height
	if rot := int(sel.Rotation) % 180; rot == 90 {
		width, height = height, width
	}

	durationMS := elapsed.Milliseconds()
	if durationMS < 1 {
		durationMS = 1
	}

	entry := store.RenderLog{
		ID:         id.New(),
		Identifier: payload.Identifier,
		Selector:   payload.Selector,
		Format:     sel.Format,
		Width:      width,
		Height:     height,
		Bytes:      int64(encodedBytes),
		DurationMS: durationMS,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.renderStore.Record(ctx, entry); err != nil {
		s.logger.Printf("render log write failed job_id=%s err=%v", payload.JobID, err)
		return
	}

	s.metrics.outputBytesTotal.Add(float64(encodedBytes))
	s.metrics.outputPixelsTotal.Add(float64(width * height))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
