package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"reelforge/internal/config"
	"reelforge/internal/logging"
)

const userAgent = "ReelForge/0.1.0"

// Service pushes run lifecycle events to a webhook. It satisfies the
// pipeline's Notifier contract: best-effort, never surfacing failures
// into the run.
type Service struct {
	endpoint   string
	completion bool
	errors     bool
	client     *http.Client
	logger     *slog.Logger
}

// NewService builds a webhook notifier. When no webhook URL is
// configured every event is a silent no-op.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL)

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Service{
		endpoint:   endpoint,
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With(logging.String(logging.FieldComponent, "notifications")),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// RunCompleted announces a finished run and its output file.
func (s *Service) RunCompleted(ctx context.Context, runID, videoPath string) {
	if !s.completion {
		return
	}
	data := payload{
		title:    "ReelForge - Run Complete",
		message:  fmt.Sprintf("Video ready: %s\nRun: %s", videoPath, runID),
		tags:     []string{"reelforge", "run", "completed"},
		priority: "high",
	}
	s.send(ctx, data)
}

// RunFailed announces a failed run, naming the stage that stopped it.
func (s *Service) RunFailed(ctx context.Context, runID, stage, cause string) {
	if !s.errors {
		return
	}
	data := payload{
		title:    "ReelForge - Run Failed",
		message:  fmt.Sprintf("Run %s failed at stage %s: %s", runID, stage, cause),
		tags:     []string{"reelforge", "run", "failed"},
		priority: "high",
	}
	s.send(ctx, data)
}

// Test sends a throwaway event so operators can verify delivery.
func (s *Service) Test(ctx context.Context) error {
	data := payload{
		title:    "ReelForge - Test",
		message:  "Notification system test",
		tags:     []string{"reelforge", "test"},
		priority: "low",
	}
	return s.push(ctx, data)
}

func (s *Service) send(ctx context.Context, data payload) {
	if err := s.push(ctx, data); err != nil {
		s.logger.Warn("notification delivery failed", logging.Error(err))
	}
}

func (s *Service) push(ctx context.Context, data payload) error {
	if s.endpoint == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
