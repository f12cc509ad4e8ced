package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dubbing/internal/config"
)

const userAgent = "dubbing"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyFileFailed(ctx context.Context, name, stage string, err error) error
	NotifyRunCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		fileFailures: cfg.Notifications.NotifyFileFailures,
	}
}

// Enabled reports whether svc delivers anywhere.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	fileFailures bool
}

func (n *ntfyService) NotifyFileFailed(ctx context.Context, name, stage string, err error) error {
	if !n.fileFailures {
		return nil
	}
	reason := "unknown error"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	message := fmt.Sprintf("%s failed", strings.TrimSpace(name))
	if stage = strings.TrimSpace(stage); stage != "" {
		message += " during " + stage
	}
	return n.send(ctx, payload{
		title:    "Dubbing - File Failed",
		message:  message + ": " + reason,
		tags:     []string{"dubbing", "file", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	duration = max(duration.Round(time.Second), 0)

	data := payload{
		title:   "Dubbing - Run Complete",
		message: fmt.Sprintf("Dubbed %d files in %s", succeeded, duration),
		tags:    []string{"dubbing", "run", "completed"},
	}
	if failed > 0 {
		data.title = "Dubbing - Run Complete (with errors)"
		data.message = fmt.Sprintf("%d succeeded, %d failed in %s", succeeded, failed, duration)
		data.tags = []string{"dubbing", "run", "warning"}
		if succeeded == 0 {
			data.priority = "high"
		}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Dubbing - Test",
		message:  "Notification system test",
		tags:     []string{"dubbing", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyFileFailed(context.Context, string, string, error) error     { return nil }
func (noopService) NotifyRunCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
