package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"brandkit/src/config"
	"brandkit/src/ogcard"
)

// Sender posts build notifications to an ntfy topic
type Sender struct {
	cfg    config.NtfyConfig
	client *http.Client
}

// Message represents a ntfy notification
type Message struct {
	Title    string
	Body     string
	Tags     []string
	Priority int
	Actions  []Action
}

// Action represents a clickable action button
type Action struct {
	Action string `json:"action"` // "view" or "http"
	Label  string `json:"label"`
	URL    string `json:"url"`
	Clear  bool   `json:"clear,omitempty"`
}

// NewSender creates a new ntfy sender
func NewSender(cfg config.NtfyConfig) *Sender {
	return &Sender{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

// Enabled reports whether notifications are switched on
func (s *Sender) Enabled() bool {
	return s != nil && s.cfg.Enabled && s.cfg.Topic != ""
}

// SendBuildNotification reports the outcome of one asset build
func (s *Sender) SendBuildNotification(ctx context.Context, revision string, files []string, buildErr error) error {
	if !s.Enabled() {
		log.Debug("ntfy notifications disabled")
		return nil
	}

	msg := Message{
		Title:    fmt.Sprintf("Brand assets %s rebuilt", revision),
		Body:     fmt.Sprintf("%d files written\n\n%s", len(files), strings.Join(files, "\n")),
		Tags:     []string{"art"},
		Priority: 2,
	}
	if card := ogcard.FileName(config.RevisionSuffix(revision)); s.cfg.PublicURL != "" && slices.Contains(files, card) {
		msg.Actions = []Action{{
			Action: "view",
			Label:  "Open OG card",
			URL:    strings.TrimRight(s.cfg.PublicURL, "/") + "/" + card,
		}}
	}
	if buildErr != nil {
		msg.Title = fmt.Sprintf("Brand assets %s failed", revision)
		msg.Body = buildErr.Error()
		msg.Tags = []string{"warning"}
		msg.Priority = 4
		msg.Actions = nil
	}
	return s.Send(ctx, msg)
}

// Send posts msg using ntfy's header API: body as message, metadata as headers
func (s *Sender) Send(ctx context.Context, msg Message) error {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(s.cfg.Server, "/"), s.cfg.Topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(msg.Body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Title", msg.Title)
	if msg.Priority > 0 {
		req.Header.Set("Priority", strconv.Itoa(msg.Priority))
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if len(msg.Actions) > 0 {
		actionsJSON, err := json.Marshal(msg.Actions)
		if err != nil {
			return fmt.Errorf("failed to encode actions: %w", err)
		}
		req.Header.Set("Actions", string(actionsJSON))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	log.WithField("title", msg.Title).Info("📱 ntfy notification sent")
	return nil
}
