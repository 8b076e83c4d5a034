package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/confide/internal/recorder"
	"github.com/MikeSquared-Agency/confide/internal/survey"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// Poster tells researchers in a Slack channel when participants finish a stage.
// It is a recorder sink: register it with Recorder.AddRemote so failures never
// reach the participant.
type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// Put posts a summary for feedback and experience documents. Other collections
// are ignored.
func (p *Poster) Put(ctx context.Context, doc recorder.Document) error {
	var text string
	switch body := doc.Body.(type) {
	case recorder.FeedbackRecord:
		text = formatFeedback(&body)
	case *recorder.FeedbackRecord:
		text = formatFeedback(body)
	case survey.Response:
		text = formatExperience(body)
	default:
		return nil
	}
	ts, err := p.Post(ctx, text)
	if err != nil {
		return err
	}
	p.logger.Info("posted study update to slack", "ts", ts, "collection", doc.Collection, "participant", doc.ParticipantID)
	return nil
}

// Post sends a message and returns its timestamp.
func (p *Poster) Post(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatFeedback(rec *recorder.FeedbackRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Feedback submitted:* %s\n", rec.ParticipantID)
	fmt.Fprintf(&sb, "*Items reviewed:* %d (%d necessary, %d unnecessary)\n\n",
		len(rec.Items), len(rec.Selected), len(rec.Unselected))

	if len(rec.Items) == 0 {
		sb.WriteString("_No disclosures were detected in this chat._")
		return sb.String()
	}
	for i, it := range rec.Items {
		mark := "unnecessary"
		if it.Selected {
			mark = "necessary"
		}
		fmt.Fprintf(&sb, "%d. %s [%s]\n", i+1, it.Display, mark)
	}
	return sb.String()
}

func formatExperience(resp survey.Response) string {
	return fmt.Sprintf("*Experience survey completed:* %s (%d answers)", resp.ParticipantID, len(resp.SurveyData))
}
