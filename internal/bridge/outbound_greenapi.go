package bridge

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
)

type GreenAPIConfig struct {
	BaseURL    string // https://api.green-api.com
	IDInstance string
	Token      string
}

type GreenAPIOutbound struct {
	baseURL    string
	idInstance string
	token      string
	client     *http.Client
	log        *slog.Logger
}

func NewGreenAPIOutbound(cfg GreenAPIConfig, logger *slog.Logger) *GreenAPIOutbound {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.green-api.com"
	}
	return &GreenAPIOutbound{
		baseURL:    base,
		idInstance: cfg.IDInstance,
		token:      cfg.Token,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        logger.With("component", "greenapi"),
	}
}

// SendMessage отправляет текст в чат. Повторов нет: сбой отдаётся наверх.
func (g *GreenAPIOutbound) SendMessage(ctx context.Context, chatID string, text string) (Receipt, error) {
	b, err := json.Marshal(map[string]string{
		"chatId":  chatID,
		"message": text,
	})
	if err != nil {
		return Receipt{}, err
	}

	url := fmt.Sprintf("%s/waInstance%s/sendMessage/%s", g.baseURL, g.idInstance, g.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("green-api sendMessage: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return Receipt{}, fmt.Errorf("green-api sendMessage failed: %s body=%s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var rcpt Receipt
	if err := json.Unmarshal(respBody, &rcpt); err != nil {
		// delivered anyway; the receipt is informational
		g.log.Warn("unparseable receipt", "body", string(respBody), "err", err)
	}
	g.log.Debug("message sent", "chat_id", chatID, "id_message", rcpt.IDMessage)
	return rcpt, nil
}
