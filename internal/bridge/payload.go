package bridge

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Green-API sends many notification kinds; only this one is a user message.
const typeIncomingMessage = "incomingMessageReceived"

// Field paths tried in order, first non-empty wins.
var (
	chatIDPaths = [][]string{
		{"senderData", "chatId"},
		{"chatId"},
		{"chatID"},
		{"data", "chatId"},
	}
	messageIDPaths = [][]string{
		{"idMessage"},
		{"messageId"},
		{"id"},
		{"data", "idMessage"},
		{"senderData", "idMessage"},
	}
	textPaths = [][]string{
		{"messageData", "textMessageData", "textMessage"},
		{"messageData", "extendedTextMessageData", "text"},
		{"messageData", "quotedMessage", "textMessageData", "textMessage"},
		{"text"},
		{"data", "text"},
	}
)

// NormalizePayload extracts the chat, message id and text of a user message.
// ok=false means the payload is not a user text message and must be
// acknowledged without processing.
func NormalizePayload(body map[string]any) (Inbound, bool) {
	if t, has := body["typeWebhook"]; has {
		if s, _ := t.(string); s != typeIncomingMessage {
			return Inbound{}, false
		}
	}

	in := Inbound{
		ChatID:    firstString(body, chatIDPaths),
		MessageID: firstString(body, messageIDPaths),
		Text:      firstString(body, textPaths),
	}
	if in.ChatID == "" || in.MessageID == "" || in.Text == "" {
		return Inbound{}, false
	}
	return in, true
}

func firstString(body map[string]any, paths [][]string) string {
	for _, p := range paths {
		if s := scalarString(lookup(body, p)); s != "" {
			return s
		}
	}
	return ""
}

func lookup(v any, path []string) any {
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

// scalarString renders strings and non-zero numbers; anything else is absent.
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return ""
		}
		return x
	case json.Number:
		if f, err := x.Float64(); err == nil && f == 0 {
			return ""
		}
		return x.String()
	case float64:
		if x == 0 {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
