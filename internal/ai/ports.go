package ai

import "context"

// Generator: внешний генератор ответов, не знает ни про WhatsApp, ни про БД
type Generator interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}

// Turn: одна реплика из недавней истории
type Turn struct {
	Direction string `json:"direction"` // "in" | "out"
	Text      string `json:"text"`
}

type Memory struct {
	Summary string `json:"summary"`
	Recent  []Turn `json:"recent"`
}

type Request struct {
	SystemPrompt string
	UserText     string
	Memory       Memory
	Stage        string
}

// Reply: ответ генератора вместе с управляющими сигналами диалога
type Reply struct {
	Reply        string `json:"reply"`
	NextStage    string `json:"next_stage,omitempty"`
	LeadType     string `json:"lead_type,omitempty"`
	NeedLink     bool   `json:"need_link,omitempty"`
	MemoryUpdate string `json:"memory_update,omitempty"`
}
