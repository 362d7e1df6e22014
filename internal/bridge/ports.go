package bridge

import (
	"context"
	"errors"
	"time"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

const (
	StageStart      = "start"
	LeadTypeUnknown = "unknown"
	LeadTypeAgency  = "agency"
)

type Contact struct {
	ID        string
	ChatID    string
	Stage     string
	LeadType  string
	Summary   string
	OptOut    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID                string
	ContactID         string
	Direction         Direction
	ProviderMessageID string
	Text              string
	CreatedAt         time.Time
}

// HistoryItem is a message joined with its contact, for the admin history view.
type HistoryItem struct {
	Message
	ChatID   string
	LeadType string
	Stage    string
}

// Inbound is a recognized user text message.
type Inbound struct {
	ChatID    string
	MessageID string
	Text      string
}

// Reply state of an inbound message.
type ReplyStatus string

const (
	ReplyPending   ReplyStatus = "pending"
	ReplyRetryable ReplyStatus = "retryable" // failed before any send attempt
	ReplySending   ReplyStatus = "sending"
	ReplyFailed    ReplyStatus = "failed" // send attempted, outcome unknown
	ReplySent      ReplyStatus = "sent"
)

// Settings keys.
const (
	SettingSystemPrompt  = "system_prompt"
	SettingSiteURL       = "site_url"
	SettingCandidateLink = "candidate_link"
	SettingAgencyLink    = "agency_link"
	SettingTone          = "tone"
)

var SettingKeys = []string{
	SettingSystemPrompt,
	SettingSiteURL,
	SettingCandidateLink,
	SettingAgencyLink,
	SettingTone,
}

type Settings struct {
	SystemPrompt  string
	SiteURL       string
	CandidateLink string
	AgencyLink    string
	Tone          string
}

func SettingsFromMap(m map[string]string) Settings {
	return Settings{
		SystemPrompt:  m[SettingSystemPrompt],
		SiteURL:       m[SettingSiteURL],
		CandidateLink: m[SettingCandidateLink],
		AgencyLink:    m[SettingAgencyLink],
		Tone:          m[SettingTone],
	}
}

func (s Settings) Map() map[string]string {
	return map[string]string{
		SettingSystemPrompt:  s.SystemPrompt,
		SettingSiteURL:       s.SiteURL,
		SettingCandidateLink: s.CandidateLink,
		SettingAgencyLink:    s.AgencyLink,
		SettingTone:          s.Tone,
	}
}

// ContactState is what the pipeline writes back after a reply was sent.
type ContactState struct {
	Stage     string
	LeadType  string
	Summary   string
	UpdatedAt time.Time
}

var (
	ErrStore     = errors.New("store error")
	ErrGenerator = errors.New("generator error")
	ErrDispatch  = errors.New("dispatch error")
)

// ContactRepo: per-chat conversation state
type ContactRepo interface {
	// GetContact returns nil, nil when the chat is unknown.
	GetContact(ctx context.Context, chatID string) (*Contact, error)
	// CreateContact inserts c unless the chat id exists; created=false on conflict.
	CreateContact(ctx context.Context, c *Contact) (created bool, err error)
	// MarkOptOut creates or updates the contact with opt_out=true.
	MarkOptOut(ctx context.Context, chatID string, at time.Time) error
	UpdateContactState(ctx context.Context, contactID string, st ContactState) error
}

// MessageRepo: insert-only message log plus the reply state of inbound messages
type MessageRepo interface {
	// InsertInbound atomically inserts m unless its provider id was seen before,
	// together with a pending reply state. inserted=false means duplicate.
	InsertInbound(ctx context.Context, m *Message) (inserted bool, err error)
	InsertOutbound(ctx context.Context, m *Message) error
	// ListRecentMessages returns the newest limit messages, oldest first.
	ListRecentMessages(ctx context.Context, contactID string, limit int) ([]Message, error)
	// ReclaimReply moves a retryable reply back to pending; false if it was not retryable.
	ReclaimReply(ctx context.Context, providerMessageID string) (bool, error)
	SetReplyStatus(ctx context.Context, providerMessageID string, status ReplyStatus, errText string) error
	ListHistory(ctx context.Context, limit int) ([]HistoryItem, error)
}

// SettingsStore: key/value settings
type SettingsStore interface {
	GetSettings(ctx context.Context) (Settings, error)
	PutSettings(ctx context.Context, s Settings) error
}

// Receipt: gateway acknowledgement of a sent message
type Receipt struct {
	IDMessage string `json:"idMessage"`
}

type Outbound interface {
	SendMessage(ctx context.Context, chatID string, text string) (Receipt, error)
}

type Outcome int

const (
	OutcomeReplied Outcome = iota
	OutcomeIgnored
	OutcomeOptedOut
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReplied:
		return "replied"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeOptedOut:
		return "opted_out"
	case OutcomeDuplicate:
		return "dedup"
	default:
		return "unknown"
	}
}

// Service: оркестрация одной доставки вебхука
type Service interface {
	HandleIncoming(ctx context.Context, in Inbound) (Outcome, error)
}
