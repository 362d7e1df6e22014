package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vovarama1992/wa-ai-bridge/internal/ai"
	"github.com/Vovarama1992/wa-ai-bridge/internal/logutil"
)

type Options struct {
	HistoryWindow int
	PacingMin     time.Duration
	PacingMax     time.Duration
	Pacer         Pacer
	Now           func() time.Time
}

type service struct {
	contacts ContactRepo
	messages MessageRepo
	settings SettingsStore
	gen      ai.Generator
	outbound Outbound
	opts     Options
	log      *slog.Logger
}

func NewService(
	contacts ContactRepo,
	messages MessageRepo,
	settings SettingsStore,
	gen ai.Generator,
	outbound Outbound,
	opts Options,
	logger *slog.Logger,
) Service {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 30
	}
	if opts.Pacer == nil {
		opts.Pacer = RandomPacer{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		contacts: contacts,
		messages: messages,
		settings: settings,
		gen:      gen,
		outbound: outbound,
		opts:     opts,
		log:      logger.With("component", "svc"),
	}
}

func (s *service) HandleIncoming(ctx context.Context, in Inbound) (Outcome, error) {
	log := s.log.With("chat_id", in.ChatID, "message_id", in.MessageID)
	text := NormalizeText(in.Text)
	log.Info("incoming message", "text", logutil.Truncate(text, 120))

	if IsOptOut(text) {
		if err := s.contacts.MarkOptOut(ctx, in.ChatID, s.opts.Now()); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrStore, err)
		}
		log.Info("contact opted out")
		return OutcomeOptedOut, nil
	}

	contact, err := s.resolveContact(ctx, in.ChatID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if contact.OptOut {
		log.Debug("contact opted out earlier, ignoring")
		return OutcomeIgnored, nil
	}

	inserted, err := s.messages.InsertInbound(ctx, &Message{
		ID:                newMessageID(),
		ContactID:         contact.ID,
		Direction:         DirectionIn,
		ProviderMessageID: in.MessageID,
		Text:              text,
		CreatedAt:         s.opts.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if !inserted {
		reclaimed, err := s.messages.ReclaimReply(ctx, in.MessageID)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrStore, err)
		}
		if !reclaimed {
			log.Info("duplicate delivery")
			return OutcomeDuplicate, nil
		}
		log.Info("retrying reply after earlier failure")
	}

	settings, reply, err := s.generate(ctx, contact, text)
	if err != nil {
		s.markReply(ctx, log, in.MessageID, ReplyRetryable, err)
		return 0, err
	}
	final := FinalizeReply(reply, settings)

	delay := s.opts.Pacer.DelayBeforeSend(s.opts.PacingMin, s.opts.PacingMax)
	if err := sleepCtx(ctx, delay); err != nil {
		s.markReply(ctx, log, in.MessageID, ReplyRetryable, err)
		return 0, err
	}

	// from here on a redelivery must never send again
	if err := s.messages.SetReplyStatus(ctx, in.MessageID, ReplySending, ""); err != nil {
		s.markReply(ctx, log, in.MessageID, ReplyRetryable, err)
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}

	rcpt, err := s.outbound.SendMessage(ctx, in.ChatID, final)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDispatch, err)
		s.markReply(ctx, log, in.MessageID, ReplyFailed, err)
		return 0, err
	}
	log.Info("reply sent", "id_message", rcpt.IDMessage, "delay", delay, "reply", logutil.Truncate(final, 120))
	s.markReply(ctx, log, in.MessageID, ReplySent, nil)

	if err := s.advanceState(ctx, contact, in.MessageID, final, reply); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return OutcomeReplied, nil
}

// resolveContact reads the contact and creates it on first contact. A lost
// creation race is resolved by reading the winner's row.
func (s *service) resolveContact(ctx context.Context, chatID string) (*Contact, error) {
	c, err := s.contacts.GetContact(ctx, chatID)
	if err != nil || c != nil {
		return c, err
	}

	now := s.opts.Now()
	c = &Contact{
		ID:        newContactID(),
		ChatID:    chatID,
		Stage:     StageStart,
		LeadType:  LeadTypeUnknown,
		Summary:   "",
		OptOut:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.contacts.CreateContact(ctx, c)
	if err != nil {
		return nil, err
	}
	if created {
		return c, nil
	}

	c, err = s.contacts.GetContact(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("contact vanished after create conflict")
	}
	return c, nil
}

func (s *service) generate(ctx context.Context, contact *Contact, text string) (Settings, ai.Reply, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return Settings{}, ai.Reply{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	recent, err := s.messages.ListRecentMessages(ctx, contact.ID, s.opts.HistoryWindow)
	if err != nil {
		return Settings{}, ai.Reply{}, fmt.Errorf("%w: %w", ErrStore, err)
	}

	reply, err := s.gen.Generate(ctx, BuildContext(settings, contact, recent, text))
	if err != nil {
		return Settings{}, ai.Reply{}, fmt.Errorf("%w: %w", ErrGenerator, err)
	}
	return settings, reply, nil
}

// advanceState records the sent reply and moves the contact forward.
func (s *service) advanceState(ctx context.Context, contact *Contact, providerMessageID, final string, reply ai.Reply) error {
	now := s.opts.Now()
	if err := s.messages.InsertOutbound(ctx, &Message{
		ID:                newMessageID(),
		ContactID:         contact.ID,
		Direction:         DirectionOut,
		ProviderMessageID: outboundMessageID(providerMessageID),
		Text:              final,
		CreatedAt:         now,
	}); err != nil {
		return err
	}

	st := NextState(contact, reply)
	st.UpdatedAt = now
	return s.contacts.UpdateContactState(ctx, contact.ID, st)
}

// markReply records the reply state even if the request context is gone.
func (s *service) markReply(ctx context.Context, log *slog.Logger, providerMessageID string, status ReplyStatus, cause error) {
	errText := ""
	if cause != nil {
		errText = cause.Error()
		log.Error("reply failed", "status", status, "err", cause)
	}
	if err := s.messages.SetReplyStatus(context.WithoutCancel(ctx), providerMessageID, status, errText); err != nil {
		log.Error("could not record reply status", "status", status, "err", err)
	}
}
