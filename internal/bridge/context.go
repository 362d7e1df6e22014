package bridge

import (
	"strings"

	"github.com/Vovarama1992/wa-ai-bridge/internal/ai"
)

const (
	// FallbackReply is sent when the generator returns an empty reply.
	FallbackReply = "Понял. Напиши, пожалуйста: страна и какая работа интересует."

	linkPrefix = "\n\nАнкета/регистрация: "

	summaryLimit = 2000
)

// BuildContext composes the generator request from settings, contact state
// and the recent message window (oldest first).
func BuildContext(st Settings, c *Contact, recent []Message, userText string) ai.Request {
	var b strings.Builder
	b.WriteString(st.SystemPrompt)
	annotate := func(label, value string) {
		if value == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(label)
		b.WriteString(value)
	}
	annotate("Тон общения: ", st.Tone)
	annotate("Основной сайт: ", st.SiteURL)
	annotate("Ссылка для кандидата: ", st.CandidateLink)
	annotate("Ссылка для агентства: ", st.AgencyLink)

	turns := make([]ai.Turn, 0, len(recent))
	for _, m := range recent {
		turns = append(turns, ai.Turn{Direction: string(m.Direction), Text: m.Text})
	}

	stage := c.Stage
	if stage == "" {
		stage = StageStart
	}

	return ai.Request{
		SystemPrompt: b.String(),
		UserText:     userText,
		Memory:       ai.Memory{Summary: c.Summary, Recent: turns},
		Stage:        stage,
	}
}

// FinalizeReply applies the fallback for empty replies and the need-link rule.
func FinalizeReply(out ai.Reply, st Settings) string {
	reply := NormalizeText(out.Reply)
	if reply == "" {
		reply = FallbackReply
	}
	if out.NeedLink {
		link := st.CandidateLink
		if out.LeadType == LeadTypeAgency {
			link = st.AgencyLink
		}
		if link == "" {
			link = st.SiteURL
		}
		if link != "" {
			reply += linkPrefix + link
		}
	}
	return reply
}

// NextState computes the contact state after a sent reply.
func NextState(c *Contact, out ai.Reply) ContactState {
	stage := c.Stage
	if out.NextStage != "" {
		stage = out.NextStage
	}
	leadType := out.LeadType
	if leadType == "" {
		leadType = LeadTypeUnknown
	}
	return ContactState{
		Stage:    stage,
		LeadType: leadType,
		Summary:  mergeSummary(c.Summary, out.MemoryUpdate),
	}
}

// mergeSummary appends update; once the summary is full, later updates are dropped.
func mergeSummary(summary, update string) string {
	if update == "" {
		return capRunes(summary, summaryLimit)
	}
	if summary != "" {
		summary += "\n"
	}
	return capRunes(summary+update, summaryLimit)
}

func capRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
