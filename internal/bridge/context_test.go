package bridge

import (
	"strings"
	"testing"

	"github.com/Vovarama1992/wa-ai-bridge/internal/ai"
)

func TestBuildContext(t *testing.T) {
	st := Settings{SystemPrompt: "Ты рекрутер.", Tone: "дружелюбный", AgencyLink: "https://x/a"}
	c := &Contact{Stage: "qualifying", Summary: "из Казахстана"}
	recent := []Message{
		{Direction: DirectionIn, Text: "Привет"},
		{Direction: DirectionOut, Text: "Здравствуйте!"},
		{Direction: DirectionIn, Text: "Ищу работу"},
	}

	req := BuildContext(st, c, recent, "Ищу работу")

	want := "Ты рекрутер.\n\nТон общения: дружелюбный\n\nСсылка для агентства: https://x/a"
	if req.SystemPrompt != want {
		t.Errorf("SystemPrompt = %q, want %q", req.SystemPrompt, want)
	}
	if strings.Contains(req.SystemPrompt, "Основной сайт") || strings.Contains(req.SystemPrompt, "кандидата") {
		t.Error("empty settings must not be annotated")
	}
	if req.Stage != "qualifying" || req.UserText != "Ищу работу" || req.Memory.Summary != "из Казахстана" {
		t.Errorf("request = %+v", req)
	}
	if len(req.Memory.Recent) != 3 || req.Memory.Recent[1] != (ai.Turn{Direction: "out", Text: "Здравствуйте!"}) {
		t.Errorf("recent = %+v", req.Memory.Recent)
	}
}

func TestBuildContext_EmptySettings(t *testing.T) {
	req := BuildContext(Settings{Tone: "строгий"}, &Contact{}, nil, "hi")
	if req.SystemPrompt != "Тон общения: строгий" {
		t.Errorf("SystemPrompt = %q", req.SystemPrompt)
	}
	if req.Stage != StageStart {
		t.Errorf("Stage = %q, want start", req.Stage)
	}
	if req.Memory.Recent == nil || len(req.Memory.Recent) != 0 {
		t.Errorf("Recent = %#v, want empty slice", req.Memory.Recent)
	}
}

func TestFinalizeReply(t *testing.T) {
	st := Settings{SiteURL: "https://x", CandidateLink: "https://x/c", AgencyLink: "https://x/a"}

	tests := []struct {
		name string
		out  ai.Reply
		st   Settings
		want string
	}{
		{"plain", ai.Reply{Reply: "Привет"}, st, "Привет"},
		{"empty falls back", ai.Reply{Reply: ""}, st, FallbackReply},
		{"empty with link", ai.Reply{NeedLink: true}, st, FallbackReply + "\n\nАнкета/регистрация: https://x/c"},
		{"candidate link", ai.Reply{Reply: "Вот", NeedLink: true, LeadType: "candidate"}, st, "Вот\n\nАнкета/регистрация: https://x/c"},
		{"unknown lead gets candidate link", ai.Reply{Reply: "Вот", NeedLink: true}, st, "Вот\n\nАнкета/регистрация: https://x/c"},
		{"agency link", ai.Reply{Reply: "Вот анкета", NeedLink: true, LeadType: "agency"}, Settings{AgencyLink: "https://x/a"}, "Вот анкета\n\nАнкета/регистрация: https://x/a"},
		{"agency falls back to site", ai.Reply{Reply: "Вот", NeedLink: true, LeadType: "agency"}, Settings{SiteURL: "https://x", CandidateLink: "https://x/c"}, "Вот\n\nАнкета/регистрация: https://x"},
		{"no link available", ai.Reply{Reply: "Вот", NeedLink: true}, Settings{}, "Вот"},
		{"link not requested", ai.Reply{Reply: "Вот", LeadType: "agency"}, st, "Вот"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FinalizeReply(tt.out, tt.st); got != tt.want {
				t.Errorf("FinalizeReply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextState(t *testing.T) {
	c := &Contact{Stage: "qualifying", LeadType: "candidate", Summary: "из Казахстана"}

	st := NextState(c, ai.Reply{Reply: "ok"})
	if st.Stage != "qualifying" || st.LeadType != LeadTypeUnknown || st.Summary != "из Казахстана" {
		t.Errorf("no signals: %+v", st)
	}

	st = NextState(c, ai.Reply{NextStage: "offer", LeadType: "agency", MemoryUpdate: "агентство в Польше"})
	if st.Stage != "offer" || st.LeadType != "agency" || st.Summary != "из Казахстана\nагентство в Польше" {
		t.Errorf("with signals: %+v", st)
	}

	st = NextState(&Contact{Stage: StageStart}, ai.Reply{MemoryUpdate: "первый факт"})
	if st.Summary != "первый факт" {
		t.Errorf("summary from empty = %q", st.Summary)
	}
}

func TestMergeSummaryCap(t *testing.T) {
	long := strings.Repeat("я", summaryLimit)
	got := mergeSummary(long, "новое")
	if n := len([]rune(got)); n != summaryLimit {
		t.Fatalf("summary length = %d runes, want %d", n, summaryLimit)
	}
	if got != long {
		t.Errorf("stored summary was rewritten: ...%q", string([]rune(got)[summaryLimit-10:]))
	}
}

func TestMergeSummaryKeepsHead(t *testing.T) {
	first := "A" + strings.Repeat("x", summaryLimit-1)
	st := NextState(&Contact{Stage: StageStart}, ai.Reply{MemoryUpdate: first})
	st = NextState(&Contact{Stage: StageStart, Summary: st.Summary}, ai.Reply{MemoryUpdate: "NEWFACT"})

	if n := len([]rune(st.Summary)); n != summaryLimit {
		t.Fatalf("summary length = %d runes, want %d", n, summaryLimit)
	}
	if !strings.HasPrefix(st.Summary, "A") || strings.Contains(st.Summary, "NEWFACT") {
		t.Errorf("summary head = %q, tail = %q", st.Summary[:5], st.Summary[len(st.Summary)-10:])
	}
}

func TestMergeSummaryPartialFit(t *testing.T) {
	head := strings.Repeat("я", summaryLimit-4)
	got := mergeSummary(head, "новое")
	if got != head+"\nнов" {
		t.Errorf("summary tail = %q", string([]rune(got)[summaryLimit-6:]))
	}
}
