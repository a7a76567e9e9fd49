package asr

import "testing"

func TestRichTranscription(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"language wrapped", "<|en|>hello world<|/en|>", "hello world"},
		{"plain text", "  just text ", "just text"},
		{"empty", "", ""},
		{"emotion appended", "<|en|><|HAPPY|><|Speech|><|withitn|>Hello there.", "Hello there.😊"},
		{"neutral dropped", "<|zh|><|NEUTRAL|><|Speech|><|woitn|>你好", "你好"},
		{"event prepended", "<|en|><|NEUTRAL|><|BGM|><|woitn|>la la", "🎼la la"},
		{"unknown event", "<|nospeech|><|Event_UNK|>", "❓"},
		{
			"repeated event collapsed",
			"<|en|><|NEUTRAL|><|Laughter|><|woitn|>ha<|en|><|NEUTRAL|><|Laughter|><|woitn|>ho",
			"😀haho",
		},
		{
			"repeated emotion collapsed",
			"<|en|><|SAD|><|Speech|><|woitn|>oh no<|en|><|SAD|><|Speech|><|woitn|>again",
			"oh noagain😔",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RichTranscription(tc.raw); got != tc.want {
				t.Fatalf("RichTranscription(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestPlainTranscription(t *testing.T) {
	got := PlainTranscription("<|en|><|HAPPY|>hello   <|Speech|>world<|/en|>")
	if got != "hello world" {
		t.Fatalf("unexpected plain text %q", got)
	}
}

func TestPostprocessFunc(t *testing.T) {
	if got := PostprocessFunc("plain")("<|HAPPY|>hi"); got != "hi" {
		t.Fatalf("plain mode kept annotations: %q", got)
	}
	if got := PostprocessFunc("rich")("<|HAPPY|>hi"); got != "hi😊" {
		t.Fatalf("rich mode dropped emotion: %q", got)
	}
}
