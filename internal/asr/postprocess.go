package asr

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type tagEmoji struct {
	tag   string
	emoji string
}

var (
	emotionTags = []tagEmoji{
		{"<|HAPPY|>", "😊"},
		{"<|SAD|>", "😔"},
		{"<|ANGRY|>", "😡"},
		{"<|NEUTRAL|>", ""},
		{"<|FEARFUL|>", "😰"},
		{"<|DISGUSTED|>", "🤢"},
		{"<|SURPRISED|>", "😮"},
	}
	eventTags = []tagEmoji{
		{"<|BGM|>", "🎼"},
		{"<|Speech|>", ""},
		{"<|Applause|>", "👏"},
		{"<|Laughter|>", "😀"},
		{"<|Cry|>", "😭"},
		{"<|Sneeze|>", "🤧"},
		{"<|Breath|>", ""},
		{"<|Cough|>", "🤧"},
	}
	languageTags = []string{"<|zh|>", "<|en|>", "<|yue|>", "<|ja|>", "<|ko|>", "<|nospeech|>"}

	emotionEmojis = map[string]bool{"😊": true, "😔": true, "😡": true, "😰": true, "🤢": true, "😮": true}
	eventEmojis   = map[string]bool{"🎼": true, "👏": true, "😀": true, "😭": true, "🤧": true, "😷": true}

	annotationTag = regexp.MustCompile(`<\|[^|>]*\|>`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

const (
	unknownEventTag  = "<|nospeech|><|Event_UNK|>"
	unknownEvent     = "❓"
	languageBoundary = "<|lang|>"
)

// PlainTranscription drops every inline annotation token.
func PlainTranscription(raw string) string {
	s := annotationTag.ReplaceAllString(raw, " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// RichTranscription renders emotion and event annotations as emoji and
// removes the remaining tokens. Language tags delimit segments that are
// formatted independently and then joined.
func RichTranscription(raw string) string {
	s := strings.ReplaceAll(raw, unknownEventTag, unknownEvent)
	for _, lang := range languageTags {
		s = strings.ReplaceAll(s, lang, languageBoundary)
	}

	parts := strings.Split(s, languageBoundary)
	segments := make([]string, len(parts))
	for i, part := range parts {
		segments[i] = strings.Trim(formatSegment(part), " ")
	}

	out := " " + segments[0]
	curEvent := leadingEvent(out)
	for _, seg := range segments[1:] {
		if seg == "" {
			continue
		}
		if ev := leadingEvent(seg); ev != "" && ev == curEvent {
			seg = seg[len(ev):]
		}
		curEvent = leadingEvent(seg)
		if emo := trailingEmotion(seg); emo != "" && emo == trailingEmotion(out) {
			out = out[:len(out)-len(emo)]
		}
		out += strings.TrimSpace(seg)
	}
	return strings.TrimSpace(out)
}

func formatSegment(s string) string {
	counts := make(map[string]int, len(emotionTags)+len(eventTags))
	for _, t := range emotionTags {
		counts[t.tag] = strings.Count(s, t.tag)
	}
	for _, t := range eventTags {
		counts[t.tag] = strings.Count(s, t.tag)
	}
	s = annotationTag.ReplaceAllString(s, "")

	emotion := tagEmoji{"<|NEUTRAL|>", ""}
	for _, t := range emotionTags {
		if counts[t.tag] > counts[emotion.tag] {
			emotion = t
		}
	}
	for _, t := range eventTags {
		if counts[t.tag] > 0 {
			s = t.emoji + s
		}
	}
	s += emotion.emoji

	for emoji := range emotionEmojis {
		s = strings.ReplaceAll(s, " "+emoji, emoji)
		s = strings.ReplaceAll(s, emoji+" ", emoji)
	}
	for emoji := range eventEmojis {
		s = strings.ReplaceAll(s, " "+emoji, emoji)
		s = strings.ReplaceAll(s, emoji+" ", emoji)
	}
	return strings.TrimSpace(s)
}

func leadingEvent(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ""
	}
	if first := s[:size]; eventEmojis[first] {
		return first
	}
	return ""
}

func trailingEmotion(s string) string {
	r, size := utf8.DecodeLastRuneInString(s)
	if r == utf8.RuneError {
		return ""
	}
	if last := s[len(s)-size:]; emotionEmojis[last] {
		return last
	}
	return ""
}

// PostprocessFunc resolves a postprocess mode name.
func PostprocessFunc(mode string) func(string) string {
	if mode == "plain" {
		return PlainTranscription
	}
	return RichTranscription
}
