package scriptgen

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// TemplateGenerator builds scripts from fixed structures. Its output depends only
// on the brief.
type TemplateGenerator struct {
	stepDelay time.Duration
}

// NewTemplateGenerator creates a TemplateGenerator that pauses stepDelay
// between stages
func NewTemplateGenerator(stepDelay time.Duration) *TemplateGenerator {
	return &TemplateGenerator{stepDelay: stepDelay}
}

func (g *TemplateGenerator) Name() string {
	return "template"
}

type stage struct {
	progress int
	message  string
	run      func(b Brief, s *Script)
}

var templateStages = []stage{
	{progress: 20, message: "Drafting outline", run: buildOutline},
	{progress: 45, message: "Writing hook", run: buildHook},
	{progress: 75, message: "Writing body", run: buildBody},
	{progress: 95, message: "Adding call to action", run: buildCallToAction},
}

// Generate runs each stage in order, reporting progress after each one
func (g *TemplateGenerator) Generate(ctx context.Context, brief Brief, report ProgressFunc) (*Script, error) {
	if report == nil {
		report = noProgress
	}

	brief.Normalize()
	if err := brief.Validate(); err != nil {
		return nil, err
	}

	script := &Script{Generator: g.Name()}
	for _, st := range templateStages {
		if err := g.pause(ctx); err != nil {
			return nil, fmt.Errorf("generation interrupted at %q: %w", st.message, err)
		}
		st.run(brief, script)
		report(st.progress, st.message)
	}

	script.countWords()
	return script, nil
}

func (g *TemplateGenerator) pause(ctx context.Context) error {
	if g.stepDelay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(g.stepDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildOutline(b Brief, s *Script) {
	s.Title = titleCase(b.Topic)
	if b.Platform == PlatformLinkedIn {
		s.Title = "What I learned about " + b.Topic
	}

	s.Hashtags = make([]string, 0, len(b.Keywords)+1)
	for _, k := range b.Keywords {
		s.Hashtags = append(s.Hashtags, hashtag(k))
	}
	s.Hashtags = append(s.Hashtags, hashtag(b.Platform+" creator"))
}

func buildHook(b Brief, s *Script) {
	audience := b.Audience
	if audience == "" {
		audience = "you"
	}

	switch b.Platform {
	case PlatformTikTok, PlatformInstagram:
		s.Hook = fmt.Sprintf("Stop scrolling, %s: here is the fastest way to get %s right.", audience, b.Topic)
	case PlatformLinkedIn:
		s.Hook = fmt.Sprintf("Most people get %s wrong. Here is what changed my mind.", b.Topic)
	default:
		s.Hook = fmt.Sprintf("In the next %s, %s will learn everything that matters about %s.", spokenDuration(b.DurationSeconds), audience, b.Topic)
	}
}

func buildBody(b Brief, s *Script) {
	headings := []string{"The problem", "The approach", "The proof"}
	if b.DurationSeconds >= 180 {
		headings = append(headings, "Common mistakes", "Putting it together")
	}

	// hook and call to action take roughly a fifth of the runtime
	bodySeconds := b.DurationSeconds * 4 / 5
	per := bodySeconds / len(headings)
	wordBudget := per * wordsPerMinute / 60

	s.Sections = make([]Section, 0, len(headings))
	for i, h := range headings {
		keyword := b.Topic
		if len(b.Keywords) > 0 {
			keyword = b.Keywords[i%len(b.Keywords)]
		}
		s.Sections = append(s.Sections, Section{
			Heading:         h,
			Content:         sectionText(h, keyword, b.Tone, wordBudget),
			DurationSeconds: per,
		})
	}
}

func buildCallToAction(b Brief, s *Script) {
	switch b.Platform {
	case PlatformYouTube:
		s.CallToAction = "If this helped, subscribe and tell me in the comments what you want next."
	case PlatformLinkedIn:
		s.CallToAction = "Repost if this is useful to your network, and follow for more."
	default:
		s.CallToAction = "Follow for part two and save this for later."
	}
}

func sectionText(heading, keyword, tone string, wordBudget int) string {
	sentence := fmt.Sprintf("%s: in a %s way, talk through how %s plays out in practice.", heading, tone, keyword)
	words := strings.Fields(sentence)
	for len(words) < wordBudget {
		words = append(words, strings.Fields(fmt.Sprintf("Give one concrete example about %s.", keyword))...)
	}
	return strings.Join(words, " ")
}

func spokenDuration(seconds int) string {
	if seconds < 120 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	return fmt.Sprintf("%d minutes", seconds/60)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func hashtag(s string) string {
	var b strings.Builder
	b.WriteByte('#')
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
