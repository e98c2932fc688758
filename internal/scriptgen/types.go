// Package scriptgen turns a creator's brief into a short-form video script.
package scriptgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Supported publishing platforms
const (
	PlatformYouTube   = "youtube"
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformLinkedIn  = "linkedin"
)

const (
	DefaultDurationSeconds = 60
	MinDurationSeconds     = 15
	MaxDurationSeconds     = 1800
	DefaultLanguage        = "en"
	DefaultTone            = "conversational"

	// average speaking rate used for word budgets
	wordsPerMinute = 150
)

// ErrInvalidBrief is wrapped by every brief validation failure
var ErrInvalidBrief = errors.New("invalid script brief")

// Brief is the creator's input for one script
type Brief struct {
	Topic           string   `json:"topic"`
	Platform        string   `json:"platform"`
	Tone            string   `json:"tone,omitempty"`
	Audience        string   `json:"audience,omitempty"`
	DurationSeconds int      `json:"durationSeconds,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Language        string   `json:"language,omitempty"`
}

// Normalize trims fields and fills defaults
func (b *Brief) Normalize() {
	b.Topic = strings.TrimSpace(b.Topic)
	b.Platform = strings.ToLower(strings.TrimSpace(b.Platform))
	b.Tone = strings.TrimSpace(b.Tone)
	b.Audience = strings.TrimSpace(b.Audience)
	b.Language = strings.TrimSpace(b.Language)

	if b.Tone == "" {
		b.Tone = DefaultTone
	}
	if b.Language == "" {
		b.Language = DefaultLanguage
	}
	if b.DurationSeconds == 0 {
		b.DurationSeconds = DefaultDurationSeconds
	}

	keywords := make([]string, 0, len(b.Keywords))
	for _, k := range b.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	b.Keywords = keywords
}

// Validate checks a normalized brief
func (b *Brief) Validate() error {
	if b.Topic == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidBrief)
	}

	switch b.Platform {
	case PlatformYouTube, PlatformInstagram, PlatformTikTok, PlatformLinkedIn:
	case "":
		return fmt.Errorf("%w: platform is required", ErrInvalidBrief)
	default:
		return fmt.Errorf("%w: unsupported platform %q", ErrInvalidBrief, b.Platform)
	}

	if b.DurationSeconds < MinDurationSeconds || b.DurationSeconds > MaxDurationSeconds {
		return fmt.Errorf("%w: duration must be between %d and %d seconds", ErrInvalidBrief, MinDurationSeconds, MaxDurationSeconds)
	}

	return nil
}

// Section is one block of the script body
type Section struct {
	Heading         string `json:"heading"`
	Content         string `json:"content"`
	DurationSeconds int    `json:"durationSeconds"`
}

// Script is the generated result stored on a completed job
type Script struct {
	Title                    string    `json:"title"`
	Hook                     string    `json:"hook"`
	Sections                 []Section `json:"sections"`
	CallToAction             string    `json:"callToAction"`
	Hashtags                 []string  `json:"hashtags,omitempty"`
	WordCount                int       `json:"wordCount"`
	EstimatedDurationSeconds int       `json:"estimatedDurationSeconds"`
	Generator                string    `json:"generator"`
}

// countWords fills WordCount and EstimatedDurationSeconds from the text
func (s *Script) countWords() {
	words := len(strings.Fields(s.Hook)) + len(strings.Fields(s.CallToAction))
	for _, sec := range s.Sections {
		words += len(strings.Fields(sec.Content))
	}
	s.WordCount = words
	s.EstimatedDurationSeconds = (words*60 + wordsPerMinute - 1) / wordsPerMinute
}

// ProgressFunc receives a completion percentage and a short stage message
type ProgressFunc func(progress int, message string)

// Generator produces a script for a brief
type Generator interface {
	Name() string
	Generate(ctx context.Context, brief Brief, report ProgressFunc) (*Script, error)
}

func noProgress(int, string) {}
