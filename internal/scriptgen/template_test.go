package scriptgen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateGenerator_Generate(t *testing.T) {
	g := NewTemplateGenerator(0)

	var progress []int
	script, err := g.Generate(context.Background(), Brief{
		Topic:           "meal prep on a budget",
		Platform:        PlatformTikTok,
		Audience:        "students",
		DurationSeconds: 45,
		Keywords:        []string{"Meal Prep", "budget"},
	}, func(p int, msg string) {
		assert.NotEmpty(t, msg)
		progress = append(progress, p)
	})

	require.NoError(t, err)
	require.NotNil(t, script)
	assert.Equal(t, "Meal Prep On A Budget", script.Title)
	assert.Contains(t, script.Hook, "students")
	assert.Len(t, script.Sections, 3)
	assert.Equal(t, []string{"#mealprep", "#budget", "#tiktokcreator"}, script.Hashtags)
	assert.NotEmpty(t, script.CallToAction)
	assert.Equal(t, "template", script.Generator)
	assert.Positive(t, script.WordCount)
	assert.Positive(t, script.EstimatedDurationSeconds)
	assert.IsIncreasing(t, progress)
	assert.Len(t, progress, len(templateStages))
}

func TestTemplateGenerator_LongFormAddsSections(t *testing.T) {
	g := NewTemplateGenerator(0)

	script, err := g.Generate(context.Background(), Brief{
		Topic:           "home studio lighting",
		Platform:        PlatformYouTube,
		DurationSeconds: 600,
	}, nil)

	require.NoError(t, err)
	assert.Len(t, script.Sections, 5)
	for _, s := range script.Sections {
		assert.Equal(t, 96, s.DurationSeconds)
	}
	assert.Contains(t, script.Hook, "10 minutes")
}

func TestTemplateGenerator_IsDeterministic(t *testing.T) {
	g := NewTemplateGenerator(0)
	brief := Brief{Topic: "negotiating brand deals", Platform: PlatformLinkedIn}

	first, err := g.Generate(context.Background(), brief, nil)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), brief, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "What I learned about negotiating brand deals", first.Title)
}

func TestTemplateGenerator_InvalidBrief(t *testing.T) {
	g := NewTemplateGenerator(0)

	_, err := g.Generate(context.Background(), Brief{Platform: PlatformTikTok}, nil)

	assert.ErrorIs(t, err, ErrInvalidBrief)
}

func TestTemplateGenerator_HonoursCancellation(t *testing.T) {
	g := NewTemplateGenerator(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	script, err := g.Generate(ctx, Brief{Topic: "vlog gear", Platform: PlatformYouTube}, nil)

	assert.Nil(t, script)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "Drafting outline")
}
