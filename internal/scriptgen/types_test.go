package scriptgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrief_NormalizeAndValidate(t *testing.T) {
	tests := []struct {
		name      string
		brief     Brief
		errString string
	}{
		{
			name:  "minimal brief gets defaults",
			brief: Brief{Topic: "  budgeting for freelancers ", Platform: "YouTube"},
		},
		{
			name:      "missing topic",
			brief:     Brief{Platform: PlatformTikTok},
			errString: "topic is required",
		},
		{
			name:      "missing platform",
			brief:     Brief{Topic: "cold brew"},
			errString: "platform is required",
		},
		{
			name:      "unsupported platform",
			brief:     Brief{Topic: "cold brew", Platform: "myspace"},
			errString: "unsupported platform",
		},
		{
			name:      "too short",
			brief:     Brief{Topic: "cold brew", Platform: PlatformTikTok, DurationSeconds: 5},
			errString: "duration must be between",
		},
		{
			name:      "too long",
			brief:     Brief{Topic: "cold brew", Platform: PlatformYouTube, DurationSeconds: 3600},
			errString: "duration must be between",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.brief
			b.Normalize()
			err := b.Validate()

			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidBrief)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestBrief_NormalizeDefaults(t *testing.T) {
	b := Brief{
		Topic:    "  budgeting for freelancers ",
		Platform: " YouTube ",
		Keywords: []string{" money ", "", "taxes"},
	}
	b.Normalize()

	assert.Equal(t, "budgeting for freelancers", b.Topic)
	assert.Equal(t, PlatformYouTube, b.Platform)
	assert.Equal(t, DefaultTone, b.Tone)
	assert.Equal(t, DefaultLanguage, b.Language)
	assert.Equal(t, DefaultDurationSeconds, b.DurationSeconds)
	assert.Equal(t, []string{"money", "taxes"}, b.Keywords)
}
