package achievements

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/questline-hub/questline-bot/internal/domain/achievement"
)

func TestFormatCatalog(t *testing.T) {
	catalog := []*achievement.Achievement{
		{
			Name:        "First Steps",
			Description: "Register a profile",
			Rarity:      achievement.RarityCommon,
			CoinReward:  10,
			ExpReward:   5,
			IsActive:    true,
		},
		{
			Name:        "Founding Member",
			Description: "Joined during the first month",
			Rarity:      achievement.RarityLegendary,
			IsActive:    false,
		},
	}

	out := FormatCatalog(catalog)

	assert.Contains(t, out, "First Steps")
	assert.Contains(t, out, "Register a profile")
	assert.Contains(t, out, "+10")
	assert.Contains(t, out, "+5")
	assert.Contains(t, out, "Founding Member")
	assert.Contains(t, out, "(retired)")
	// No reward line for the zero-reward achievement.
	assert.NotContains(t, out, "+0 🪙")
}

func TestFormatCatalog_Empty(t *testing.T) {
	assert.Empty(t, FormatCatalog(nil))
}

func TestRarityIcon(t *testing.T) {
	assert.Equal(t, "🟠", rarityIcon(achievement.RarityLegendary))
	assert.Equal(t, "🟣", rarityIcon(achievement.RarityEpic))
	assert.Equal(t, "🔵", rarityIcon(achievement.RarityRare))
	assert.Equal(t, "⚪", rarityIcon(achievement.RarityCommon))
	assert.Equal(t, "⚪", rarityIcon(achievement.RarityUncommon))
}
