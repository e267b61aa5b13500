package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Supports percentage rollout, per-guild targeting, and per-user overrides,
// so new bot features can ship dark and ramp up without a redeploy.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[int64]map[string]bool // discord user ID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Guild targeting. Empty means all guilds.
	TargetGuilds []int64

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  int64 // Discord user ID
	GuildID int64 // Discord guild the command came from (0 for DMs)
	IsOwner bool  // Bot owner
}

// Predefined feature flag names.
const (
	// === Greeting Features ===
	FeatureGreetHello = "greet.hello" // !hello command
	FeatureGreetDaily = "greet.daily" // greet first message of the day

	// === Economy Features ===
	FeatureEconomyCoins = "economy.coins" // coin balance and rewards
	FeatureEconomyExp   = "economy.exp"   // experience points

	// === Achievement Features ===
	FeatureAchievementsUnlocks       = "achievements.unlocks"       // unlocking at all
	FeatureAchievementsAnnouncements = "achievements.announcements" // announce in status channel
	FeatureAchievementsHiddenHints   = "achievements.hidden_hints"  // hint at hidden achievements

	// === Event Features ===
	FeatureEventsJoin         = "events.join"          // !joinevent command
	FeatureEventsAnnounceOpen = "events.announce_open" // announce events going active

	// === Notification Features ===
	FeatureNotifyBirthdays = "notify.birthdays" // daily birthday digest
	FeatureNotifyLevelUp   = "notify.level_up"  // "you leveled up" replies

	// === Experimental Features ===
	FeatureExperimentalSlashCommands = "experimental.slash_commands" // application commands
	FeatureExperimentalWebDashboard  = "experimental.web_dashboard"  // dashboard beyond /health
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[int64]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Greeting features
	ff.features[FeatureGreetHello] = &Feature{
		Name:           FeatureGreetHello,
		Description:    "Respond to the hello command",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGreetDaily] = &Feature{
		Name:           FeatureGreetDaily,
		Description:    "Greet users on their first message of the day",
		Enabled:        false, // noisy, opt-in per deployment
		RolloutPercent: 0,
	}

	// Economy features
	ff.features[FeatureEconomyCoins] = &Feature{
		Name:           FeatureEconomyCoins,
		Description:    "Coin balances and achievement coin rewards",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEconomyExp] = &Feature{
		Name:           FeatureEconomyExp,
		Description:    "Experience points and achievement exp rewards",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Achievement features
	ff.features[FeatureAchievementsUnlocks] = &Feature{
		Name:           FeatureAchievementsUnlocks,
		Description:    "Allow unlocking achievements",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAchievementsAnnouncements] = &Feature{
		Name:           FeatureAchievementsAnnouncements,
		Description:    "Announce unlocks in the status channel",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAchievementsHiddenHints] = &Feature{
		Name:           FeatureAchievementsHiddenHints,
		Description:    "Show counts of undiscovered hidden achievements",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	// Event features
	ff.features[FeatureEventsJoin] = &Feature{
		Name:           FeatureEventsJoin,
		Description:    "Allow joining events via command",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEventsAnnounceOpen] = &Feature{
		Name:           FeatureEventsAnnounceOpen,
		Description:    "Announce events transitioning to active",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Notification features - carefully tuned to avoid spam
	ff.features[FeatureNotifyBirthdays] = &Feature{
		Name:           FeatureNotifyBirthdays,
		Description:    "Daily birthday digest in the status channel",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyLevelUp] = &Feature{
		Name:           FeatureNotifyLevelUp,
		Description:    "Reply when a user levels up",
		Enabled:        true,
		RolloutPercent: 50, // A/B test
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalSlashCommands] = &Feature{
		Name:           FeatureExperimentalSlashCommands,
		Description:    "Application (slash) command surface",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureExperimentalWebDashboard] = &Feature{
		Name:           FeatureExperimentalWebDashboard,
		Description:    "Extended web dashboard",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_GREET_DAILY=true
// Example: FEATURE_NOTIFY_LEVEL_UP=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "greet.daily" -> "FEATURE_GREET_DAILY"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.isEnabledLocked(featureName, ctx)
}

// isEnabledLocked evaluates a flag under an already-held read lock.
func (ff *FeatureFlags) isEnabledLocked(featureName string, ctx *FeatureContext) bool {
	// Check user overrides first
	if ctx != nil && ctx.UserID != 0 {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Bot owners get all features
	if ctx != nil && ctx.IsOwner {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check guild targeting
	if len(feature.TargetGuilds) > 0 && ctx != nil && ctx.GuildID != 0 {
		guildMatch := false
		for _, g := range feature.TargetGuilds {
			if g == ctx.GuildID {
				guildMatch = true
				break
			}
		}
		if !guildMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != 0 {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID int64, featureName string, percent int) bool {
	// Create a consistent hash for this user+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(strconv.FormatInt(userID, 10)))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a user.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !ff.isEnabledLocked(featureName, ctx) {
		return ""
	}

	if len(feature.Variants) == 0 || ctx == nil {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(strconv.FormatInt(ctx.UserID, 10)))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(feature.Variants)))
	return feature.Variants[variantIndex]
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID int64, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID int64) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// EconomyEnabled checks if any economy feature is enabled.
func (ff *FeatureFlags) EconomyEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureEconomyCoins, ctx) ||
		ff.IsEnabled(FeatureEconomyExp, ctx)
}

// AnnouncementsEnabled checks if any status-channel announcement is enabled.
func (ff *FeatureFlags) AnnouncementsEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureAchievementsAnnouncements, ctx) ||
		ff.IsEnabled(FeatureEventsAnnounceOpen, ctx) ||
		ff.IsEnabled(FeatureNotifyBirthdays, ctx)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
