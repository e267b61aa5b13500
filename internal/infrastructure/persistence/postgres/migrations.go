package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CORE TABLES (users, cogs)
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create users and cogs tables
-- Version: 001

-- Community members. user_id is the Discord snowflake, assigned by
-- Discord, never generated here.
CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT PRIMARY KEY,
    nickname VARCHAR(32),
    timezone VARCHAR(50),
    birthday DATE,
    coins INTEGER NOT NULL DEFAULT 0,
    exp INTEGER NOT NULL DEFAULT 0,
    is_banned BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,

    CONSTRAINT chk_users_coins CHECK (coins >= 0),
    CONSTRAINT chk_users_exp CHECK (exp >= 0)
);

CREATE INDEX IF NOT EXISTS idx_users_birthday ON users (birthday) WHERE birthday IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_users_coins ON users (coins DESC);
CREATE INDEX IF NOT EXISTS idx_users_exp ON users (exp DESC);

-- Extension enable/disable flags, keyed by module path.
CREATE TABLE IF NOT EXISTS cogs (
    cog_module VARCHAR(100) PRIMARY KEY,
    is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    version VARCHAR(20),
    loaded_at TIMESTAMP WITH TIME ZONE
);
`

const migration001Down = `
DROP TABLE IF EXISTS cogs;
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: GAMES AND COMMUNITY EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create games, profiles, events and event_logs tables
-- Version: 002

CREATE TABLE IF NOT EXISTS games (
    game_id SERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE,
    description TEXT
);

-- Per-game player profiles. One profile per user per game.
CREATE TABLE IF NOT EXISTS profiles (
    profile_id SERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    game_id INTEGER NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
    profile_name VARCHAR(100),
    data JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,

    CONSTRAINT uq_profiles_user_game UNIQUE (user_id, game_id)
);

CREATE INDEX IF NOT EXISTS idx_profiles_user_id ON profiles (user_id);

CREATE TABLE IF NOT EXISTS events (
    event_id BIGSERIAL PRIMARY KEY,
    event_name VARCHAR(200) NOT NULL,
    event_description TEXT,
    start_time TIMESTAMP WITH TIME ZONE,
    end_time TIMESTAMP WITH TIME ZONE,
    metadata JSONB,
    participants INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',

    CONSTRAINT chk_events_status CHECK (status IN ('pending', 'active', 'completed', 'cancelled')),
    CONSTRAINT chk_events_participants CHECK (participants >= 0)
);

CREATE INDEX IF NOT EXISTS idx_events_status ON events (status);
CREATE INDEX IF NOT EXISTS idx_events_start_time ON events (start_time) WHERE start_time IS NOT NULL;

-- Append-only participation log. One row per user action within an event.
CREATE TABLE IF NOT EXISTS event_logs (
    log_id BIGSERIAL PRIMARY KEY,
    event_id BIGINT NOT NULL REFERENCES events(event_id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    data JSONB,
    logged_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_event_logs_event_id ON event_logs (event_id);
CREATE INDEX IF NOT EXISTS idx_event_logs_user_id ON event_logs (user_id);
`

const migration002Down = `
DROP TABLE IF EXISTS event_logs;
DROP TABLE IF EXISTS events;
DROP TABLE IF EXISTS profiles;
DROP TABLE IF EXISTS games;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ACHIEVEMENTS, ROLES AND COMMAND USAGE
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create achievements, user_achievements, bot_roles and command_usage tables
-- Version: 003

CREATE TABLE IF NOT EXISTS achievements (
    achievement_id SERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE,
    description TEXT NOT NULL,
    rarity VARCHAR(20) NOT NULL DEFAULT 'common',
    coin_reward INTEGER NOT NULL DEFAULT 0,
    exp_reward INTEGER NOT NULL DEFAULT 0,
    icon_url VARCHAR(255),
    category VARCHAR(50),
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,

    CONSTRAINT chk_achievements_rarity CHECK (rarity IN ('common', 'uncommon', 'rare', 'epic', 'legendary')),
    CONSTRAINT chk_achievements_coin_reward CHECK (coin_reward >= 0),
    CONSTRAINT chk_achievements_exp_reward CHECK (exp_reward >= 0)
);

CREATE INDEX IF NOT EXISTS idx_achievements_category ON achievements (category) WHERE category IS NOT NULL;

CREATE TABLE IF NOT EXISTS user_achievements (
    user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    achievement_id INTEGER NOT NULL REFERENCES achievements(achievement_id) ON DELETE CASCADE,
    progress INTEGER NOT NULL DEFAULT 100,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
    unlock_data JSONB,

    PRIMARY KEY (user_id, achievement_id),
    CONSTRAINT chk_user_achievements_progress CHECK (progress >= 0 AND progress <= 100)
);

CREATE INDEX IF NOT EXISTS idx_user_achievements_user ON user_achievements (user_id);

-- Internal permission roles, independent of Discord's own role system.
CREATE TABLE IF NOT EXISTS bot_roles (
    role_id SERIAL PRIMARY KEY,
    name VARCHAR(50) NOT NULL UNIQUE,
    description TEXT,
    bit_value BIGINT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,

    CONSTRAINT chk_bot_roles_bit_value CHECK (bit_value > 0)
);

-- Every command invocation, including failed ones. error_message is
-- NULL for successful runs.
CREATE TABLE IF NOT EXISTS command_usage (
    usage_id SERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    command_name VARCHAR(100) NOT NULL,
    guild_id BIGINT,
    error_message TEXT,
    executed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_command_usage_user_id ON command_usage (user_id);
CREATE INDEX IF NOT EXISTS idx_command_usage_command_name ON command_usage (command_name);
CREATE INDEX IF NOT EXISTS idx_command_usage_executed_at ON command_usage (executed_at);

-- Starter roles.
INSERT INTO bot_roles (name, description, bit_value) VALUES
    ('admin', 'Полный доступ к командам бота', 1),
    ('moderator', 'Модерация участников и событий', 2),
    ('event_host', 'Создание и проведение событий', 4)
ON CONFLICT (name) DO NOTHING;

-- Starter achievements.
INSERT INTO achievements (name, description, rarity, coin_reward, exp_reward, category) VALUES
    ('Первые шаги', 'Зарегистрироваться в сообществе', 'common', 50, 10, 'onboarding'),
    ('Участник', 'Принять участие в первом событии', 'uncommon', 100, 25, 'events'),
    ('Ветеран событий', 'Принять участие в десяти событиях', 'rare', 500, 150, 'events'),
    ('Коллекционер', 'Создать профили в пяти играх', 'epic', 1000, 300, 'games')
ON CONFLICT (name) DO NOTHING;
`

const migration003Down = `
DROP TABLE IF EXISTS command_usage;
DROP TABLE IF EXISTS bot_roles;
DROP TABLE IF EXISTS user_achievements;
DROP TABLE IF EXISTS achievements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_users_and_cogs",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_games_and_events",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_achievements_roles_usage",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}
