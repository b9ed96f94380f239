// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/mr-valente/quacktuaries/internal/domain"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the game database (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Defaults applied to sessions created without explicit overrides
	Game GameDefaults
}

// GameDefaults holds the default session rule set. Individual sessions may
// override any of these at creation time.
type GameDefaults struct {
	BatchCount               int
	MaxTurns                 int
	InspectionBudget         int
	MinSample                int
	MaxSample                int
	PremiumScale             int
	TimeLimitSeconds         int
	RequireInspectBeforeSell bool
	PurchasePrices           domain.PurchasePrices
}

// SessionConfig materializes the defaults into a full session configuration,
// including the default confidence tier table.
func (g GameDefaults) SessionConfig() domain.SessionConfig {
	return domain.SessionConfig{
		BatchCount:               g.BatchCount,
		MaxTurns:                 g.MaxTurns,
		InspectionBudget:         g.InspectionBudget,
		MinSample:                g.MinSample,
		MaxSample:                g.MaxSample,
		PremiumScale:             g.PremiumScale,
		ConfidenceTiers:          DefaultConfidenceTiers(),
		TimeLimitSeconds:         g.TimeLimitSeconds,
		RequireInspectBeforeSell: g.RequireInspectBeforeSell,
		PurchasePrices:           g.PurchasePrices,
	}
}

// DefaultConfidenceTiers returns the standard three-tier table. The penalty
// column is configuration, not a constant of the scoring engine.
func DefaultConfidenceTiers() []domain.ConfidenceTier {
	return []domain.ConfidenceTier{
		{Level: 0.90, Bonus: 1.0, Penalty: 200},
		{Level: 0.95, Bonus: 1.2, Penalty: 350},
		{Level: 0.99, Bonus: 1.5, Penalty: 600},
	}
}

// DifficultyPreset bundles the session parameters for one difficulty level.
// PRanges are the bands the hidden true rates are drawn from; harder presets
// cluster the rates so intervals must be tighter to stay profitable.
type DifficultyPreset struct {
	Description      string       `json:"description"`
	PRanges          [][2]float64 `json:"-"` // hidden: reveals where true rates live
	BatchCount       int          `json:"batch_count"`
	MaxTurns         int          `json:"max_turns"`
	InspectionBudget int          `json:"inspection_budget"`
	MinSample        int          `json:"min_sample"`
	MaxSample        int          `json:"max_sample"`
}

// DifficultyPresets maps preset names to their parameters.
var DifficultyPresets = map[string]DifficultyPreset{
	"easy": {
		Description:      "wide spread of defect rates",
		PRanges:          [][2]float64{{0.05, 0.25}, {0.35, 0.65}, {0.75, 0.95}},
		BatchCount:       8,
		MaxTurns:         20,
		InspectionBudget: 500,
		MinSample:        5,
		MaxSample:        100,
	},
	"medium": {
		Description:      "moderate clustering",
		PRanges:          [][2]float64{{0.15, 0.40}, {0.40, 0.70}, {0.60, 0.85}},
		BatchCount:       10,
		MaxTurns:         20,
		InspectionBudget: 400,
		MinSample:        5,
		MaxSample:        80,
	},
	"hard": {
		Description:      "tightly clustered rates",
		PRanges:          [][2]float64{{0.25, 0.50}, {0.45, 0.65}, {0.50, 0.75}},
		BatchCount:       12,
		MaxTurns:         18,
		InspectionBudget: 300,
		MinSample:        10,
		MaxSample:        60,
	},
}

// DefaultDifficulty is used when a session request names no preset.
const DefaultDifficulty = "medium"

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QUACK_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8000),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Game: GameDefaults{
			BatchCount:               getEnvAsInt("GAME_BATCH_COUNT", 10),
			MaxTurns:                 getEnvAsInt("GAME_MAX_TURNS", 20),
			InspectionBudget:         getEnvAsInt("GAME_INSPECTION_BUDGET", 400),
			MinSample:                getEnvAsInt("GAME_MIN_SAMPLE", 5),
			MaxSample:                getEnvAsInt("GAME_MAX_SAMPLE", 80),
			PremiumScale:             getEnvAsInt("GAME_PREMIUM_SCALE", 120),
			TimeLimitSeconds:         getEnvAsInt("GAME_TIME_LIMIT_SECONDS", 0),
			RequireInspectBeforeSell: getEnvAsBool("GAME_REQUIRE_INSPECT_BEFORE_SELL", true),
			PurchasePrices: domain.PurchasePrices{
				TurnCost:     getEnvAsInt("GAME_TURN_COST", 150),
				BudgetCost:   getEnvAsInt("GAME_BUDGET_COST", 100),
				BudgetAmount: getEnvAsInt("GAME_BUDGET_AMOUNT", 100),
			},
		},
	}

	if err := cfg.Game.SessionConfig().Validate(); err != nil {
		return nil, fmt.Errorf("invalid game defaults: %w", err)
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
