package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                          string        `mapstructure:"PORT"`
	DatabaseDriver                string        `mapstructure:"DATABASE_DRIVER"`
	DatabasePath                  string        `mapstructure:"DATABASE_PATH"`
	DatabaseURL                   string        `mapstructure:"DATABASE_URL"`
	JWTSecret                     string        `mapstructure:"JWT_SECRET"`
	DiscordBotToken               string        `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string        `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`
	NotifyTimeout                 time.Duration `mapstructure:"NOTIFY_TIMEOUT"`
	EventWindowMonths             int           `mapstructure:"EVENT_WINDOW_MONTHS"`
	SlotDefaultCapacity           int           `mapstructure:"SLOT_DEFAULT_CAPACITY"`
	MaxCapacity                   int           `mapstructure:"MAX_CAPACITY"`
	RegistrationRatePerSecond     float64       `mapstructure:"REGISTRATION_RATE_PER_SECOND"`
	RegistrationBurst             int           `mapstructure:"REGISTRATION_BURST"`
	ReminderSchedule              string        `mapstructure:"REMINDER_SCHEDULE"`
	ReminderLead                  time.Duration `mapstructure:"REMINDER_LEAD"`
	TrustProxy                    bool          `mapstructure:"TRUST_PROXY"`
	EnableCORS                    bool          `mapstructure:"ENABLE_CORS"`
}

func LoadConfig() *Config {
	// A local .env is optional; real deployments use the environment.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_PATH", "club.db")
	viper.SetDefault("NOTIFY_TIMEOUT", "10s")
	viper.SetDefault("EVENT_WINDOW_MONTHS", 3)
	viper.SetDefault("SLOT_DEFAULT_CAPACITY", 20)
	viper.SetDefault("MAX_CAPACITY", 500)
	viper.SetDefault("REGISTRATION_RATE_PER_SECOND", 1.0)
	viper.SetDefault("REGISTRATION_BURST", 5)
	viper.SetDefault("REMINDER_SCHEDULE", "*/5 * * * *")
	viper.SetDefault("REMINDER_LEAD", "1h")

	viper.BindEnv("DATABASE_URL")
	viper.BindEnv("JWT_SECRET")
	viper.BindEnv("DISCORD_BOT_TOKEN")
	viper.BindEnv("DISCORD_NOTIFICATIONS_CHANNEL_ID")
	viper.BindEnv("TRUST_PROXY")
	viper.BindEnv("ENABLE_CORS")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	return &config
}

// Limits returns the capacity and date-window rules shared by the catalogs.
func (c *Config) Limits() Limits {
	l := DefaultLimits()
	if c.SlotDefaultCapacity > 0 {
		l.SlotDefaultCapacity = c.SlotDefaultCapacity
	}
	if c.MaxCapacity > 0 {
		l.MaxCapacity = c.MaxCapacity
	}
	if c.EventWindowMonths > 0 {
		l.EventWindowMonths = c.EventWindowMonths
	}
	return l
}

type Limits struct {
	SlotDefaultCapacity int
	MinCapacity         int
	MaxCapacity         int
	EventWindowMonths   int
}

func DefaultLimits() Limits {
	return Limits{
		SlotDefaultCapacity: 20,
		MinCapacity:         1,
		MaxCapacity:         500,
		EventWindowMonths:   3,
	}
}
