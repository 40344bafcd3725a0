package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration in order of precedence:
// 1. Default values
// 2. The config file at path (optional)
// 3. BOT_* environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, everything can come from env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !strings.Contains(err.Error(), "no such file") {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("database.path", "storage.db")

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("whatsapp.base_url", "https://api.evolution.local")
	v.SetDefault("whatsapp.max_attempts", 3)
	v.SetDefault("whatsapp.backoff_base", 2*time.Second)
	v.SetDefault("whatsapp.request_timeout", 15*time.Second)
	v.SetDefault("whatsapp.max_length", 4096)

	v.SetDefault("pending.ttl", 2*time.Hour)
	v.SetDefault("pending.medical_ttl", time.Hour)

	v.SetDefault("vision.base_url", "http://localhost:8090")
	v.SetDefault("vision.timeout", 60*time.Second)

	v.SetDefault("gemini.model_name", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 0.4)
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.retry_delay_seconds", 2)

	v.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"purge_expired_pending": {Enabled: true, Schedule: "*/10 * * * *"},
		"prune_dedup":           {Enabled: true, Schedule: "30 3 * * *"},
		"sql_maintenance":       {Enabled: true, Schedule: "0 4 * * 0"},
	})

	v.SetDefault("messages.analysis_error", "❌ Não consegui analisar sua foto. Tente enviar novamente!")
	v.SetDefault("messages.no_foods_detected", "🤔 Não consegui identificar alimentos na foto. Tente enviar uma foto mais clara do prato!")
	v.SetDefault("messages.unsupported_media", "📎 Ainda não consigo ler esse tipo de mensagem. Envie texto ou uma foto da refeição!")
	v.SetDefault("messages.no_pending_nudge", "✅ *Entendi!*\n\n📸 Envie uma foto de refeição ou exame para eu analisar.\n\n_Sofia 🥗 | Dr. Vital 🩺_")
	v.SetDefault("messages.assistant_fallback", "Oi! 👋 Estou aqui para ajudar com sua nutrição!\n\n📸 Envie uma foto da refeição\n✍️ Ou descreva o que comeu\n\n_Sofia 🥗_")
	v.SetDefault("messages.medical_processing", "⏳ *Ainda estou analisando seus exames*\n\nAguarde só mais um momento, assim que terminar eu envio o relatório completo.\n\n_Dr. Vital 🩺_")
}
