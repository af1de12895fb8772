// Конфигурация сервиса форм из переменных окружения.
//
// Основные возможности:
//   - Загрузка параметров по тегам `env` структуры Config.
//   - Подгрузка .env файла, если он есть рядом с бинарником.
//   - Маскировка секретов (пароли, токены, ключи) в логах.
//   - Значения по умолчанию для воркеров, периода синхронизации и лимитов.
package config

import (
	"log/slog"
	"net/url"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	SecretKey string `env:"SECRET_KEY"`

	AWSRegion     string `env:"AWS_REGION"`
	AWSAccessKey  string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpoint   string `env:"AWS_S3_ENDPOINT_URL"`
	AWSBucketName string `env:"AWS_S3_BUCKET_NAME"`
	LocalFilesDir string `env:"LOCAL_FILES_DIR"`

	DatabaseDSN string `env:"DATABASE_URL"`

	DefaultUserEmail string `env:"DEFAULT_EMAIL"`

	EmailDisabled bool   `env:"EMAIL_DISABLED"`
	EmailHost     string `env:"EMAIL_HOST"`
	EmailUser     string `env:"EMAIL_HOST_USER"`
	EmailPassword string `env:"EMAIL_HOST_PASSWORD"`
	EmailPort     int    `env:"EMAIL_PORT"`
	EmailFrom     string `env:"EMAIL_FROM"`
	EmailWorkers  int    `env:"EMAIL_WORKERS"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	// id чатов администраторов через запятую
	TelegramAdminChats string `env:"TELEGRAM_ADMIN_CHATS"`

	WebURLRaw string `env:"WEB_URL"`
	WebURL    *url.URL

	SessionsDBPath string `env:"SESSIONS_DB_PATH"`

	SignUpEnable  bool `env:"SIGN_UP_ENABLE"`
	SwaggerEnable bool `env:"SWAGGER"`

	CaptchaDisabled bool `env:"CAPTCHA_DISABLED"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	CRMURL   string `env:"CRM_URL"`
	CRMToken string `env:"CRM_TOKEN"`

	TabularURL    string `env:"TABULAR_URL"`
	TabularToken  string `env:"TABULAR_TOKEN"`
	TabularBaseID string `env:"TABULAR_BASE_ID"`
	TabularTable  string `env:"TABULAR_TABLE"`
	// Период фоновой синхронизации в минутах, 0 отключает задачу
	SyncPeriod int `env:"SYNC_PERIOD"`

	ExternalLimiter string `env:"EXTERNAL_LIMITER_URL"`

	SupportTicketsPrefix string `env:"SUPPORT_BUCKET_PREFIX"`
}

// ReadConfig загружает конфигурацию из окружения (и .env, если найден).
// Если WEB_URL не задан или некорректен, процесс завершается с ошибкой.
// Для незаданных параметров выставляются значения по умолчанию.
func ReadConfig() *Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded .env file")
	}

	config := &Config{}

	envConfig("env", config)

	// Check required envs
	if config.WebURLRaw == "" {
		slog.Error("WEB_URL is required")
		os.Exit(1)
	} else {
		var err error
		config.WebURL, err = url.Parse(config.WebURLRaw)
		if err != nil {
			slog.Error("WEB_URL incorrect", "err", err)
			os.Exit(1)
		}
	}

	applyDefaults(config)

	return config
}

func applyDefaults(config *Config) {
	if config.EmailWorkers <= 0 {
		config.EmailWorkers = 5
	}

	if config.SyncPeriod < 0 {
		config.SyncPeriod = 0
	}

	if config.SupportTicketsPrefix == "" {
		config.SupportTicketsPrefix = "support-tickets"
	}

	if config.SessionsDBPath == "" {
		config.SessionsDBPath = "sessions.db"
	}
}

// Присваивает полям в переданной структуре значения переменных. Название переменной для каждого поля лежит в теге этого поля.
func envConfig(key string, s interface{}) {
	v := reflect.ValueOf(s).Elem()
	typeParam := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fName := typeParam.Field(i).Name
		fEnvTag := typeParam.Field(i).Tag.Get(key)

		if fEnvTag == "" || !Exist(fEnvTag) {
			continue
		}

		raw := GetEnv(fEnvTag)
		if raw == "" {
			continue
		}

		slog.Info("Set config value",
			slog.String("key", typeParam.Name()+"."+fName),
			slog.String("value", maskValue(fName, raw)),
			slog.String("source", "ENVIRONMENT"),
		)

		switch v.Field(i).Interface().(type) {
		case string:
			v.Field(i).SetString(raw)
		case int:
			v.Field(i).SetInt(int64(GetIntEnv(fEnvTag)))
		case bool:
			v.Field(i).SetBool(GetBoolEnv(fEnvTag))
		}
	}
}

// maskValue прячет значение секретного поля, оставляя первый и последний символ.
func maskValue(fieldName, value string) string {
	name := strings.ToLower(fieldName)
	if !strings.Contains(name, "pass") && !strings.Contains(name, "secret") && !strings.Contains(name, "token") {
		return value
	}
	runes := []rune(value)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}
