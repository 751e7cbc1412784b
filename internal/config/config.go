package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr    string
		BaseURL string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret         string
		AccessTTLMinutes  int
		RefreshTTLDays    int
		EmailTokenTTLDays int
		UserCacheSeconds  int
		UsernameMin       int
		UsernameMax       int
		PasswordMin       int
		PasswordMax       int
	}
	Redis struct {
		URL string
	}
	Mail struct {
		Addr     string
		Username string
		Password string
		From     string
		FromName string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
		PublicURL string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("CONTACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.baseurl", "http://localhost:8080")
	v.SetDefault("database.path", "data/contacts.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.accessttlminutes", 15)
	v.SetDefault("auth.refreshttldays", 7)
	v.SetDefault("auth.emailtokenttldays", 7)
	v.SetDefault("auth.usercacheseconds", 5)
	v.SetDefault("auth.usernamemin", 3)
	v.SetDefault("auth.usernamemax", 30)
	v.SetDefault("auth.passwordmin", 8)
	v.SetDefault("auth.passwordmax", 64)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("mail.addr", "")
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "noreply@example.com")
	v.SetDefault("mail.fromname", "Contacts API")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "avatars")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicurl", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
