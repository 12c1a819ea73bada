package config

import (
	"bufio"
	"net"
	"os"
	"strconv"
	"strings"
)

// LoadEnvFile copies KEY=value lines into the process environment without
// overriding variables that are already set. Section headers and comments
// are skipped so the same file works as hit.ini or .env.
func LoadEnvFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		sep := strings.Index(line, "=")
		if sep <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:sep])
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		value := strings.Trim(strings.TrimSpace(line[sep+1:]), "\"'")
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return scanner.Err()
}

type lookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with any HIT_* variables lookup finds.
func ApplyEnv(cfg *Config, lookup lookupFunc) {
	env := envReader{lookup: lookup}

	if addr, ok := env.str("HIT_ADDR"); ok {
		host, port := parseListenAddr(addr)
		cfg.Server.Host = host
		if port > 0 {
			cfg.Server.Port = port
		}
	}
	env.setStr("HIT_HOST", &cfg.Server.Host)
	env.setInt("HIT_PORT", &cfg.Server.Port)

	env.setStr("HIT_STORE", &cfg.Store.Engine)
	env.setStr("HIT_DATA_FILE", &cfg.Store.Location)

	env.setStr("HIT_PHOTO_BACKEND", &cfg.Photos.Backend)
	env.setStr("HIT_PHOTO_ENDPOINT", &cfg.Photos.Endpoint)
	env.setStr("HIT_PHOTO_ACCESS_KEY_ID", &cfg.Photos.AccessKeyID)
	env.setStr("HIT_PHOTO_SECRET_ACCESS_KEY", &cfg.Photos.SecretAccessKey)
	env.setStr("HIT_PHOTO_BUCKET", &cfg.Photos.Bucket)
	env.setStr("HIT_PHOTO_REGION", &cfg.Photos.Region)
	env.setBool("HIT_PHOTO_USE_SSL", &cfg.Photos.UseSSL)
	env.setStr("HIT_PHOTO_PUBLIC_BASE_URL", &cfg.Photos.PublicBaseURL)

	env.setStr("GEMINI_API_KEY", &cfg.LLM.APIKey)
	env.setStr("HIT_GEMINI_API_KEY", &cfg.LLM.APIKey)
	env.setStr("HIT_LLM_BASE_URL", &cfg.LLM.BaseURL)
	env.setStr("HIT_LLM_TEXT_MODEL", &cfg.LLM.TextModel)
	env.setStr("HIT_LLM_VISION_MODEL", &cfg.LLM.VisionModel)
	env.setStr("HIT_LLM_SPEECH_MODEL", &cfg.LLM.SpeechModel)
	env.setStr("HIT_LLM_VOICE", &cfg.LLM.Voice)
	env.setInt("HIT_LLM_TIMEOUT_SECONDS", &cfg.LLM.TimeoutSeconds)
	env.setFloat("HIT_LLM_REQUESTS_PER_SECOND", &cfg.LLM.RequestsPerSecond)
	env.setInt("HIT_LLM_MAX_RETRIES", &cfg.LLM.MaxRetries)
	env.setFloat("HIT_LLM_RETRY_DELAY_SECONDS", &cfg.LLM.RetryDelaySeconds)

	env.setStr("HIT_AUTH_SECRET", &cfg.Auth.Secret)
	env.setInt("HIT_AUTH_TOKEN_TTL_HOURS", &cfg.Auth.TokenTTLHours)

	env.setStr("HIT_CONTENT_FILE", &cfg.Content.CatalogFile)
	env.setBool("HIT_CONTENT_WATCH", &cfg.Content.Watch)
}

type envReader struct {
	lookup lookupFunc
}

func (e envReader) str(key string) (string, bool) {
	raw, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (e envReader) setStr(key string, dst *string) {
	if v, ok := e.str(key); ok {
		*dst = v
	}
}

// Unparseable numbers and booleans leave dst unchanged.
func (e envReader) setInt(key string, dst *int) {
	if v, ok := e.str(key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func (e envReader) setFloat(key string, dst *float64) {
	if v, ok := e.str(key); ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func (e envReader) setBool(key string, dst *bool) {
	if v, ok := e.str(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func parseListenAddr(addr string) (string, int) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", 0
	}
	if strings.HasPrefix(addr, ":") {
		port, _ := strconv.Atoi(strings.TrimPrefix(addr, ":"))
		return "", port
	}
	if host, port, err := net.SplitHostPort(addr); err == nil {
		p, _ := strconv.Atoi(port)
		return host, p
	}
	if port, err := strconv.Atoi(addr); err == nil && port > 0 {
		return "", port
	}
	return addr, 0
}
