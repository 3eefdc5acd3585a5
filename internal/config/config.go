package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	CRM    CRMConfig
	Dialog DialogConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	crm, err := loadCRMConfig()
	if err != nil {
		return nil, err
	}

	dialog, err := loadDialogConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, CRM: crm, Dialog: dialog, Log: logCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
	// RateLimit is requests per second allowed per client address; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	rateLimit, err := parseOptionalFloatEnv("HTTP_RATE_LIMIT")
	if err != nil {
		return ServerConfig{}, err
	}
	burst, err := parseIntEnv("HTTP_RATE_BURST", 10)
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{RateBurst: burst}
	if rateLimit != nil {
		cfg.RateLimit = *rateLimit
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey         string
	AccessKey      string
	SecretKey      string
	Model          string
	BaseURL        string
	Region         string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
	// HistoryTurns bounds how many recent turns are sent with each prompt.
	HistoryTurns int
	CacheTTL     time.Duration
	// PromptFile optionally overrides the built-in prompt templates (YAML).
	PromptFile string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		val := 0.7
		temperature = &val
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens == nil {
		val := 512
		maxTokens = &val
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	history, err := parseIntEnv("AI_HISTORY_TURNS", 3)
	if err != nil {
		return AIConfig{}, err
	}
	if history < 0 {
		history = 0
	}

	cacheTTL, err := parseDurationEnv("AI_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("Model")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
		HistoryTurns:   history,
		CacheTTL:       cacheTTL,
		PromptFile:     strings.TrimSpace(os.Getenv("AI_PROMPT_FILE")),
	}, nil
}

// CRMConfig 描述预订系统（CRM）连接配置。
type CRMConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        uint
	RequestsPerSecond float64
	Burst             int
}

// Enabled reports whether a remote CRM is configured. Without it bookings go
// to the in-memory backend.
func (c CRMConfig) Enabled() bool {
	return c.BaseURL != ""
}

func loadCRMConfig() (CRMConfig, error) {
	timeout, err := parseDurationEnv("CRM_TIMEOUT", 10*time.Second)
	if err != nil {
		return CRMConfig{}, err
	}

	retries, err := parseIntEnv("CRM_MAX_RETRIES", 3)
	if err != nil {
		return CRMConfig{}, err
	}
	if retries < 1 {
		retries = 1
	}

	rps, err := parseOptionalFloatEnv("CRM_RATE_LIMIT")
	if err != nil {
		return CRMConfig{}, err
	}
	requestsPerSecond := 5.0
	if rps != nil {
		requestsPerSecond = *rps
	}

	burst, err := parseIntEnv("CRM_RATE_BURST", 1)
	if err != nil {
		return CRMConfig{}, err
	}

	return CRMConfig{
		BaseURL:           strings.TrimRight(strings.TrimSpace(os.Getenv("CRM_BASE_URL")), "/"),
		APIKey:            strings.TrimSpace(os.Getenv("CRM_API_KEY")),
		Timeout:           timeout,
		MaxRetries:        uint(retries),
		RequestsPerSecond: requestsPerSecond,
		Burst:             burst,
	}, nil
}

// DialogConfig 描述对话流程的词表与限制。
type DialogConfig struct {
	ConfirmTokens []string
	CancelTokens  []string
	ResumeTokens  []string
	ExitTokens    []string
	ResetTokens   []string
	MaxGuests     int
}

func loadDialogConfig() (DialogConfig, error) {
	maxGuests, err := parseIntEnv("DIALOG_MAX_GUESTS", 10)
	if err != nil {
		return DialogConfig{}, err
	}
	if maxGuests < 1 {
		return DialogConfig{}, fmt.Errorf("invalid DIALOG_MAX_GUESTS value %d: must be positive", maxGuests)
	}

	return DialogConfig{
		ConfirmTokens: parseListEnv("DIALOG_CONFIRM_TOKENS", []string{"да", "подтверждаю", "confirm", "yes"}),
		CancelTokens:  parseListEnv("DIALOG_CANCEL_TOKENS", []string{"нет", "отмена", "отменить", "cancel", "no"}),
		ResumeTokens:  parseListEnv("DIALOG_RESUME_TOKENS", []string{"продолжить", "вернуться", "continue", "resume"}),
		ExitTokens:    parseListEnv("DIALOG_EXIT_TOKENS", []string{"выход", "стоп"}),
		ResetTokens:   parseListEnv("DIALOG_RESET_TOKENS", []string{"/reset", "/сброс"}),
		MaxGuests:     maxGuests,
	}, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level      string
	File       string
	Production bool
}

func loadLogConfig() (LogConfig, error) {
	production, err := parseBoolEnv("LOG_PRODUCTION", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:      getEnvOrDefault("LOG_LEVEL", "info"),
		File:       strings.TrimSpace(os.Getenv("LOG_FILE")),
		Production: production,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseListEnv splits a comma separated list, lower-casing each entry.
func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return append([]string(nil), defaultValue...)
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
