package configuration

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds the application settings as section -> key -> value.
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// Initialize loads the global configuration. A settings.local.cfg next to the
// base file overrides individual values and is never written back.
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = loadConfig(configPath)
		if err != nil {
			return
		}
		localConfigPath := "settings.local.cfg"
		if _, statErr := os.Stat(localConfigPath); statErr == nil {
			// Override failures are not fatal, the base config stays in effect.
			_ = globalConfig.mergeFile(localConfigPath)
		}
	})
	return err
}

// loadConfig reads an INI-style file, creating it with defaults if missing.
func loadConfig(filePath string) (*Config, error) {
	config := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		config.createDefaultConfig()
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %v", err)
		}
		return config, nil
	}
	if err := config.mergeFile(filePath); err != nil {
		return nil, err
	}
	return config, nil
}

// mergeFile parses filePath and writes its values over the current settings.
func (c *Config) mergeFile(filePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			if c.settings[currentSection] == nil {
				c.settings[currentSection] = make(map[string]string)
			}
			continue
		}

		if strings.Contains(line, "=") && currentSection != "" {
			parts := strings.SplitN(line, "=", 2)
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			c.settings[currentSection][key] = value
		}
	}
	return scanner.Err()
}

// createDefaultConfig fills in every parameter the server actually reads.
func (c *Config) createDefaultConfig() {
	c.settings["Server"] = map[string]string{
		"listen_addr":      ":8080",
		"static_dir":       "web",
		"shutdown_timeout": "10s",
	}

	c.settings["Terminal"] = map[string]string{
		"type_interval_ms":   "18",
		"max_history_lines":  "200",
		"prompt_symbol":      "guest@folio:~$ ",
		"post_login_route":   "/blog",
		"welcome_text":       "folioterm - type 'help' to list commands",
		"max_output_lines":   "2000",
		"max_input_length":   "512",
	}

	c.settings["RateLimit"] = map[string]string{
		"window":                  "1m",
		"default_limit_per_min":   "0",
		"max_commands_per_second": "20",
	}

	c.settings["JWT"] = map[string]string{
		"secret_key":             "ENVIRONMENT_VARIABLE_NOT_SET_FALLBACK",
		"token_expiration_hours": "24",
		"issuer":                 "folioterm",
	}

	c.settings["Database"] = map[string]string{
		"path":               "folioterm.db",
		"seed_demo_commands": "true",
	}

	c.settings["Security"] = map[string]string{
		"max_sessions_per_ip":  "5",
		"max_total_sessions":   "200",
		"session_idle_timeout": "30m",
	}

	c.settings["TLS"] = map[string]string{
		"enable_tls":           "false",
		"enable_letsencrypt":   "false",
		"domain":               "",
		"letsencrypt_email":    "",
		"cert_cache_dir":       "./certs",
		"force_https_redirect": "false",
		"cert_file":            "./certs/server.crt",
		"key_file":             "./certs/server.key",
		"https_addr":           ":8443",
	}

	c.settings["Network"] = map[string]string{
		"pong_timeout":        "90s",
		"write_wait_timeout":  "10s",
		"max_message_size_kb": "16",
		"max_channel_buffer":  "1000",
	}

	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "debug.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		// Per-area switches.
		"log_terminal":    "false",
		"log_interpreter": "false",
		"log_media":       "false",
		"log_session":     "false",
		"log_auth":        "true",
		"log_database":    "false",
		"log_websocket":   "false",
		"log_config":      "true",
		"log_security":    "true",
		"log_general":     "true",
	}
}

// saveToFile writes the current configuration back to disk.
func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	file.WriteString("; folioterm configuration file\n")
	file.WriteString("; Generated automatically - modify with care\n")
	file.WriteString(";\n\n")

	sections := []string{"Server", "Terminal", "RateLimit", "JWT", "Database", "Security", "TLS", "Network", "Debug"}
	for _, section := range sections {
		if settings, exists := c.settings[section]; exists {
			file.WriteString(fmt.Sprintf("[%s]\n", section))
			for key, value := range settings {
				file.WriteString(fmt.Sprintf("%s = %s\n", key, value))
			}
			file.WriteString("\n")
		}
	}
	return nil
}

// GetString returns a string value from the configuration.
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	if sectionMap, exists := globalConfig.settings[section]; exists {
		if value, exists := sectionMap[key]; exists {
			return value
		}
	}
	return defaultValue
}

// GetInt returns an integer value from the configuration.
func GetInt(section, key string, defaultValue int) int {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(str); err == nil {
		return value
	}
	return defaultValue
}

// GetBool returns a boolean value from the configuration.
func GetBool(section, key string, defaultValue bool) bool {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(str); err == nil {
		return value
	}
	return defaultValue
}

// GetDuration returns a duration value from the configuration.
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(str); err == nil {
		return value
	}
	return defaultValue
}

// SetString sets a string value in the configuration (in memory only).
func SetString(section, key, value string) {
	if globalConfig == nil {
		return
	}

	globalConfig.mu.Lock()
	defer globalConfig.mu.Unlock()

	if globalConfig.settings[section] == nil {
		globalConfig.settings[section] = make(map[string]string)
	}
	globalConfig.settings[section][key] = value
}

// Save persists the current configuration to the base file.
func Save() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	return globalConfig.saveToFile()
}
