package config

// DefaultSinkURL matches the admin endpoint of the news server.
const DefaultSinkURL = "http://localhost:5000/api/admin/post-news"

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Sink:    SinkConfig{URL: DefaultSinkURL},
		Logging: LoggingConfig{Level: "info", Console: true},
		Report:  "@every 1h",
	}
}
