package config

// Default returns the configuration used when no config file exists.
// Combined with the environment overlay it is enough to run the scheduler
// in a container with no mounted config at all.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "INFO",
			Console: true,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
		Tasks: TasksConfig{},
	}
}
