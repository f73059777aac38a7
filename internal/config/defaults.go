package config

const (
	defaultConfigPath            = "~/.config/ytarchiver/config.toml"
	defaultDataDir               = "~/.local/share/ytarchiver"
	defaultVideosDir             = "~/Videos/ytarchiver"
	defaultLogDir                = "~/.local/state/ytarchiver/logs"
	defaultAPIBind               = "127.0.0.1:7489"
	defaultYTDLPBinary           = "yt-dlp"
	defaultProbeTimeoutSeconds   = 60
	defaultFormat                = "mp4"
	defaultReleaseURL            = "https://api.github.com/repos/yt-dlp/yt-dlp/releases/latest"
	defaultSettleDelayMS         = 500
	defaultTerminateGraceSeconds = 5
	defaultHeartbeatInterval     = 15
	defaultStaleThresholdSeconds = 1800
	defaultMaxRecoveries         = 1
	defaultSubmitRatePerSecond   = 2
	defaultSubmitBurst           = 5
	defaultNotifyRequestTimeout  = 10
	defaultEventsChannel         = "ytarchiver:events"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

func defaultUpdateCommand() []string {
	return []string{"pip", "install", "--upgrade", "yt-dlp"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			VideosDir: defaultVideosDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		YTDLP: YTDLP{
			Binary:              defaultYTDLPBinary,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
			DefaultFormat:       defaultFormat,
			UpdateCommand:       defaultUpdateCommand(),
			ReleaseURL:          defaultReleaseURL,
		},
		Workflow: Workflow{
			SettleDelayMS:            defaultSettleDelayMS,
			TerminateGraceSeconds:    defaultTerminateGraceSeconds,
			HeartbeatIntervalSeconds: defaultHeartbeatInterval,
			StaleThresholdSeconds:    defaultStaleThresholdSeconds,
			MaxRecoveries:            defaultMaxRecoveries,
		},
		API: API{
			SubmitRatePerSecond: defaultSubmitRatePerSecond,
			SubmitBurst:         defaultSubmitBurst,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobComplete:    true,
			JobFailed:      true,
		},
		Events: Events{
			Channel: defaultEventsChannel,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
