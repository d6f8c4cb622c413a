package types

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	Endpoint           string `yaml:"endpoint"`
	CsrfToken          string `yaml:"csrfToken,omitempty"`
	CsrfPage           string `yaml:"csrfPage,omitempty"`
	FolderId           string `yaml:"folderId,omitempty"`
	MaxAttempts        int    `yaml:"maxAttempts"`
	ProgressIntervalMs int    `yaml:"progressIntervalMs"`
	Port               int    `yaml:"port"`
	StagingFolder      string `yaml:"stagingFolder"`
	NotifySocket       string `yaml:"notifySocket,omitempty"`
	HistoryTtlSeconds  int    `yaml:"historyTtlSeconds"`
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log             string
	UseConfigPath   string
	UseEndpoint     string
	UseFolderId     string
	UseCsrfToken    string
	UsePort         int
	UseMaxAttempts  int    // 0 keeps the config value.
	UseNotifySocket string // unix socket for an external UI, empty keeps config value.
	SkipServer      bool   // if true, only upload the files given as arguments and exit.
	Probe           bool   // if true, ping the endpoint host before starting.
	Files           []string
}
