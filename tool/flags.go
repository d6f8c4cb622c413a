package tool

import (
	"flag"

	"github.com/moyoez/localstore-go/types"
)

// SetFlags parses CLI flags and returns the override config.
// Remaining positional arguments are local files to enqueue at startup.
func SetFlags() types.Config {
	var cfg types.Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseEndpoint, "useEndpoint", "", "override upload endpoint, e.g. http://127.0.0.1:8000/upload/")
	flag.StringVar(&cfg.UseFolderId, "useFolderId", "", "folder id attached to every upload as folder_id")
	flag.StringVar(&cfg.UseCsrfToken, "useCsrfToken", "", "anti-forgery token sent as X-CSRFToken")
	flag.IntVar(&cfg.UsePort, "usePort", 0, "override local control API port")
	flag.IntVar(&cfg.UseMaxAttempts, "useMaxAttempts", 0, "attempts per file, 1 disables retry")
	flag.StringVar(&cfg.UseNotifySocket, "useNotifySocket", "", "unix socket that receives queue notifications")
	flag.BoolVar(&cfg.SkipServer, "skipServer", false, "do not start the local API, upload the given files and exit")
	flag.BoolVar(&cfg.Probe, "probe", false, "ping the endpoint host before starting")
	flag.Parse()
	cfg.Files = flag.Args()
	return cfg
}

// ApplyFlagOverrides merges non-empty flag values into the loaded config.
func ApplyFlagOverrides(appCfg *types.AppConfig, flags types.Config) {
	if flags.UseEndpoint != "" {
		appCfg.Endpoint = flags.UseEndpoint
	}
	if flags.UseFolderId != "" {
		appCfg.FolderId = flags.UseFolderId
	}
	if flags.UseCsrfToken != "" {
		appCfg.CsrfToken = flags.UseCsrfToken
	}
	if flags.UsePort > 0 {
		appCfg.Port = flags.UsePort
	}
	if flags.UseMaxAttempts > 0 {
		appCfg.MaxAttempts = flags.UseMaxAttempts
	}
	if flags.UseNotifySocket != "" {
		appCfg.NotifySocket = flags.UseNotifySocket
	}
}
