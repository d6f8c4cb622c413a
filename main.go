package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moyoez/localstore-go/api"
	"github.com/moyoez/localstore-go/api/models"
	"github.com/moyoez/localstore-go/api/notifyhub"
	"github.com/moyoez/localstore-go/notify"
	"github.com/moyoez/localstore-go/queue"
	"github.com/moyoez/localstore-go/share"
	"github.com/moyoez/localstore-go/tool"
	"github.com/moyoez/localstore-go/transfer"
	"github.com/moyoez/localstore-go/types"
)

func main() {
	cfg := tool.SetFlags()
	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.ApplyFlagOverrides(&appCfg, cfg)
	tool.CurrentConfig = appCfg

	// initialize logger
	tool.InitLogger()
	tool.SetLogMode(cfg.Log)

	endpoint, err := tool.ParseEndpoint(appCfg.Endpoint)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	if cfg.Probe {
		ctx, cancel := context.WithTimeout(context.Background(), tool.ProbeTimeout+time.Second)
		rtt, err := tool.ProbeHost(ctx, endpoint.Hostname())
		cancel()
		if err != nil {
			tool.DefaultLogger.Warnf("Endpoint host %s did not answer ping: %v", endpoint.Hostname(), err)
		} else {
			tool.DefaultLogger.Infof("Endpoint host %s reachable (avg rtt %s)", endpoint.Hostname(), rtt)
		}
	}

	var tokens transfer.TokenSource
	switch {
	case appCfg.CsrfPage != "":
		tokens = transfer.NewCookieTokenSource(appCfg.CsrfPage, tool.GetControlHttpClient())
	case appCfg.CsrfToken != "":
		tokens = transfer.StaticToken(appCfg.CsrfToken)
	}
	uploader, err := transfer.NewHTTPTransport(endpoint.String(), tokens, time.Duration(appCfg.ProgressIntervalMs)*time.Millisecond)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}

	history := share.NewHistory(time.Duration(appCfg.HistoryTtlSeconds) * time.Second)
	observers := queue.Observers{notify.LogObserver{}, history}
	var hub *notifyhub.Hub
	if !cfg.SkipServer {
		hub = notifyhub.New()
		observers = append(observers, notify.NewHubObserver(hub))
	}
	var socketObs *notify.SocketObserver
	if appCfg.NotifySocket != "" {
		socketObs = notify.NewSocketObserver(appCfg.NotifySocket)
		observers = append(observers, socketObs)
	}

	q := queue.New(uploader, observers, queue.WithMaxAttempts(appCfg.MaxAttempts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := q.Close(ctx); err != nil {
			tool.DefaultLogger.Warnf("Upload queue did not stop in time: %v", err)
		}
		if socketObs != nil {
			socketObs.Close()
		}
	}

	if len(cfg.Files) > 0 {
		handles := make([]types.FileHandle, 0, len(cfg.Files))
		for _, path := range cfg.Files {
			handle, err := tool.ProcessFileInput(types.FileInput{FileUrl: path})
			if err != nil {
				tool.DefaultLogger.Errorf("Skipping %s: %v", path, err)
				continue
			}
			handles = append(handles, handle)
		}
		q.Enqueue(handles, appCfg.FolderId)
	}

	if cfg.SkipServer {
		if err := q.Wait(ctx); err != nil {
			tool.DefaultLogger.Warnf("Interrupted, cancelling uploads")
		}
		shutdown()
		if stats := q.LastDrain(); stats != nil && stats.FailedFiles > 0 {
			os.Exit(1)
		}
		return
	}

	models.SetUploadQueue(q)
	models.SetHistory(history)
	models.SetNotifyHub(hub)
	models.SetDefaultFolderId(appCfg.FolderId)
	models.SetStagingFolder(appCfg.StagingFolder)
	models.SetEndpoint(endpoint.String())

	apiServer := api.NewServer(appCfg.Port)
	go func() {
		if err := apiServer.Start(); err != nil {
			tool.DefaultLogger.Fatalf("API server startup failed: %v", err)
		}
	}()

	<-ctx.Done()
	tool.DefaultLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		tool.DefaultLogger.Warnf("API server shutdown: %v", err)
	}
	cancel()
	shutdown()
}
