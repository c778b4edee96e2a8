package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"jarvis/internal/audio"
	"jarvis/internal/client"
	"jarvis/internal/config"
	"jarvis/internal/events"
	"jarvis/internal/feed"
	"jarvis/internal/ipc"
	"jarvis/internal/playback"
	"jarvis/internal/session"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	socket := cli.StringP("socket", "s", "", "Control socket path (overrides env)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	cfg := config.Load()
	if *socket != "" {
		cfg.Socket = *socket
	}

	api, err := client.New(client.Options{
		BaseURL:   cfg.API.BaseURL,
		VoicePath: cfg.API.VoicePath,
		ChatPath:  cfg.API.ChatPath,
		Timeout:   cfg.API.Timeout,
		ProxyAddr: cfg.API.ProxyAddr,
	})
	if err != nil {
		log.Error("Failed to build assistant client", "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded assistant client", "url", cfg.API.BaseURL)

	mic := audio.NewMicrophone()
	if err := mic.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer mic.Close()

	log.Debug("Loaded microphone")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinks := events.Multi{events.LogSink{}, events.CueSink{}}
	if cfg.Duck.Enabled {
		ducker := audio.NewDucker([]string{"jarvisd"}, cfg.Duck.Factor, cfg.Duck.MinVolume, cfg.Duck.Fade)
		sinks = append(sinks, events.DuckSink{Ducker: ducker})
	}
	if cfg.Feed.URL != "" {
		pub := feed.NewPublisher(cfg.Feed.URL)
		go pub.Run(ctx)
		sinks = append(sinks, pub)
	}

	controller := session.NewController(mic, api, playback.NewPlayer(), sinks, session.Config{
		Capture: session.CaptureConfig{
			SampleRate: cfg.Audio.SampleRate,
			FrameSize:  cfg.Audio.FrameSize,
		},
		Encode: audio.EncodeWAV,
	})

	srv, err := ipc.StartServer(cfg.Socket, func(req ipc.Request) ipc.Response {
		return handle(ctx, controller, req)
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "socket", cfg.Socket)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down")
}

func handle(ctx context.Context, c *session.Controller, req ipc.Request) ipc.Response {
	switch req.Cmd {
	case "press":
		if err := c.Press(ctx); err != nil {
			return fail(c, err)
		}
		return ok(c)

	case "release":
		if err := c.Release(); err != nil {
			return fail(c, err)
		}
		return ok(c)

	case "status":
		return ok(c)

	case "say":
		ex, err := c.Say(ctx, req.Text)
		if err != nil {
			return fail(c, err)
		}
		resp := ok(c)
		resp.Reply = ex.Reply
		resp.Transcript = ex.Transcript
		resp.Card = ex.Card
		return resp

	default:
		log.Warn("Unknown command", "cmd", req.Cmd)
		resp := ok(c)
		resp.OK = false
		resp.Error = "unknown command: " + req.Cmd
		return resp
	}
}

func ok(c *session.Controller) ipc.Response {
	st := c.Snapshot()
	return ipc.Response{
		OK:         true,
		State:      st.State.String(),
		Transcript: st.Transcript,
		Reply:      st.Reply,
		LastError:  st.LastError,
	}
}

func fail(c *session.Controller, err error) ipc.Response {
	resp := ok(c)
	resp.OK = false
	resp.Error = err.Error()
	return resp
}
