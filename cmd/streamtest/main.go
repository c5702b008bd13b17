// streamtest connects to the telemetryd websocket stream and prints every
// record batch to the console.
// Usage: go run ./cmd/streamtest --url ws://localhost:8000/ws/robots
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/pflag"

	"github.com/rickgao/robot-telemetry/internal/connection"
	"github.com/rickgao/robot-telemetry/internal/model"
)

func main() {
	url := pflag.String("url", "ws://localhost:8000/ws/robots", "stream URL")
	origin := pflag.String("origin", "", "Origin header to send")
	attempts := pflag.Uint("attempts", 5, "dial attempts per (re)connect")
	lowBattery := pflag.Int("low-battery", 20, "flag robots below this battery percentage")
	verbose := pflag.BoolP("verbose", "v", false, "print full frame JSON")
	pflag.Parse()

	// Setup logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := connection.DefaultClientConfig()
	cfg.URL = *url
	cfg.Origin = *origin
	cfg.DialAttempts = *attempts

	client := connection.NewClient(cfg, logger)
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	frames := 0
	for {
		if err := client.Connect(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, connection.ErrAlreadyClosed) {
				break
			}
			logger.Error("failed to connect", "url", *url, "error", err)
			os.Exit(1)
		}
		logger.Info("streaming started - press Ctrl+C to stop", "url", *url)

		err := consume(client, *lowBattery, *verbose, &frames)
		var ended *terminalError
		switch {
		case errors.As(err, &ended):
			logger.Error("stream reported an error", "error", ended.msg, "frames", frames)
			client.Close()
			os.Exit(1)
		case ctx.Err() != nil:
		default:
			logger.Warn("stream dropped, reconnecting", "error", err)
			continue
		}
		break
	}

	logger.Info("shutdown complete", "frames", frames)
}

type terminalError struct{ msg string }

func (e *terminalError) Error() string { return e.msg }

// consume prints frames until the connection fails or an error frame
// arrives.
func consume(client *connection.Client, lowBattery int, verbose bool, frames *int) error {
	for {
		frame, err := client.Next()
		if err != nil {
			return err
		}
		if frame.Terminal() {
			return &terminalError{msg: frame.Error}
		}

		*frames++
		printFrame(frame, lowBattery, verbose)
	}
}

func printFrame(frame connection.Frame, lowBattery int, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(frame.Robots, "", "  ")
		fmt.Printf("[ROBOTS] %s\n", data)
		return
	}

	online := 0
	var low []model.WireRecord
	for _, r := range frame.Robots {
		if r.Online {
			online++
		}
		if r.BatteryPercentage < lowBattery {
			low = append(low, r)
		}
	}

	fmt.Printf("[ROBOTS] at=%s robots=%d online=%d low_battery=%d\n",
		frame.ReceivedAt.Format(time.TimeOnly), len(frame.Robots), online, len(low))
	for _, r := range low {
		fmt.Printf("[LOW BATTERY] robot=%s battery=%d%% last_updated=%s\n",
			r.RobotID, r.BatteryPercentage, r.LastUpdated)
	}
}
