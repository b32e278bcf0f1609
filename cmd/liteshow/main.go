package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/liteshow/internal/analysis"
	"github.com/satindergrewal/liteshow/internal/audio"
	"github.com/satindergrewal/liteshow/internal/config"
	"github.com/satindergrewal/liteshow/internal/engine"
	"github.com/satindergrewal/liteshow/internal/jamendo"
	"github.com/satindergrewal/liteshow/internal/keys"
	"github.com/satindergrewal/liteshow/internal/server"
	"github.com/satindergrewal/liteshow/internal/stream"
	"github.com/satindergrewal/liteshow/internal/transport"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "liteshow",
	Short: "Audio-reactive control signals for visualizers",
	Long: `liteshow analyses music as it plays and publishes, every tick, the
band levels, beats, effect levels and camera pose a visualizer needs.

Run with no subcommand to start the server.`,
	Version: version,
	RunE:    runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the engine and HTTP/WebRTC server",
	Long: `Start the engine loop and serve snapshots (SSE, WebRTC data channel),
audio (MP3, WebRTC Opus) and the control API.

Example:
  liteshow serve --port 8080 --keys`,
	RunE: runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Run beat detection over an audio file offline",
	Long: `Decode an audio file and run the analysis pipeline over it at a fixed
tick rate, faster than real time. Prints one JSON line per beat and a
summary line at the end.

Example:
  liteshow analyze track.mp3 --rate 60 --peak-decay time`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	port      int
	keysFlag  bool
	rate      int
	peakDecay string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)

	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from LITESHOW_PORT)")
		c.Flags().BoolVar(&keysFlag, "keys", false, "Read effect keys from the terminal")
	}

	analyzeCmd.Flags().IntVar(&rate, "rate", 60, "Ticks per second")
	analyzeCmd.Flags().StringVar(&peakDecay, "peak-decay", "frame", "Peak decay mode (frame or time)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port != 0 {
		cfg.Port = port
	}
	if keysFlag {
		cfg.Keyboard = true
	}
	mode, err := analysis.ParsePeakMode(cfg.PeakDecay)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("liteshow starting up...")

	// Network audio: the pipeline paces PCM frames, the broadcaster fans them out
	pipeline := audio.NewPipeline()
	go pipeline.Run(ctx)
	frames := stream.NewBroadcaster[[]int16](150)
	go frames.Run(ctx, pipeline.Frames())

	outputs := []transport.Output{pipeline}
	if cfg.LocalOutput {
		spk, err := audio.NewSpeaker()
		if err != nil {
			log.Printf("Local output disabled: %v", err)
		} else {
			outputs = append(outputs, spk)
			log.Println("Local output enabled")
		}
	}

	clock := transport.NewSystemClock()
	eng := engine.New(transport.New(clock, outputs...), engine.Options{PeakMode: mode, Seed: cfg.Seed})

	snapshots := stream.NewBroadcaster[engine.Snapshot](4)
	loop := engine.NewLoop(eng, clock, cfg.TickRate, cfg.MaxStep, snapshots)
	go loop.Run(ctx)

	// Snapshots are encoded once and shared by SSE and WebRTC listeners.
	events := stream.NewBroadcaster[[]byte](8)
	go stream.Pipe(ctx, snapshots, events, encodeSnapshot)

	jc := jamendo.NewClient(cfg.JamendoAPIURL, cfg.JamendoClientID, cfg.SearchTimeout, cfg.FetchTimeout)
	jc.MaxAudioBytes = int64(cfg.MaxUploadMB) << 20
	if cfg.JamendoClientID == "" {
		log.Println("Jamendo not configured (set JAMENDO_CLIENT_ID to enable search)")
	}

	srv := server.New(
		server.Config{Port: cfg.Port, MaxUploadBytes: int64(cfg.MaxUploadMB) << 20},
		loop,
		engine.NewLoader(loop),
		jc,
		server.Streams{
			Events: stream.NewEventsHandler(events, "snapshot"),
			Audio:  stream.NewHTTPHandler(frames),
			Offer:  stream.NewWebRTCHandler(frames, events),
		},
	)

	if cfg.Keyboard {
		cmds, err := keys.Listen(ctx)
		if err != nil {
			log.Printf("Keyboard input disabled: %v", err)
		} else {
			go runKeys(ctx, cancel, loop, cmds)
		}
	}

	return srv.Run(ctx)
}

func encodeSnapshot(s engine.Snapshot) ([]byte, bool) {
	b, err := json.Marshal(s.Lite())
	if err != nil {
		log.Printf("Snapshot encode error: %v", err)
		return nil, false
	}
	return b, true
}

// runKeys applies terminal commands to the engine. Quit cancels the
// whole process.
func runKeys(ctx context.Context, quit context.CancelFunc, loop *engine.Loop, cmds <-chan keys.Command) {
	for cmd := range cmds {
		var err error
		switch cmd.Action {
		case keys.Trigger:
			err = loop.Do(ctx, func(e *engine.Engine) { e.Trigger(cmd.Effect) })
		case keys.Toggle:
			err = loop.Do(ctx, func(e *engine.Engine) {
				if terr := e.Transport().Toggle(); terr != nil {
					log.Printf("Keys: toggle: %v", terr)
				}
			})
		case keys.Quit:
			quit()
			return
		}
		if err != nil {
			return
		}
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	mode, err := analysis.ParsePeakMode(peakDecay)
	if err != nil {
		return err
	}
	if _, err := tickStep(rate); err != nil {
		return err
	}
	samples, err := audio.DecodeFile(args[0])
	if err != nil {
		return err
	}
	track := audio.NewTrack(args[0], "", samples)
	_, err = analyze(track, rate, mode, cmd.OutOrStdout())
	return err
}
