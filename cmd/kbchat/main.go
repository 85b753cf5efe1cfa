package main

import (
	"KBAssist/pkg/attachment"
	"KBAssist/pkg/chat"
	"KBAssist/pkg/config"
	"KBAssist/pkg/services"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	profilePath string
	useLocal    bool
	verbose     bool
)

func main() {
	root := &cobra.Command{
		Use:   "kbchat",
		Short: "Terminal client for the knowledge-base support assistant",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				log.SetOutput(io.Discard)
			}
			return config.Load()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&profilePath, "profile", "p", "", "path to a support profile YAML (default: built-in)")
	root.PersistentFlags().BoolVar(&useLocal, "local", false, "answer with the offline local gateway even when Gemini is enabled")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print component logs to stderr")

	root.AddCommand(chatCmd())
	root.AddCommand(replayCmd())
	root.AddCommand(analyzeCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// newSession builds a standalone session the same way the server does.
func newSession() (*chat.Session, config.Profile, error) {
	path := profilePath
	if path == "" {
		path = config.ProfilePath
	}
	profile, err := config.LoadProfile(path)
	if err != nil {
		return nil, config.Profile{}, fmt.Errorf("profile: %w", err)
	}

	var gw services.Gateway = services.NewLocalGateway()
	if config.IsGeminiEnabled && !useLocal {
		if config.GeminiAPIKey == "" {
			fmt.Fprintln(os.Stderr, "[warn] GEMINI_API_KEY is empty, every answer will be an error bubble")
		}
		gw = services.NewGeminiGatewayFromConfig(profile)
	}

	s := chat.NewSession(services.WithMetrics(gw), chat.SessionOptions{
		Profile: profile,
		Encoder: attachment.NewEncoder(config.MaxAttachmentBytes, config.AllowedAttachmentTypes),
	})
	return s, profile, nil
}
