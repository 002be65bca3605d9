// Command engagectl exercises the engagement SDK from a terminal: a scripted
// demo session, a live connection against a real backend, and journal
// inspection.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	engage "github.com/engageworks/engage-go"
	"github.com/engageworks/engage-go/internal/backend"
	"github.com/engageworks/engage-go/internal/config"
	"github.com/engageworks/engage-go/internal/confirm"
	"github.com/engageworks/engage-go/internal/engagement"
	"github.com/engageworks/engage-go/internal/journal/sqlite"
	"github.com/engageworks/engage-go/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "engagectl",
		Short:         "Engagement SDK control tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to engage.yaml")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newDemoCmd(&configPath))
	root.AddCommand(newConnectCmd(&configPath))
	root.AddCommand(newJournalCmd(&configPath))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the SDK version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), engage.Version)
		},
	}
}

func loadConfig(configPath string) (config.Config, error) {
	logger := log.New("info")
	cfg, path, err := config.Load(logger, configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// newDemoCmd runs a fully scripted session against an in-process backend:
// enqueue, engage, media upgrade, screen share, unread badge, remote end
// with a survey.
func newDemoCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted engagement session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			logger := log.New(cfg.LogLevel)

			client := backend.NewScripted()
			client.SetSurvey(&backend.Survey{
				ID:    "demo-survey",
				Title: "How was your engagement?",
				Questions: []backend.SurveyQuestion{
					{ID: "rating", Text: "Rate the operator", Kind: backend.QuestionScale},
				},
			})

			auto := confirm.Accepted
			coord, err := engagement.New(engagement.Options{
				Backend:        client,
				Window:         &consoleWindow{out: out},
				Prompts:        &consolePrompts{out: out, auto: &auto},
				Surveys:        &consoleSurveys{out: out},
				Logger:         logger,
				VisitorID:      uuid.NewString(),
				ShowSurvey:     cfg.ShowSurvey,
				RequestTimeout: cfg.RequestTimeout,
			})
			if err != nil {
				return err
			}

			runCtx, stopRun := context.WithCancel(cmd.Context())
			defer stopRun()
			runDone := make(chan struct{})
			go func() {
				defer close(runDone)
				_ = coord.Run(runCtx)
			}()

			eventsDone := make(chan struct{})
			go func() {
				defer close(eventsDone)
				for ev := range coord.Events() {
					fmt.Fprintf(out, "[event] %s", ev.Kind)
					if ev.Kind == engagement.EventStarted || ev.Kind == engagement.EventKindChanged {
						fmt.Fprintf(out, " (%s)", ev.EngagementKind)
					}
					fmt.Fprintln(out)
				}
			}()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if err := coord.Start(ctx, engagement.Direct(engagement.KindChat)); err != nil {
				return fmt.Errorf("start: %w", err)
			}

			client.PushEngagementState(backend.EngagementState{
				Phase:        backend.PhaseEngaged,
				EngagementID: "demo-engagement",
				ShowSurvey:   true,
			})
			client.PushUnreadCount(2)

			client.PushUpgradeOffer(backend.MediaUpgradeOffer{
				ID:        "demo-offer",
				MediaKind: backend.MediaVideo,
				Direction: backend.DirectionTwoWay,
			})
			client.PushScreenShareState(backend.ScreenShareRequested)

			// Give the control loop a beat to settle, then end remotely.
			time.Sleep(200 * time.Millisecond)
			client.PushEngagementState(backend.EngagementState{
				Phase:        backend.PhaseEnded,
				EngagementID: "demo-engagement",
				Reason:       "operator_hung_up",
				ShowSurvey:   true,
			})

			// Wait for the terminal event to drain, then stop.
			time.Sleep(500 * time.Millisecond)
			stopRun()
			<-runDone
			fmt.Fprintln(out, "demo finished")
			return nil
		},
	}
}

// newConnectCmd dials a real backend and drives a chat session interactively
// until interrupted.
func newConnectCmd(configPath *string) *cobra.Command {
	var visitorID string
	var kind string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to the backend and start an engagement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if visitorID == "" {
				visitorID = uuid.NewString()
			}

			startKind := engage.KindChat
			switch kind {
			case "chat":
			case "audio":
				startKind = engage.KindAudioCall
			case "video":
				startKind = engage.KindVideoCall
			case "messaging":
				startKind = engage.KindMessaging
			default:
				return fmt.Errorf("unknown kind %q", kind)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			client, err := engage.New(ctx, cfg, visitorID, engage.UI{
				Window:  &consoleWindow{out: out},
				Prompts: &consolePrompts{in: bufio.NewReader(cmd.InOrStdin()), out: out},
				Surveys: &consoleSurveys{out: out},
			})
			if err != nil {
				return err
			}
			defer client.Close()

			runDone := make(chan struct{})
			go func() {
				defer close(runDone)
				_ = client.Run(ctx)
			}()
			go func() {
				for ev := range client.Events() {
					fmt.Fprintf(out, "[event] %s", ev.Kind)
					if ev.Kind == engage.EventStarted || ev.Kind == engage.EventKindChanged {
						fmt.Fprintf(out, " (%s)", ev.EngagementKind)
					}
					fmt.Fprintln(out)
				}
			}()

			if err := client.Start(ctx, engage.Direct(startKind)); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			fmt.Fprintln(out, "session running, ctrl-c to end")

			<-ctx.Done()
			<-runDone
			return nil
		},
	}
	cmd.Flags().StringVar(&visitorID, "visitor", "", "visitor identifier (random when empty)")
	cmd.Flags().StringVar(&kind, "kind", "chat", "engagement kind: chat, audio, video, messaging")
	return cmd
}

// newJournalCmd prints recent engagement outcomes from the sqlite journal.
func newJournalCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent engagement outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.JournalPath == "" {
				return fmt.Errorf("journal_path is not configured")
			}

			store, err := sqlite.New(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			records, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "no engagements recorded")
				return nil
			}
			for _, r := range records {
				ended := "-"
				if r.EndedAt != nil {
					ended = r.EndedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%s  %-10s %-7s started=%s ended=%s upgrades=%d reason=%s\n",
					r.ID, r.Kind, r.Outcome, r.StartedAt.Format(time.RFC3339), ended, r.Upgrades, r.EndReason)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to list")
	return cmd
}
