package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/n3tuk/maintenance-gate/internal/events"
	"github.com/n3tuk/maintenance-gate/internal/model"
	"github.com/n3tuk/maintenance-gate/internal/panel"
)

// Panel flags shared by the control subcommands.
var (
	gateURL      string
	adminSession string
	panelTimeout time.Duration
	watchNATSURL string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored and the public maintenance status",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPanel()
		if err := p.Load(cmd.Context()); err != nil {
			return panelError(p.Error, err)
		}
		printStatus(cmd.OutOrStdout(), p.Status)

		public, err := p.PublicStatus(cmd.Context())
		if err != nil {
			return panelError(model.ErrConnection, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Visitors see: ativo=%t mensagem=%q\n", public.Active, public.Message)
		return nil
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate [message]",
	Short: "Turn maintenance mode on",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPanel()
		if err := p.Load(cmd.Context()); err != nil {
			return panelError(p.Error, err)
		}
		if !p.CanActivate() {
			return fmt.Errorf("maintenance mode is already active")
		}

		p.Draft = strings.Join(args, " ")
		fmt.Fprintf(cmd.OutOrStdout(), "Preview: %s\n", p.Preview())

		if err := p.Activate(cmd.Context(), p.Draft); err != nil {
			return panelError(p.Error, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.Success)
		return nil
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Turn maintenance mode off",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPanel()
		if err := p.Load(cmd.Context()); err != nil {
			return panelError(p.Error, err)
		}
		if !p.CanDeactivate() {
			return fmt.Errorf("maintenance mode is not active")
		}

		if err := p.Deactivate(cmd.Context()); err != nil {
			return panelError(p.Error, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.Success)
		return nil
	},
}

var refreshCacheCmd = &cobra.Command{
	Use:   "refresh-cache",
	Short: "Make the gate re-read the maintenance status now",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPanel()
		current, err := p.RefreshCache(cmd.Context())
		if err != nil {
			return panelError(model.ErrConnection, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Status refreshed: ativo=%t mensagem=%q\n", current.Active, current.Message)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print maintenance status changes as they are published",
	RunE:  runWatch,
}

func init() {
	for _, cmd := range []*cobra.Command{statusCmd, activateCmd, deactivateCmd, refreshCacheCmd} {
		cmd.Flags().StringVar(&gateURL, "url", envOr("MAINTENANCE_GATE_URL", "http://127.0.0.1:8080"), "Gate API address")
		cmd.Flags().StringVar(&adminSession, "session", os.Getenv("MAINTENANCE_ADMIN_SESSION"), "Administrator session id")
		cmd.Flags().DurationVar(&panelTimeout, "timeout", 10*time.Second, "Request timeout")
		rootCmd.AddCommand(cmd)
	}

	watchCmd.Flags().StringVar(&watchNATSURL, "nats", envOr("MAINTENANCE_NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")
	rootCmd.AddCommand(watchCmd)
}

// controlPanel is the panel plus the status calls the CLI shows directly.
type controlPanel struct {
	*panel.Panel
	client *panel.HTTPClient
}

func newPanel() *controlPanel {
	client := panel.NewHTTPClient(gateURL, adminSession, panelTimeout)
	return &controlPanel{Panel: panel.New(client), client: client}
}

func (p *controlPanel) PublicStatus(ctx context.Context) (model.Status, error) {
	return p.client.PublicStatus(ctx)
}

func (p *controlPanel) RefreshCache(ctx context.Context) (model.Status, error) {
	return p.client.RefreshCache(ctx)
}

func printStatus(w io.Writer, s *model.AdminStatus) {
	state := "inactive"
	if s.Active {
		state = "ACTIVE"
	}
	fmt.Fprintf(w, "Maintenance: %s\n", state)
	fmt.Fprintf(w, "Message:     %s\n", s.Message)
	if s.UpdatedAt != nil {
		fmt.Fprintf(w, "Updated:     %s", s.UpdatedAt.Local().Format(time.RFC1123))
		if s.CreatedBy != "" {
			fmt.Fprintf(w, " by %s", s.CreatedBy)
		}
		fmt.Fprintln(w)
	}
}

// panelError prefixes err with the panel banner shown for it.
func panelError(banner string, err error) error {
	if banner == "" {
		return err
	}
	return fmt.Errorf("%s: %w", banner, err)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := events.NewNATSSubscriber(watchNATSURL)
	if err != nil {
		return err
	}
	defer sub.Close()

	changes, err := sub.SubscribeStatusChanges(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s on %s\n", events.TopicStatusChanged, watchNATSURL)
	for ev := range changes {
		fmt.Fprintf(cmd.OutOrStdout(), "%s record=%d ativo=%t mensagem=%q criado_por=%s admin=%s\n",
			ev.OccurredAt.Local().Format(time.RFC3339),
			ev.RecordID,
			ev.Active,
			ev.Message,
			ev.CreatedBy,
			ev.AdminID,
		)
	}
	return nil
}
