package cmd

import (
	"fmt"
	"strings"

	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/orchestrator"
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Subscribe a repository",
	Long: `Connect a repository to the pipeline: store its access token
encrypted, register the release webhook, and set up delivery channels.

Channels are given as kind:audience:destination, for example:
  --channel chat:customer:https://hooks.slack.com/services/T/B/X
  --channel email:developer:eng@example.com`,
	RunE: runConnect,
}

var (
	connectRepo     string
	connectToken    string
	connectCallback string
	connectTone     string
	connectLanguage string
	connectProduct  string
	connectChannels []string
)

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVarP(&connectRepo, "repo", "r", "", "Repository full name (owner/name)")
	connectCmd.Flags().StringVar(&connectToken, "token", "", "Repository access token")
	connectCmd.Flags().StringVar(&connectCallback, "callback", "", "Public webhook callback URL (default: <github.webhook_base_url>/webhooks/github)")
	connectCmd.Flags().StringVar(&connectTone, "tone", "", "Writing tone for generated notes")
	connectCmd.Flags().StringVar(&connectLanguage, "language", "", "Output language for generated notes")
	connectCmd.Flags().StringVar(&connectProduct, "product", "", "Product name used in generated notes")
	connectCmd.Flags().StringArrayVar(&connectChannels, "channel", nil, "Delivery channel as kind:audience:destination (repeatable)")
	_ = connectCmd.MarkFlagRequired("repo")
	_ = connectCmd.MarkFlagRequired("token")
}

func runConnect(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	callback := connectCallback
	if callback == "" && app.cfg.GitHub.WebhookBaseURL != "" {
		callback = strings.TrimSuffix(app.cfg.GitHub.WebhookBaseURL, "/") + "/webhooks/github"
	}

	req := orchestrator.ConnectRequest{
		FullName:      connectRepo,
		Token:         connectToken,
		CallbackURL:   callback,
		StyleTone:     connectTone,
		StyleLanguage: connectLanguage,
		StyleProduct:  connectProduct,
	}
	for _, raw := range connectChannels {
		ch, err := parseChannelFlag(raw)
		if err != nil {
			return err
		}
		req.Channels = append(req.Channels, ch)
	}

	repo, err := app.orch.Connect(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Printf("connected %s (id %s, hook %d)\n", repo.FullName, repo.ID, repo.WebhookHookID)
	return nil
}

// parseChannelFlag splits kind:audience:destination. The destination may
// itself contain colons (webhook URLs do), so only the first two are split.
func parseChannelFlag(raw string) (orchestrator.ChannelConfig, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return orchestrator.ChannelConfig{}, errors.NewValidationError(
			"channel must be kind:audience:destination").WithField("channel").WithValue(raw)
	}
	return orchestrator.ChannelConfig{
		Kind:        parts[0],
		Audience:    parts[1],
		Destination: parts[2],
	}, nil
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Unsubscribe a repository",
	Long: `Deactivate a repository subscription and remove its release webhook.
The stored history is kept; connecting again resumes processing.`,
	RunE: runDisconnect,
}

var disconnectRepo string

func init() {
	rootCmd.AddCommand(disconnectCmd)

	disconnectCmd.Flags().StringVarP(&disconnectRepo, "repo", "r", "", "Repository full name (owner/name)")
	_ = disconnectCmd.MarkFlagRequired("repo")
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.orch.Disconnect(cmd.Context(), disconnectRepo); err != nil {
		return err
	}
	fmt.Printf("disconnected %s\n", disconnectRepo)
	return nil
}
