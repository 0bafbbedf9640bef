package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/autoreply/internal/agent"
	"github.com/nhle/autoreply/internal/credential"
	"github.com/nhle/autoreply/internal/mailbox"
	"github.com/nhle/autoreply/internal/responder"
	"github.com/nhle/autoreply/internal/store"
)

type runFlags struct {
	dryRun bool
	limit  int
}

func runCmd(opts *rootOptions) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Summarize unread messages and reply to their senders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "summarize and report without sending or flagging")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "handle at most N messages (0 means all)")
	return cmd
}

// runOnce wires the mailbox, agent, sender and history from the loaded
// config and performs one pass.
func runOnce(cmd *cobra.Command, opts *rootOptions, flags runFlags) error {
	if flags.limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	cfg := opts.cfg
	logger := opts.logger
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "started.....")

	creds := credential.Load()
	logger.Info("loaded environment",
		"email_user", creds.EmailUser,
		"email_password_set", creds.EmailPassword != "",
		"provider", cfg.Agent.Provider,
		"api_key_set", creds.APIKey(cfg.Agent.Provider) != "",
	)

	llm, err := agent.New(agent.Options{
		Provider:  cfg.Agent.Provider,
		Model:     cfg.Agent.Model,
		MaxTokens: cfg.Agent.MaxTokens,
		APIKey:    creds.APIKey(cfg.Agent.Provider),
		BaseURL:   cfg.Agent.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating %s client: %w", cfg.Agent.Provider, err)
	}

	reader := &agent.Agent{
		Role:      cfg.Agent.Role,
		Goal:      cfg.Agent.Goal,
		Backstory: cfg.Agent.Backstory,
		LLM:       llm,
	}

	inbox := mailbox.NewIMAPClient(mailbox.IMAPConfig{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: creds.EmailUser,
		Password: creds.EmailPassword,
		TLS:      cfg.IMAP.TLS,
		Insecure: cfg.IMAP.Insecure,
		Mailbox:  cfg.IMAP.Mailbox,
	}, logger)

	sender := mailbox.NewSender(mailbox.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: creds.EmailUser,
		Password: creds.EmailPassword,
		TLS:      cfg.SMTP.TLS,
	}, logger)

	history, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer history.Close()

	r := responder.New(inbox, sender, history, reader, responder.Options{
		From:          creds.EmailUser,
		ReplyBody:     cfg.Reply.Body,
		SubjectPrefix: cfg.Reply.SubjectPrefix,
		DryRun:        flags.dryRun,
		Limit:         flags.limit,
	}, out, logger)

	_, err = r.Run(cmd.Context())
	return err
}
