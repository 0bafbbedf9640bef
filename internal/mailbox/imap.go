package mailbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPClient wraps go-imap v2 for fetching unread mail and flagging the
// messages that were answered. Each operation runs in its own
// short-lived session.
type IMAPClient struct {
	cfg    IMAPConfig
	logger *slog.Logger
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(cfg IMAPConfig, logger *slog.Logger) *IMAPClient {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IMAPClient{cfg: cfg, logger: logger}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client.
func (c *IMAPClient) Connect(ctx context.Context) (*imapclient.Client, error) {
	addr := c.cfg.Host + ":" + c.cfg.Port

	var client *imapclient.Client
	var err error

	switch {
	case c.cfg.Insecure:
		client, err = imapclient.DialInsecure(addr, nil)
	case c.cfg.TLS:
		client, err = imapclient.DialTLS(addr, nil)
	default:
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := ctx.Err(); err != nil {
		client.Close()
		return nil, err
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Protocol: "imap",
			Username: c.cfg.Username,
			Err:      err,
		}
	}

	c.logger.Debug("imap session opened", "addr", addr, "user", c.cfg.Username)
	return client, nil
}

// session connects, selects the configured mailbox and runs fn. The
// connection is torn down when fn returns or ctx is cancelled.
func (c *IMAPClient) session(
	ctx context.Context, fn func(*imapclient.Client) error,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	if _, err := client.Select(c.cfg.Mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", c.cfg.Mailbox, err)
	}

	return fn(client)
}

// FetchUnread searches the mailbox for messages without the \Seen flag
// and returns them parsed, in the order the search returned them. The
// bodies are fetched with PEEK so fetching alone never marks anything
// read. A limit above zero keeps only the first limit hits.
func (c *IMAPClient) FetchUnread(
	ctx context.Context, limit int,
) ([]InboundMessage, error) {
	var messages []InboundMessage

	err := c.session(ctx, func(client *imapclient.Client) error {
		criteria := &imap.SearchCriteria{
			NotFlag: []imap.Flag{imap.FlagSeen},
		}

		searchData, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching unseen messages: %w", err)
		}

		uids := searchData.AllUIDs()
		c.logger.Info("unseen messages found", "mailbox", c.cfg.Mailbox, "count", len(uids))
		if len(uids) == 0 {
			return nil
		}
		if limit > 0 && len(uids) > limit {
			uids = uids[:limit]
		}

		raw, err := c.fetchBodies(client, uids)
		if err != nil {
			return err
		}

		messages = make([]InboundMessage, 0, len(uids))
		for _, uid := range uids {
			body, ok := raw[uid]
			if !ok {
				c.logger.Warn("message vanished before fetch", "uid", uid)
				continue
			}

			msg, err := ParseMessage(uint32(uid), body)
			if err != nil {
				c.logger.Warn("skipping unparsable message", "uid", uid, "error", err)
				continue
			}
			messages = append(messages, msg)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching unread messages: %w", err)
	}

	return messages, nil
}

// fetchBodies fetches BODY.PEEK[] for uids and indexes the raw messages
// by UID, since servers may answer in any order.
func (c *IMAPClient) fetchBodies(
	client *imapclient.Client, uids []imap.UID,
) (map[imap.UID][]byte, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	raw := make(map[imap.UID][]byte, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			c.logger.Warn("collecting fetched message", "error", err)
			continue
		}

		if body := buf.FindBodySection(bodySection); body != nil {
			raw[buf.UID] = body
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching message bodies: %w", err)
	}

	return raw, nil
}

// MarkReplied adds \Seen and \Answered to the given messages.
func (c *IMAPClient) MarkReplied(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}

	set := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		set = append(set, imap.UID(uid))
	}

	err := c.session(ctx, func(client *imapclient.Client) error {
		storeCmd := client.Store(imap.UIDSetNum(set...), &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen, imap.FlagAnswered},
		}, nil)
		return storeCmd.Close()
	})
	if err != nil {
		return fmt.Errorf("flagging %d replied messages: %w", len(uids), err)
	}

	return nil
}
