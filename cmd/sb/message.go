package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/bus"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/messaging"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Agent-to-agent messaging commands",
	}

	cmd.AddCommand(newMessageSendCmd())
	cmd.AddCommand(newMessageInboxCmd())
	cmd.AddCommand(newMessageThreadCmd())
	cmd.AddCommand(newMessageAckCmd())
	cmd.AddCommand(newMessageUnreadCmd())
	cmd.AddCommand(newMessageCleanupCmd())
	return cmd
}

// openStore loads config and opens the message store it points at.
func openStore(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gdb, nil
}

// attachBusIfRunning gives a CLI send the same push behavior the daemon has,
// provided the daemon's bus is reachable. No bus, no push; the message is
// stored either way.
func attachBusIfRunning(cfg *config.Config, client *messaging.Client) func() {
	if !cfg.Bus.Enabled {
		return func() {}
	}
	bc, err := bus.Connect(fmt.Sprintf("nats://127.0.0.1:%d", cfg.Bus.Port))
	if err != nil {
		return func() {}
	}
	client.AttachBus(bc)
	return func() {
		bc.Flush()
		bc.Close()
	}
}

func newMessageSendCmd() *cobra.Command {
	var (
		configPath string
		from       string
		to         string
		msgType    string
		payload    string
		contextID  string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to another agent",
		Long:  "Sends a typed message from one agent to another, with an optional JSON payload and a context ID for threading.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageSend(cmd, configPath, from, to, msgType, payload, contextID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVar(&from, "from", "", "sender agent name")
	cmd.Flags().StringVar(&to, "to", "", "recipient agent name")
	cmd.Flags().StringVar(&msgType, "type", "", "message type, e.g. TASK_DELEGATION")
	cmd.Flags().StringVar(&payload, "payload", "", "message payload as a JSON object")
	cmd.Flags().StringVar(&contextID, "context", "", "context ID linking this message to a thread")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("type")
	return cmd
}

func runMessageSend(cmd *cobra.Command, configPath, from, to, msgType, payload, contextID string) error {
	var payloadMap map[string]any
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &payloadMap); err != nil {
			return fmt.Errorf("invalid payload JSON: %w", err)
		}
	}

	cfg, gdb, err := openStore(configPath)
	if err != nil {
		return err
	}

	client := messaging.NewClient(gdb)
	detach := attachBusIfRunning(cfg, client)
	defer detach()

	msg, err := client.Send(from, to, models.MessageType(msgType), payloadMap, contextID)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s (message %d)\n", msg.Type, msg.Recipient, msg.ID)
	return nil
}

func newMessageInboxCmd() *cobra.Command {
	var (
		configPath string
		agent      string
		msgType    string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List an agent's inbox, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageInbox(cmd, configPath, agent, msgType, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVar(&agent, "agent", "", "agent whose inbox to list")
	cmd.Flags().StringVar(&msgType, "type", "", "only list messages of this type")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum messages to list (default 50)")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func runMessageInbox(cmd *cobra.Command, configPath, agent, msgType string, limit int) error {
	_, gdb, err := openStore(configPath)
	if err != nil {
		return err
	}

	msgs, err := messaging.NewClient(gdb).Inbox(agent, models.MessageType(msgType), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintf(out, "No messages for %s\n", agent)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTYPE\tSTATUS\tCONTEXT\tCREATED")
	for _, m := range msgs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.Sender, m.Type, m.Status, m.ContextID,
			m.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func newMessageThreadCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "thread <context-id>",
		Short: "Show a conversation thread in causal order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageThread(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runMessageThread(cmd *cobra.Command, configPath, contextID string) error {
	_, gdb, err := openStore(configPath)
	if err != nil {
		return err
	}

	msgs, err := messaging.NewClient(gdb).Thread(contextID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintf(out, "No messages in context %s\n", contextID)
		return nil
	}

	for _, m := range msgs {
		fmt.Fprintf(out, "[%s] %s -> %s: %s", m.CreatedAt.Format("2006-01-02 15:04"), m.Sender, m.Recipient, m.Type)
		if m.Status == models.StatusAcknowledged {
			fmt.Fprintf(out, " (ack by %s)", m.AcknowledgedBy)
		}
		fmt.Fprintln(out)
		if m.Payload != "" && m.Payload != "{}" {
			fmt.Fprintf(out, "    %s\n", m.Payload)
		}
	}
	return nil
}

func newMessageAckCmd() *cobra.Command {
	var (
		configPath string
		by         string
	)

	cmd := &cobra.Command{
		Use:   "ack <message-id>",
		Short: "Acknowledge a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageAck(cmd, configPath, args[0], by)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVar(&by, "by", "", "agent acknowledging the message")
	cmd.MarkFlagRequired("by")
	return cmd
}

func runMessageAck(cmd *cobra.Command, configPath, rawID, by string) error {
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid message ID: %w", err)
	}

	_, gdb, err := openStore(configPath)
	if err != nil {
		return err
	}

	msg, err := messaging.NewClient(gdb).Acknowledge(uint(id), by)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged message %d as %s\n", msg.ID, msg.AcknowledgedBy)
	return nil
}

func newMessageUnreadCmd() *cobra.Command {
	var (
		configPath string
		agent      string
	)

	cmd := &cobra.Command{
		Use:   "unread",
		Short: "Count an agent's unacknowledged messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageUnread(cmd, configPath, agent)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVar(&agent, "agent", "", "agent whose unread count to report")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func runMessageUnread(cmd *cobra.Command, configPath, agent string) error {
	_, gdb, err := openStore(configPath)
	if err != nil {
		return err
	}

	count, err := messaging.NewClient(gdb).UnreadCount(agent)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d unread messages for %s\n", count, agent)
	return nil
}

func newMessageCleanupCmd() *cobra.Command {
	var (
		configPath string
		days       int
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete messages older than the retention age",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageCleanup(cmd, configPath, days, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().IntVar(&days, "days", 0, "age threshold in days (default: retention.max_age_days from config)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runMessageCleanup(cmd *cobra.Command, configPath string, days int, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if days == 0 {
		days = cfg.Retention.MaxAgeDays
	}
	if days <= 0 {
		return fmt.Errorf("no retention age: pass --days or set retention.max_age_days")
	}

	if !skipConfirm {
		if !confirmPrompt(cmd, fmt.Sprintf("permanently delete messages older than %d days", days)) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}

	removed, err := messaging.NewClient(gdb).Cleanup(days)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Removed %d messages older than %d days\n", removed, days)
	return nil
}
