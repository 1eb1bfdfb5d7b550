package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/relay"
	"github.com/spf13/cobra"
)

// newChatCmd creates the `chatrelay chat` command for local conversations.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the bot from the terminal",
		Long: `Talk to the completion API through the same history pipeline the
channels use. Pass a message for a one-shot answer, or no arguments for
an interactive session.

Examples:
  chatrelay chat "what's a goroutine?"
  chatrelay chat  # interactive mode`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().StringP("model", "m", "", "override the configured model")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		cfg = relay.DefaultConfig()
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Model = model
	}

	logger := newLogger(cmd, cfg)
	relay.ResolveAPIKey(cfg, logger)

	store := relay.NewConversationStore(cfg.HistoryBudget)
	llm := relay.NewLLMClient(cfg, logger)
	orchestrator := relay.NewOrchestrator(store, llm, relay.NewFallbackPool(cfg.Fallbacks), logger)

	ctx := context.Background()

	// Terminal sessions get a throwaway identity; history still obeys the
	// same character budget the channels enforce.
	identity := "cli-" + uuid.New().String()

	// One-shot mode.
	if len(args) > 0 {
		store.Append(identity, relay.RoleUser, args[0])
		fmt.Println(orchestrator.Respond(ctx, identity))
		return nil
	}

	// Interactive mode.
	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("%s interactive chat. /reset clears history, Ctrl+D exits.\n", cfg.Name)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/reset" {
			store.Clear(identity)
			fmt.Println("Messages history cleaned")
			continue
		}

		store.Append(identity, relay.RoleUser, line)
		response := orchestrator.Respond(ctx, identity)
		store.Append(identity, relay.RoleAssistant, response)
		fmt.Printf("bot> %s\n", response)
	}
}
