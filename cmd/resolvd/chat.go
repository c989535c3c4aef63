package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/resolvd/resolvd"
	"github.com/resolvd/resolvd/internal/presentation/tui"
	"github.com/resolvd/resolvd/pkg/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run an interactive support session in the terminal",
	Long:  `Starts a local chat session against the workflow policies, using the built-in mock classifier and tools. Useful for authoring and debugging workflows.`,
	Run: func(cmd *cobra.Command, args []string) {
		workflowsDir, _ := cmd.Flags().GetString("workflows")
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")

		if err := runChat(workflowsDir, name, email); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("name", "Alex", "Customer first name")
	chatCmd.Flags().String("email", "alex@example.com", "Customer email")
}

func runChat(workflowsDir, name, email string) error {
	desk, err := resolvd.New(workflowsDir)
	if err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	render := func(s string) string { return s + "\n" }
	if interactive {
		tui.PrintBanner(resolvd.Version)
		render = tui.NewRenderer()
	}

	ctx := context.Background()
	sess, err := desk.Start(ctx, domain.CustomerInfo{
		FirstName: name,
		Email:     email,
	})
	if err != nil {
		return err
	}

	if len(sess.Messages) > 0 {
		fmt.Print(render(sess.Messages[len(sess.Messages)-1].Content))
	}
	if interactive {
		fmt.Println("Type a message, or /trace, /escalate, /resolve, /quit.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "exit", "quit":
			fmt.Println("Bye!")
			return nil

		case "/trace":
			printTrace(ctx, desk, sess.ID)
			continue

		case "/escalate":
			result, err := desk.RequestEscalation(ctx, sess.ID, "customer_requested", "")
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Print(render(result.Reply))
			continue

		case "/resolve":
			if _, err := desk.Resolve(ctx, sess.ID); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Println("Session resolved. Bye!")
			return nil
		}

		result, err := desk.ProcessMessage(ctx, sess.ID, line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Print(render(result.Reply))

		if result.Escalation != nil {
			fmt.Printf("[escalated: id=%s priority=%s reason=%s]\n",
				result.Escalation.EscalationID, result.Escalation.Priority, result.Escalation.Reason)
		}
	}
	return scanner.Err()
}

func printTrace(ctx context.Context, desk *resolvd.Desk, sessionID string) {
	trace, err := desk.GetTrace(ctx, sessionID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	for i, ev := range trace {
		fmt.Printf("%2d. [%s]", i+1, ev.Type)
		for _, key := range []string{"message", "intent", "rule_id", "next_action", "tool", "reason", "reply"} {
			if v, ok := ev.Data[key]; ok {
				fmt.Printf(" %s=%v", key, v)
			}
		}
		fmt.Println()
	}
}
