package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomlabs/loom/core"
	"github.com/loomlabs/loom/storage/sqlite"
)

func newRunCmd() *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "run <config> <task>",
		Short: "Spawn an agent for (config, task) and drive the session to quiescence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, store, err := buildLoom()
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := parseParams(params)
			if err != nil {
				return err
			}
			sess, result, err := l.Run(cmd.Context(), args[0], args[1], p)
			if sess != nil {
				fmt.Println("session:", sess.ID())
			}
			if err != nil {
				return err
			}
			fmt.Printf("finish: %s\n%s\n", result.FinishType, result.Summary)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "task parameter key=value (repeatable)")
	return cmd
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Rebuild a persisted session and drive it to quiescence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, store, err := buildLoom()
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := l.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for id, result := range sess.Results() {
				fmt.Printf("%s: %s %s\n", id, result.FinishType, result.Summary)
			}
			return nil
		},
	}
}

func newLogCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "log <session-id>",
		Short: "Print a session's record stream (read-only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.Open(flagDB)
			if err != nil {
				return err
			}
			defer store.Close()

			filter := core.Filter{SessionID: args[0], AgentID: agentID}
			for rec, err := range store.List(filter) {
				if err != nil {
					return err
				}
				printRecord(rec)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "only records for this agent")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List the session ids in the record store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.Open(flagDB)
			if err != nil {
				return err
			}
			defer store.Close()

			ids, err := store.Sessions()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func printRecord(rec core.Record) {
	summary := ""
	if rec.Kind == core.RecordInteraction {
		var it core.Interaction
		if err := json.Unmarshal(rec.Payload, &it); err == nil {
			summary = string(it.Kind())
			if it.Branch != "" {
				summary += " [" + it.Branch + "]"
			}
		}
	}
	fmt.Printf("%6d  %-12s  %-36s  %s\n", rec.ID, rec.Kind, rec.AgentID, summary)
}

// promptHuman reads answers for interactive agents from stdin.
func promptHuman(_ context.Context, agentID, question string) (string, error) {
	fmt.Printf("\n[%s] %s\n> ", agentID, question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		return "", fmt.Errorf("empty answer")
	}
	return answer, nil
}
