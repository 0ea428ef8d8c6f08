package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"toolchat/ui"
)

func conversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage stored conversations",
	}
	cmd.AddCommand(conversationsListCmd())
	cmd.AddCommand(conversationsSearchCmd())
	cmd.AddCommand(conversationsShowCmd())
	cmd.AddCommand(conversationsRenameCmd())
	cmd.AddCommand(conversationsDeleteCmd())
	cmd.AddCommand(conversationsClearCmd())
	cmd.AddCommand(conversationsExportCmd())
	return cmd
}

func conversationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently active first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			list, err := a.service.FetchConversations(cmd.Context(), a.session)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderConversationList(list, ""))
			return nil
		}),
	}
}

func conversationsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy-search conversation labels",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if _, err := a.service.FetchConversations(cmd.Context(), a.session); err != nil {
				return err
			}
			matches := a.service.SearchConversations(a.session, args[0])
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderConversationList(matches, ""))
			return nil
		}),
	}
}

func conversationsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			transcript, err := a.service.ChangeConversation(cmd.Context(), a.session, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderTranscript(transcript))
			return nil
		}),
	}
}

func conversationsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <label>",
		Short: "Change the label of a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.service.RenameConversation(cmd.Context(), a.session, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", args[0], strings.TrimSpace(args[1]))
			return nil
		}),
	}
}

func conversationsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.service.DeleteConversation(cmd.Context(), a.session, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])
			return nil
		}),
	}
}

func conversationsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every conversation of the configured user",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			n, err := a.service.ClearConversation(cmd.Context(), a.session)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d conversation(s)\n", n)
			return nil
		}),
	}
}

func conversationsExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a conversation as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			path, err := a.service.ExportConversation(cmd.Context(), a.session, args[0], output)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Exported to", path)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default ~/Downloads/toolchat-<label>-<time>.json)")
	return cmd
}
