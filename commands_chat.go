package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"toolchat/model"
	"toolchat/ui"
)

func chatCmd() *cobra.Command {
	var (
		presetID       string
		conversationID string
		resume         bool
		role           string
		tool           string
		toolArgs       string
		confirmType    string
		confirmContent string
	)

	cmd := &cobra.Command{
		Use:   "chat <text>",
		Short: "Add a message to a conversation",
		Long: `Add a message to a new or existing conversation.

With --tool, an assistant message runs the namespaced tool (server__tool)
and records the call as a thought. With --confirm, the assistant message
asks for confirmation on stdin; an interrupt records it as cancelled.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			r := model.Role(role)
			if !r.Valid() {
				return fmt.Errorf("invalid role %q (want user, ai or system)", role)
			}

			if err := selectConversation(ctx, a, args[0], presetID, conversationID, resume); err != nil {
				return err
			}

			msg, err := a.service.AddMessage(ctx, a.session, args[0], r)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, ui.RenderMessage(msg))

			if tool == "" && confirmContent == "" {
				fmt.Fprintln(out, ui.DimStyle.Render("conversation "+a.session.ActiveKey()))
				return nil
			}

			ai, err := a.service.BeginMessage(ctx, a.session, model.RoleAI)
			if err != nil {
				return err
			}

			if tool != "" {
				call := model.ToolCall{
					ID:       "call_" + uuid.NewString(),
					Type:     "function",
					Function: model.FunctionCall{Name: tool, Arguments: toolArgs},
				}
				var runErr error
				spinErr := ui.RunWithSpinner(ctx, cmd.ErrOrStderr(), "Running "+tool, func() {
					_, runErr = a.service.RunToolCall(ctx, a.session, &ai, call)
				})
				if err := errors.Join(spinErr, runErr); err != nil {
					return err
				}
			}

			if confirmContent != "" && ai.Status == model.StatusLoading {
				if err := askConfirmation(ctx, cmd.InOrStdin(), out, a, &ai, model.Confirmation{
					Type:    model.ConfirmType(confirmType),
					Content: confirmContent,
				}); err != nil {
					return err
				}
			}

			if ai.Status == model.StatusLoading {
				if err := a.service.FinishMessage(ctx, a.session, &ai, model.StatusSuccess); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, ui.RenderMessage(ai))
			fmt.Fprintln(out, ui.DimStyle.Render("conversation "+a.session.ActiveKey()))
			return nil
		}),
	}

	cmd.Flags().StringVar(&presetID, "preset", "", "Preset the conversation belongs to")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Continue this conversation instead of starting one")
	cmd.Flags().BoolVar(&resume, "continue", false, "Continue the latest conversation of the preset")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "Message role: user, ai or system")
	cmd.Flags().StringVar(&tool, "tool", "", "Namespaced tool to run in the reply (server__tool)")
	cmd.Flags().StringVar(&toolArgs, "tool-args", "{}", "Tool arguments as a JSON object")
	cmd.Flags().StringVar(&confirmType, "confirm-type", string(model.ConfirmCmd), "Kind of confirmation: cmd, markdown, html, form, install or call")
	cmd.Flags().StringVar(&confirmContent, "confirm", "", "Ask for confirmation of this content in the reply")
	return cmd
}

func selectConversation(ctx context.Context, a *app, text, presetID, conversationID string, resume bool) error {
	if conversationID == "" && resume {
		latest, err := a.store.LatestConversation(ctx, a.session.UserID(), presetID)
		if err != nil {
			return err
		}
		if latest != nil {
			conversationID = latest.ID
		}
	}

	if conversationID != "" {
		_, err := a.service.ChangeConversation(ctx, a.session, conversationID)
		return err
	}

	_, err := a.service.AddConversation(ctx, a.session, text, presetID)
	return err
}

// askConfirmation renders a confirmation and resolves it from the user's
// answer. When ctx ends first the confirmation stays pending and is
// cancelled at shutdown.
func askConfirmation(ctx context.Context, in io.Reader, out io.Writer, a *app, msg *model.Message, confirm model.Confirmation) error {
	key, err := a.service.RequestConfirmation(ctx, a.session, msg, confirm)
	if err != nil {
		return err
	}

	result, err := ui.AskConfirmation(ctx, in, out, confirm)
	if err != nil {
		return err
	}
	return a.service.ResolveConfirmation(ctx, key, result)
}
