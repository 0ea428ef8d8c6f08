package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"toolchat/config"
	"toolchat/mcp"
	"toolchat/ui"
)

func serversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List configured tool providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(settingsPath)
			if err != nil {
				return err
			}
			servers, err := config.LoadServers(cfg.ServersPath())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			names := servers.ListServers()
			if len(names) == 0 {
				fmt.Fprintln(out, ui.DimStyle.Render("No servers configured in "+cfg.ServersPath()))
				return nil
			}
			for _, name := range names {
				s, _ := servers.Server(name)
				target := strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
				if s.Transport == config.TransportSSE {
					target = s.URL
				}
				line := ui.HighlightStyle.Render(name) + "  " + ui.DimStyle.Render(s.Transport) + "  " + target
				if err := s.Validate(); err != nil {
					line += "  " + ui.ErrorStyle.Render(err.Error())
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Discover and call provider tools",
	}
	cmd.AddCommand(toolsListCmd())
	cmd.AddCommand(toolsCallCmd())
	return cmd
}

func toolsListCmd() *cobra.Command {
	var server string
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tools every provider offers",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if server != "" {
				if _, ok := a.tools.Client(server); !ok {
					return fmt.Errorf("%w: %s", mcp.ErrUnknownServer, server)
				}
			}

			tools, errs := a.tools.ListTools(cmd.Context())
			if server != "" {
				tools = filterServer(tools, server)
				errs = serverError(a.tools.FailedServers(), server)
			}
			if len(errs) > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderServerErrors(errs))
			}

			out := cmd.OutOrStdout()
			switch format {
			case "text":
				fmt.Fprintln(out, ui.RenderTools(tools))
				return nil
			case "openai":
				return writeJSON(out, mcp.ToOpenAITools(tools))
			case "anthropic":
				return writeJSON(out, mcp.ToAnthropicTools(tools))
			}
			return fmt.Errorf("unknown format %q (want text, openai or anthropic)", format)
		}),
	}

	cmd.Flags().StringVar(&server, "server", "", "Only list tools of this server")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, openai or anthropic")
	return cmd
}

func filterServer(tools []mcp.NamedTool, server string) []mcp.NamedTool {
	out := tools[:0]
	for _, t := range tools {
		if t.Server == server {
			out = append(out, t)
		}
	}
	return out
}

func serverError(failed map[string]error, server string) []error {
	if err, ok := failed[server]; ok {
		return []error{fmt.Errorf("server %s: %w", server, err)}
	}
	return nil
}

func toolsCallCmd() *cobra.Command {
	var rawArgs string

	cmd := &cobra.Command{
		Use:   "call <server> <tool>",
		Short: "Call one tool and print its result",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			var toolArgs map[string]any
			if rawArgs != "" {
				if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
					return fmt.Errorf("invalid --args: %w", err)
				}
			}

			name := args[0] + mcp.ToolSeparator + args[1]
			res := a.tools.CallTool(cmd.Context(), name, toolArgs, "")
			switch r := res.(type) {
			case mcp.CallSuccess:
				text := r.Text()
				if text == "" && r.Result != nil {
					return writeJSON(cmd.OutOrStdout(), r.Result)
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			case mcp.CallFailure:
				if r.Err != nil {
					return r.Err
				}
				return errors.New(r.Message)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&rawArgs, "args", "", "Tool arguments as a JSON object")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

