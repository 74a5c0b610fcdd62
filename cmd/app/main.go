package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/noterefs/internal"
	pkgconfig "github.com/starford/noterefs/pkg/config"
)

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func notePath(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one note path")
	}
	return cmd.Args().First(), nil
}

func render(ctx context.Context, cmd *cli.Command) error {
	path, err := notePath(cmd)
	if err != nil {
		return err
	}
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Render(ctx, path, opts...)
}

func refs(ctx context.Context, cmd *cli.Command) error {
	path, err := notePath(cmd)
	if err != nil {
		return err
	}
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Refs(ctx, path, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:   "noterefs",
		Usage:  "Live links and backlinks summaries for a Markdown note collection",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live reference rendering",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve reference tools over MCP on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "render",
				Usage:     "Print a note with its references summary drawn in",
				ArgsUsage: "<path>",
				Action:    render,
			},
			{
				Name:      "refs",
				Usage:     "Print the links and backlinks of a note",
				ArgsUsage: "<path>",
				Action:    refs,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
