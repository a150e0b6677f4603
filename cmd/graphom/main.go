// Command graphom is a thin utility around the mapping engine: it checks
// connectivity and runs ad-hoc statements against the configured database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hemanta212/graphom"
)

func main() {
	cmd := &cli.Command{
		Name:  "graphom",
		Usage: "graph-object mapping utilities",
		Commands: []*cli.Command{
			pingCommand(),
			queryCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// connectionFlags are shared by every command that talks to the database.
// Flags override .graphom.yaml.
func connectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "uri",
			Usage:   "database connection URI",
			Sources: cli.EnvVars("GRAPHOM_URI"),
		},
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "database username",
			Sources: cli.EnvVars("GRAPHOM_USER"),
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "database password",
			Sources: cli.EnvVars("GRAPHOM_PASS"),
		},
		&cli.StringFlag{
			Name:    "database",
			Aliases: []string{"d"},
			Usage:   "database name",
			Sources: cli.EnvVars("GRAPHOM_DB"),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "verbose output",
		},
	}
}

// resolveConnection merges config file settings with flag overrides.
func resolveConnection(cmd *cli.Command) (*graphom.Neo4jConfig, error) {
	cfg := &graphom.Neo4jConfig{}

	loaded, err := graphom.LoadConfig(".")
	if err == nil && loaded.Neo4j != nil {
		cfg = loaded.Neo4j
	}

	if uri := cmd.String("uri"); uri != "" {
		cfg.URI = uri
	}

	if username := cmd.String("username"); username != "" {
		cfg.Username = username
	}

	if password := cmd.String("password"); password != "" {
		cfg.Password = password
	}

	if database := cmd.String("database"); database != "" {
		cfg.Database = database
	}

	if cfg.URI == "" {
		return nil, errNoConnectionURI
	}

	return cfg, nil
}
