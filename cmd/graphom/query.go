package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	graphneo4j "github.com/hemanta212/graphom/databases/neo4j"
)

// Query command errors.
var (
	errNoConnectionURI = errors.New("no connection URI specified (use --uri or .graphom.yaml)")
	errNoStatement     = errors.New("no statement given")
	errBadParam        = errors.New("parameters must be key=value")
)

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Verify database connectivity",
		Flags: connectionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := resolveConnection(cmd)
			if err != nil {
				return err
			}

			log := newLogger(cmd.Bool("verbose"))
			defer func() { _ = log.Sync() }()

			db, err := graphneo4j.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()

			log.Debug("connectivity verified", zap.String("uri", cfg.URI))
			fmt.Println("ok")

			return nil
		},
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Run an ad-hoc statement",
		ArgsUsage: "<statement>",
		Flags: append(connectionFlags(),
			&cli.StringSliceFlag{
				Name:    "param",
				Aliases: []string{"P"},
				Usage:   "bind a parameter as key=value (repeatable)",
			},
		),
		Action: runQuery,
	}
}

func runQuery(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return errNoStatement
	}

	cfg, err := resolveConnection(cmd)
	if err != nil {
		return err
	}

	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}

	log := newLogger(cmd.Bool("verbose"))
	defer func() { _ = log.Sync() }()

	db, err := graphneo4j.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(ctx) }()

	statement := strings.Join(args, " ")
	log.Debug("executing statement",
		zap.String("statement", statement),
		zap.Any("parameters", params))

	rows, err := db.Execute(ctx, statement, params)
	if err != nil {
		return err
	}

	log.Debug("statement finished", zap.Int("rows", len(rows)))

	enc := yaml.NewEncoder(os.Stdout)
	defer func() { _ = enc.Close() }()

	return enc.Encode(rows)
}

// parseParams turns repeated key=value flags into a parameter map. Values
// are decoded as YAML scalars so numbers and booleans keep their type.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	params := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", errBadParam, pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}

		params[key] = value
	}

	return params, nil
}
