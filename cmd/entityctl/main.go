// Command entityctl manages entity cache tables described by a YAML schema
// file.
//
//	entityctl ensure -schema tables.yaml
//	entityctl dump   -schema tables.yaml -table Currencyformats_V1 [-order CURRENCYNAME] [-desc]
//	entityctl patch  -schema tables.yaml -out ./scripts
//
// The store, lookup cache, locale and log level come from ENTITYCACHE_*
// environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/goliatone/go-entity-cache/entitycache"
	"github.com/goliatone/go-entity-cache/migration"
	"github.com/goliatone/go-entity-cache/pkg/di"
	"github.com/goliatone/go-entity-cache/schema"
)

const usage = `usage: entityctl <command> [flags]

commands:
  ensure  create missing tables, seed rows and indexes
  dump    print the rows of a table as JSON
  patch   write the seed script and currency upgrade patches
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "entityctl:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	schemaPath := fs.String("schema", "", "YAML schema file")

	switch cmd {
	case "ensure":
		if err := parse(fs, args, schemaPath); err != nil {
			return err
		}
		return withContainer(ctx, *schemaPath, func(c *di.Container) error {
			return c.EnsureAll(ctx)
		})

	case "dump":
		table := fs.String("table", "", "table to dump")
		order := fs.String("order", "", "order rows by column")
		desc := fs.Bool("desc", false, "descending order")
		if err := parse(fs, args, schemaPath); err != nil {
			return err
		}
		return withContainer(ctx, *schemaPath, func(c *di.Container) error {
			return dump(ctx, c, out, *table, *order, *desc)
		})

	case "patch":
		dir := fs.String("out", ".", "output directory")
		if err := parse(fs, args, schemaPath); err != nil {
			return err
		}
		tables, err := schema.LoadFile(*schemaPath)
		if err != nil {
			return err
		}
		written, err := migration.WriteAll(*dir, tables)
		for _, path := range written {
			fmt.Fprintln(out, path)
		}
		return err

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func parse(fs *flag.FlagSet, args []string, schemaPath *string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *schemaPath == "" {
		return fmt.Errorf("%w: -schema is required", errUsage)
	}
	return nil
}

func withContainer(ctx context.Context, schemaPath string, fn func(*di.Container) error) (err error) {
	schemas, err := schema.LoadFile(schemaPath)
	if err != nil {
		return err
	}
	config, err := di.ConfigFromEnv()
	if err != nil {
		return err
	}
	container, err := di.NewContainer(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := container.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	tables := container.Register(schemas...)
	container.Logger().Debug("schema loaded", zap.String("path", schemaPath), zap.Int("tables", len(tables)))
	return fn(container)
}

func dump(ctx context.Context, c *di.Container, out io.Writer, name, order string, desc bool) error {
	t, ok := c.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: unknown table %q", errUsage, name)
	}
	if err := t.Ensure(ctx); err != nil {
		return err
	}

	var opts []entitycache.ListOption
	if order != "" {
		opts = append(opts, entitycache.OrderBy(order))
	}
	if desc {
		opts = append(opts, entitycache.Descending())
	}
	rows, err := t.List(ctx, opts...)
	if err != nil {
		return err
	}

	data, err := entitycache.MarshalSet(rows)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
