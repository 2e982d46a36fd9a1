// Command schemagen renders the catalog schema to a GraphQL SDL file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/goliatone/go-kino/catalog"
	"github.com/goliatone/go-kino/config"
	"github.com/goliatone/go-kino/internal/writer"
)

const header = "# Code generated by kino. DO NOT EDIT."

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "schemagen:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("schemagen", flag.ContinueOnError)
	defaultOut := "schema.graphql"
	if env := os.Getenv(config.EnvSchemaPath); env != "" {
		defaultOut = env
	}
	out := fs.String("out", defaultOut, "output path for the SDL")
	dryRun := fs.Bool("dry-run", false, "report what would change without writing")
	check := fs.Bool("check", false, "fail when the file on disk is out of date")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registry, err := catalog.New(nil).Registry()
	if err != nil {
		return err
	}

	w := writer.New(
		writer.WithHeader(header),
		writer.WithDryRun(*dryRun),
		writer.WithCheck(*check),
	)
	status, err := w.WriteGenerated(*out, []byte(registry.SDL()))
	if err != nil && !errors.Is(err, writer.ErrStale) {
		return err
	}
	fmt.Printf("%s: %s\n", *out, status)
	return err
}
