package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nextmovecargo/branding/internal/branding"
	"github.com/nextmovecargo/branding/internal/config"
	"github.com/nextmovecargo/branding/internal/server"
)

// cliService opens the configured store for a one-shot command. CLI
// commands log at warn to stderr unless the config says otherwise.
func cliService(ctx context.Context, configPath string) (*branding.Service, func(), error) {
	v, err := server.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if !v.IsSet("logging.level") || v.GetString("logging.level") == "info" {
		v.Set("logging.level", "warn")
	}
	v.Set("logging.format", "console")
	logger, _, err := config.NewLogger(v)
	if err != nil {
		return nil, nil, err
	}

	be, err := openBackend(ctx, v, logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := branding.NewService(be.repo, nil, logger.Named("branding"))
	if err != nil {
		be.close()
		return nil, nil, err
	}
	return svc, func() {
		be.close()
		_ = logger.Sync()
	}, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// runExport writes the merged branding document (or the defaults) as JSON or YAML.
func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	format := fs.String("format", "json", "output format: json or yaml")
	out := fs.String("o", "", "output file (default stdout)")
	defaults := fs.Bool("defaults", false, "export the built-in defaults instead of the stored branding")
	_ = fs.Parse(args)

	ctx := context.Background()
	var doc branding.Document
	if *defaults {
		doc = branding.Defaults()
	} else {
		svc, closeFn, err := cliService(ctx, *configPath)
		if err != nil {
			fatalf("export: %v", err)
		}
		defer closeFn()
		doc = svc.GetSettings(ctx)
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fatalf("export: %v", err)
		}
		defer f.Close()
		w = f
	}
	if err := encodeDocument(w, doc, *format); err != nil {
		fatalf("export: %v", err)
	}
}

// runImport applies a JSON or YAML document as a top-level patch.
func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	file := fs.String("f", "", "document to import (.json, .yaml or .yml)")
	format := fs.String("format", "", "input format; inferred from the file extension when empty")
	replace := fs.Bool("replace", false, "reset to defaults before importing")
	_ = fs.Parse(args)

	if *file == "" {
		fatalf("import: -f is required")
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		fatalf("import: %v", err)
	}
	if *format == "" {
		*format = formatFromPath(*file)
	}
	doc, err := decodeDocument(data, *format)
	if err != nil {
		fatalf("import: %v", err)
	}

	ctx := context.Background()
	svc, closeFn, err := cliService(ctx, *configPath)
	if err != nil {
		fatalf("import: %v", err)
	}
	defer closeFn()

	snap, err := importDocument(ctx, svc, doc, *replace)
	if err != nil {
		if issues := branding.Issues(err); len(issues) > 0 {
			for _, is := range issues {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", is.Location, is.Message)
			}
		}
		fatalf("import: %v", err)
	}
	fmt.Printf("imported %d keys, revision %d\n", len(doc), snap.Revision)
}

// runReset deletes the stored branding.
func runReset(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	_ = fs.Parse(args)

	ctx := context.Background()
	svc, closeFn, err := cliService(ctx, *configPath)
	if err != nil {
		fatalf("reset: %v", err)
	}
	defer closeFn()

	if _, err := svc.Reset(ctx, "cli"); err != nil {
		fatalf("reset: %v", err)
	}
	fmt.Println("branding reset to defaults")
}

func importDocument(ctx context.Context, svc *branding.Service, doc branding.Document, replace bool) (branding.Snapshot, error) {
	if replace {
		if _, err := svc.Reset(ctx, "cli"); err != nil {
			return branding.Snapshot{}, err
		}
	}
	return svc.Update(ctx, doc, branding.WriteOptions{Actor: "cli"})
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

func encodeDocument(w io.Writer, doc branding.Document, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any(doc)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q (want json or yaml)", format)
}

func decodeDocument(data []byte, format string) (branding.Document, error) {
	switch format {
	case "json", "":
		return branding.ParseDocument(data)
	case "yaml", "yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
		return branding.Document(doc), nil
	}
	return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
}

