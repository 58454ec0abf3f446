package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrlokans/lectern/internal/config"
	"github.com/mrlokans/lectern/internal/entrypoint"
)

// ImportCommand adds EPUB files to the library.
type ImportCommand struct {
	Files   []string
	DataDir string
	Verbose bool
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	var file string
	fs.StringVar(&file, "file", "", "Path to an EPUB file (further files may follow as arguments)")
	fs.StringVar(&cmd.DataDir, "data", "", "Data directory (overrides DATA_DIR)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print the extracted metadata")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import -file <path> [more.epub ...] [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Add EPUB files to the library. Files already present are reported, not duplicated.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s import -file book.epub\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import -file first.epub second.epub\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if file != "" {
		cmd.Files = append(cmd.Files, file)
	}
	cmd.Files = append(cmd.Files, fs.Args()...)
	if len(cmd.Files) == 0 {
		return fmt.Errorf("required flag -file not provided")
	}

	return nil
}

func (cmd *ImportCommand) Run() error {
	cfg := loadConfig(cmd.DataDir)
	app, err := entrypoint.Build(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	var failed int
	for _, path := range cmd.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", path, err)
			failed++
			continue
		}

		meta, created, err := app.Library.Upload(ctx, filepath.Base(path), data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", path, err)
			failed++
			continue
		}

		status := "added"
		if !created {
			status = "already present"
		}
		fmt.Printf("  %s  %s (%s)\n", meta.ID, meta.Title, status)
		if cmd.Verbose {
			fmt.Printf("      author: %s\n", meta.Author)
			if meta.Language != "" {
				fmt.Printf("      language: %s\n", meta.Language)
			}
			fmt.Printf("      size: %d bytes\n", meta.SizeBytes)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, len(cmd.Files))
	}
	return nil
}

// loadConfig reads the environment configuration and applies a data
// directory override.
func loadConfig(dataDir string) *config.Config {
	cfg := config.NewConfig()
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	// The command runs to completion, so queued work would never execute
	cfg.Tasks.Enabled = false
	return cfg
}
