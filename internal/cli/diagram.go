package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/lectern/internal/diagram"
	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/entrypoint"
)

// DiagramCommand generates a diagram of a book.
type DiagramCommand struct {
	BookID  string
	Kind    string
	Model   string
	Hint    string
	Output  string
	DataDir string
}

func NewDiagramCommand() *DiagramCommand {
	return &DiagramCommand{}
}

func (cmd *DiagramCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("diagram", flag.ExitOnError)

	fs.StringVar(&cmd.BookID, "book", "", "Book id (required)")
	fs.StringVar(&cmd.Kind, "kind", "mermaid", "Diagram kind: mermaid or graph")
	fs.StringVar(&cmd.Model, "model", "", "Model name (defaults to DEFAULT_MODEL)")
	fs.StringVar(&cmd.Hint, "hint", "", "Extra instructions for the model")
	fs.StringVar(&cmd.Output, "output", "", "Write the diagram to this file instead of stdout")
	fs.StringVar(&cmd.DataDir, "data", "", "Data directory (overrides DATA_DIR)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s diagram -book <id> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ask a model for a diagram of a book. Mermaid diagrams are printed as source,\n")
		fmt.Fprintf(os.Stderr, "graph diagrams as JSON.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s diagram -book <id> -output book.mmd\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s diagram -book <id> -kind graph -model deepseek-chat\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !entities.BookID(cmd.BookID).Valid() {
		return fmt.Errorf("required flag -book not provided or not a book id")
	}
	if _, err := diagram.ParseKind(cmd.Kind); err != nil {
		return err
	}

	return nil
}

func (cmd *DiagramCommand) Run() error {
	cfg := loadConfig(cmd.DataDir)
	app, err := entrypoint.Build(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	kind, _ := diagram.ParseKind(cmd.Kind)
	model := cmd.Model
	if model == "" {
		model = cfg.Providers.DefaultModel
	}

	ctx := context.Background()
	id := entities.BookID(cmd.BookID)
	if _, err := app.Library.Get(ctx, id); err != nil {
		return err
	}

	status, err := app.Diagrams.Generate(ctx, id, diagram.Request{Kind: kind, Model: model, Hint: cmd.Hint})
	if err != nil {
		return fmt.Errorf("%s: %w", diagram.FailureMessage, err)
	}

	if cmd.Output == "" {
		fmt.Println(status.Output.Body)
		return nil
	}
	if err := os.WriteFile(cmd.Output, []byte(status.Output.Body), 0o644); err != nil {
		return fmt.Errorf("failed to write diagram: %w", err)
	}
	fmt.Printf("Wrote %s diagram to %s\n", kind, cmd.Output)
	return nil
}
