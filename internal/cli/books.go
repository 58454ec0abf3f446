package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mrlokans/lectern/internal/entrypoint"
)

// BooksCommand lists the library.
type BooksCommand struct {
	DataDir string
}

func NewBooksCommand() *BooksCommand {
	return &BooksCommand{}
}

func (cmd *BooksCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("books", flag.ExitOnError)
	fs.StringVar(&cmd.DataDir, "data", "", "Data directory (overrides DATA_DIR)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s books [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List the books in the library.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *BooksCommand) Run() error {
	app, err := entrypoint.Build(loadConfig(cmd.DataDir))
	if err != nil {
		return err
	}
	defer app.Close()

	books, err := app.Library.List(context.Background())
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Println("No books yet. Add one with the import command.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tUPLOADED")
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, b.UploadedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
