package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mrlokans/lectern/internal/conversation"
	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/entrypoint"
)

// AskCommand asks a question about a book and records the exchange in its
// conversation history.
type AskCommand struct {
	BookID   string
	Model    string
	Question string
	Preset   string
	DataDir  string
	Clear    bool
}

func NewAskCommand() *AskCommand {
	return &AskCommand{}
}

func (cmd *AskCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)

	fs.StringVar(&cmd.BookID, "book", "", "Book id (required, see the books command)")
	fs.StringVar(&cmd.Model, "model", "", "Model name (defaults to DEFAULT_MODEL)")
	fs.StringVar(&cmd.Question, "q", "", "Question to ask")
	fs.StringVar(&cmd.Preset, "preset", "", "Quick prompt: highlights, background or key-concepts")
	fs.StringVar(&cmd.DataDir, "data", "", "Data directory (overrides DATA_DIR)")
	fs.BoolVar(&cmd.Clear, "clear", false, "Clear the book's conversation history first")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s ask -book <id> (-q <question> | -preset <name>) [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ask a model about a book. The book is uploaded to the grounding provider on\n")
		fmt.Fprintf(os.Stderr, "first use and the exchange is appended to the book's history.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s ask -book <id> -q \"Who is the narrator?\"\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s ask -book <id> -preset highlights -model deepseek-chat\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !entities.BookID(cmd.BookID).Valid() {
		return fmt.Errorf("required flag -book not provided or not a book id")
	}
	if strings.TrimSpace(cmd.Question) == "" && cmd.Preset == "" {
		return fmt.Errorf("one of -q or -preset is required")
	}
	if cmd.Preset != "" {
		if _, ok := conversation.QuickPromptText(conversation.QuickPrompt(cmd.Preset)); !ok {
			return fmt.Errorf("unknown preset %q", cmd.Preset)
		}
	}

	return nil
}

func (cmd *AskCommand) Run() error {
	cfg := loadConfig(cmd.DataDir)
	app, err := entrypoint.Build(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	model := cmd.Model
	if model == "" {
		model = cfg.Providers.DefaultModel
	}

	ctx := context.Background()
	id := entities.BookID(cmd.BookID)
	if _, err := app.Library.Get(ctx, id); err != nil {
		return err
	}

	if cmd.Clear {
		if err := app.Conversation.Clear(ctx, id); err != nil {
			return err
		}
	}

	var exchange conversation.Exchange
	if cmd.Preset != "" {
		exchange, err = app.Conversation.AskPreset(ctx, id, model, conversation.QuickPrompt(cmd.Preset))
	} else {
		exchange, err = app.Conversation.Ask(ctx, id, model, cmd.Question)
	}
	if err != nil {
		if conversation.IsNetworkFailure(err) {
			return fmt.Errorf("%s: %w", conversation.NetworkErrorMessage, err)
		}
		return err
	}

	fmt.Println(exchange.Reply.Content)
	fmt.Fprintf(os.Stderr, "\n[%s] tokens: %d prompt, %d completion\n",
		model, exchange.Usage.PromptTokens, exchange.Usage.CompletionTokens)
	return nil
}
