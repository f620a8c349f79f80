package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Default locations, overridable through the environment or a .env file.
const (
	DefaultRestorePath = "app_restore.css"
	DefaultCurrentPath = "src/main/resources/css/app.css"
)

// Config holds all the command-line flag values.
type Config struct {
	Restore     string
	Current     string
	Output      string
	Rev         string
	Root        string
	Manifest    string
	Jobs        int
	Clipboard   bool
	Markdown    bool
	Stdout      bool
	DryRun      bool
	Buffer      bool
	Undo        bool
	Redo        bool
	NoAnimation bool
	Verbose     bool
}

// LoadEnv loads a .env file from the working directory if there is one.
// A missing file is not an error.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewFlagSet defines the command-line flags on a new flag set bound to cfg.
// Defaults come from CSSMERGE_RESTORE, CSSMERGE_CURRENT and CSSMERGE_OUTPUT.
func NewFlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("cssmerge", pflag.ContinueOnError)
	// Parse errors are returned to the caller, which reports them.
	fs.SetOutput(io.Discard)

	fs.StringVarP(&cfg.Restore, "restore", "r", envOr("CSSMERGE_RESTORE", DefaultRestorePath), "Restored baseline stylesheet.")
	fs.StringVarP(&cfg.Current, "current", "c", envOr("CSSMERGE_CURRENT", DefaultCurrentPath), "Current stylesheet to take new blocks from ('-' for stdin).")
	fs.StringVarP(&cfg.Output, "output", "o", os.Getenv("CSSMERGE_OUTPUT"), "Where to write the merged stylesheet (default: the current stylesheet).")
	fs.StringVar(&cfg.Rev, "rev", "", "Read the restore file as of this git revision (e.g. HEAD~3).")
	fs.StringVarP(&cfg.Root, "root", "C", "", "Resolve relative paths against this directory (default: current directory).")
	fs.StringVarP(&cfg.Manifest, "manifest", "f", "", "Run every merge listed in a YAML manifest.")
	fs.IntVarP(&cfg.Jobs, "jobs", "j", 0, "Maximum concurrent merges in manifest mode (default: manifest setting, then unlimited).")
	fs.BoolVar(&cfg.Clipboard, "clipboard", false, "Read the current stylesheet from the clipboard.")
	fs.BoolVarP(&cfg.Markdown, "markdown", "m", false, "Treat the current input as markdown and use its css code blocks.")
	fs.BoolVar(&cfg.Stdout, "stdout", false, "Print the merged stylesheet instead of writing it.")
	fs.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Print a diff of the output file instead of writing it.")
	fs.BoolVarP(&cfg.Buffer, "buffer", "b", false, "Load the result into a Neovim buffer without saving it.")
	fs.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable loading spinner and progress updates.")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log diagnostic details.")

	// Mutually exclusive history group
	fs.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last merge.")
	fs.BoolVarP(&cfg.Redo, "redo", "R", false, "Redo the last undone merge.")

	fs.Usage = func() {
		fmt.Println("Usage: cssmerge [flags]")
		fmt.Println("\nAppend the rule blocks of the current stylesheet that are missing from the restored one.")
		fmt.Println("\nExample: cssmerge -r app_restore.css -c src/app.css")
		fmt.Println("\nFlags:")
		fmt.Print(fs.FlagUsages())
	}
	return fs
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags(args []string) (*Config, error) {
	cfg := &Config{}
	if err := NewFlagSet(cfg).Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks flag combinations.
func (c *Config) Validate() error {
	if c.Undo && c.Redo {
		return fmt.Errorf("error: --undo and --redo are mutually exclusive")
	}
	if c.Stdout && c.Buffer {
		return fmt.Errorf("error: --stdout and --buffer are mutually exclusive")
	}
	if c.Stdout && c.DryRun {
		return fmt.Errorf("error: --stdout and --dry-run are mutually exclusive")
	}
	if c.Clipboard && c.Current == "-" {
		return fmt.Errorf("error: --clipboard cannot be combined with --current -")
	}
	if c.Jobs < 0 {
		return fmt.Errorf("error: --jobs must not be negative")
	}
	if c.Restore == "" {
		return fmt.Errorf("error: --restore must not be empty")
	}
	return nil
}

// OutputPath is where the merged document goes: --output, or the current
// stylesheet when it is a file.
func (c *Config) OutputPath() string {
	if c.Output != "" {
		return c.Output
	}
	if c.Clipboard || c.Current == "-" {
		return ""
	}
	return c.Current
}
