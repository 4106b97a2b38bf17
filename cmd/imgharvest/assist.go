package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"imgharvest/pkg/assist"
	"imgharvest/pkg/config"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/secrets"
	"imgharvest/pkg/ui"
)

var (
	schemaText string
	schemaFile string
	markdown   bool
)

// assistCmd represents the assist command
var assistCmd = &cobra.Command{
	Use:   "assist",
	Short: "LLM-assisted extraction from raw markup",
	Long: `Ask a language model to pull structured JSON out of an HTML page.

This is useful for pages whose markup has no stable selectors. The API key
is read from IMGHARVEST_ASSIST_API_KEY or ANTHROPIC_API_KEY, then from the
system keychain, then from an encrypted file in the config directory.`,
}

// assistExtractCmd represents the assist extract command
var assistExtractCmd = &cobra.Command{
	Use:   "extract <file|url>",
	Short: "Extract structured data from a saved page or URL",
	Example: `  # Plain-language description
  imgharvest assist extract page.html --schema "list of {title, image_url}"

  # JSON schema from a file, condensing the page to Markdown first
  imgharvest assist extract https://example.com/gallery --schema-file schema.json --markdown`,
	Args: cobra.ExactArgs(1),
	RunE: runAssistExtract,
}

// assistSetKeyCmd represents the assist set-key command
var assistSetKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the assist API key securely",
	Args:  cobra.NoArgs,
	RunE:  runAssistSetKey,
}

// assistDeleteKeyCmd represents the assist delete-key command
var assistDeleteKeyCmd = &cobra.Command{
	Use:   "delete-key",
	Short: "Remove the stored assist API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := secrets.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize secret store: %w", err)
		}
		if err := manager.Delete(secrets.AssistAPIKey); err != nil {
			return err
		}
		ui.PrintSuccess("Assist API key removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(assistCmd)
	assistCmd.AddCommand(assistExtractCmd)
	assistCmd.AddCommand(assistSetKeyCmd)
	assistCmd.AddCommand(assistDeleteKeyCmd)

	assistExtractCmd.Flags().StringVar(&schemaText, "schema", "", "description or JSON schema of the wanted data")
	assistExtractCmd.Flags().StringVar(&schemaFile, "schema-file", "", "read the schema from a file")
	assistExtractCmd.Flags().BoolVar(&markdown, "markdown", false, "convert the page to Markdown before sending it")
	assistExtractCmd.MarkFlagsOneRequired("schema", "schema-file")
	assistExtractCmd.MarkFlagsMutuallyExclusive("schema", "schema-file")
}

func runAssistExtract(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cmd.Flags().Changed("markdown") {
		cfg.Assist.Markdown = markdown
	}

	schema := schemaText
	if schemaFile != "" {
		data, err := os.ReadFile(schemaFile)
		if err != nil {
			return fmt.Errorf("failed to read schema: %w", err)
		}
		schema = string(data)
	}

	ctx := context.Background()
	html, err := readPage(ctx, cfg, args[0])
	if err != nil {
		return err
	}

	manager, err := secrets.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize secret store: %w", err)
	}
	assistant, err := assist.FromSecrets(manager, cfg.Assist, assist.WithLogger(logger.GetLogger()))
	if err != nil {
		return err
	}

	res := <-assist.Go(ctx, assistant, html, schema)
	if res.Err != nil {
		return res.Err
	}

	var pretty json.RawMessage
	if out, err := json.MarshalIndent(res.Value, "", "  "); err == nil {
		pretty = out
	} else {
		pretty = res.Value
	}
	fmt.Println(string(pretty))
	return nil
}

// readPage loads a local file, or fetches the page when given a URL
func readPage(ctx context.Context, cfg *config.Config, source string) (string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		client := newFetcher(cfg)
		return client.FetchText(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return string(data), nil
}

func runAssistSetKey(cmd *cobra.Command, args []string) error {
	manager, err := secrets.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize secret store: %w", err)
	}

	fmt.Print("Assist API key: ")
	key, err := readSecret()
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("no key entered")
	}

	if err := manager.Set(secrets.AssistAPIKey, key); err != nil {
		return err
	}
	ui.PrintSuccess("Stored assist API key " + secrets.Mask(key))
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(secret), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return input, nil
}
