package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/recipescan/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configHeader is written above the generated YAML.
const configHeader = `# recipescan configuration file.
#
# "defaults" applies to every site. Entries under "sites" are keyed by the
# host name of the landing page and override the defaults field by field.
#
# Example site entry:
#
#   sites:
#     www.simplyrecipes.com:
#       cookie: "session_id=abc123"
#       headers:
#         Accept-Language: "en-US"
#       categoryURLs:
#         - https://www.simplyrecipes.com/soup-recipes-5091541
#
# Cookie and header values are sent by the browser and never logged.

`

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new recipescan configuration file",
		Long: `Initialize creates a new .recipescan configuration file in the current directory.

The generated file includes:
- The built-in CSS selectors for landing, listing and recipe pages
- A commented example of a site-specific entry

Examples:
  # Create .recipescan in current directory
  recipescan init

  # Create config file at a specific path
  recipescan init -o myconfig.yaml

  # Force overwrite existing file
  recipescan init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := defaultConfigYAML()
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure site-specific settings such as:")
	fmt.Fprintln(out, "  - Authentication cookies and headers")
	fmt.Fprintln(out, "  - Category listing URLs to crawl instead of discovery")
	fmt.Fprintln(out, "  - CSS selectors for a site's markup")

	return nil
}

// defaultConfigYAML renders the default configuration file.
func defaultConfigYAML() ([]byte, error) {
	file := config.File{
		Defaults: config.SiteConfig{
			Selectors: config.DefaultSelectors(),
		},
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
