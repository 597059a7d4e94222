package main

import (
	"fmt"
	"os"

	"github.com/donorbridge/donorbridge/internal/config"
)

const configTemplate = `# donorbridge configuration
# Credentials for each linked provider, used with the -local flag.

# user_id identifies this workstation's user in logs.
user_id: "local"

providers:
  # Example: Neon CRM. Uncomment and fill in to link.
  # neon:
  #   orgId: ""
  #   apiKey: ""

  # Example: Kindful.
  # kindful:
  #   apiToken: ""
`

// runInit creates a sample configuration file.
func runInit() error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	configPath, err := config.ConfigFilePath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println("Created config file:", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit the config file with your provider credentials")
	fmt.Println("  2. Run 'donorbridge -local -provider=neon -dry-run' to test")
	fmt.Println("  3. Run 'donorbridge link -user=<id> -provider=neon' to store them in AWS")

	return nil
}
