package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/voxlinehq/voxline/cmd/voxline/internal/config"
	"github.com/voxlinehq/voxline/pkg/creds"
)

var credsDataDir string

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage backend service credentials",
}

var credsSetFlags creds.Document

var credsSetCmd = &cobra.Command{
	Use:   "set <service>",
	Short: "Store credentials for a service (openai, gemini)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		doc := credsSetFlags
		doc.Service = args[0]
		if err := store.Set(cmd.Context(), doc); err != nil {
			return err
		}
		fmt.Printf("stored credentials for %s\n", doc.Service)
		return nil
	},
}

var credsGetCmd = &cobra.Command{
	Use:   "get <service>",
	Short: "Show the stored document for a service (key redacted)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		doc, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("service:  %s\n", doc.Service)
		fmt.Printf("api_key:  %s\n", redact(doc.APIKey))
		if doc.BaseURL != "" {
			fmt.Printf("base_url: %s\n", doc.BaseURL)
		}
		if doc.Model != "" {
			fmt.Printf("model:    %s\n", doc.Model)
		}
		if doc.Voice != "" {
			fmt.Printf("voice:    %s\n", doc.Voice)
		}
		return nil
	},
}

var credsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured services",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		names, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("no services configured")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var credsDeleteCmd = &cobra.Command{
	Use:   "delete <service>",
	Short: "Remove the stored document for a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func init() {
	credsCmd.PersistentFlags().StringVar(&credsDataDir, "data-dir", config.DefaultDataDir, "server data directory")

	credsSetCmd.Flags().StringVar(&credsSetFlags.APIKey, "api-key", "", "API key")
	credsSetCmd.Flags().StringVar(&credsSetFlags.BaseURL, "base-url", "", "API base URL override")
	credsSetCmd.Flags().StringVar(&credsSetFlags.Model, "model", "", "default model")
	credsSetCmd.Flags().StringVar(&credsSetFlags.Voice, "voice", "", "default synthesis voice")

	credsCmd.AddCommand(credsSetCmd, credsGetCmd, credsListCmd, credsDeleteCmd)
	rootCmd.AddCommand(credsCmd)
}

func openCredStore() (*creds.Store, error) {
	dir := filepath.Join(credsDataDir, "creds")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return creds.Open(creds.Options{Dir: dir})
}

func redact(key string) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) <= 8 {
		return "********"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
