package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sspi-index/sspi-engine/internal/adapters/driven/config/file"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage engine settings",
	Long: `View and change the settings stored in config.toml.

Every key can be overridden by an environment variable: server.addr is
read from SSPI_SERVER_ADDR when that is set.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a setting",
	Long: `Stores a setting in config.toml. Secrets (signing keys, passwords) are
prompted for without echo when the value is omitted.

Examples:
  sspi settings set server.addr 0.0.0.0:8080
  sspi settings set collectors.worldbank.min_delay_ms 500
  sspi settings set auth.jwt_signing_key`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := file.NewConfigStore(configDir)
		if err != nil {
			return err
		}
		cmd.Println(store.Path())
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsPathCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return err
	}
	s, err := file.LoadSettings(store, nil)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Server]")
	cmd.Printf("  Address: %s\n", s.Server.Addr)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Data dir: %s\n", s.Storage.DataDir)
	if s.Metadata.Dir != "" {
		cmd.Printf("  Metadata dir: %s (watch: %t)\n", s.Metadata.Dir, s.Metadata.Watch)
	} else {
		cmd.Println("  Metadata dir: (embedded defaults)")
	}
	cmd.Println()

	cmd.Println("[Auth]")
	cmd.Printf("  Signing key: %s\n", maskSecret(s.Auth.JWTSigningKey))
	cmd.Printf("  Issuer: %s\n", s.Auth.JWTIssuer)
	cmd.Printf("  Token TTL: %s\n", s.Auth.TokenTTL)
	cmd.Printf("  Public reads: %t\n", s.Auth.PublicReads)
	cmd.Println()

	cmd.Println("[Page Cache]")
	cmd.Printf("  Backend: %s\n", s.PageCache.Backend)
	switch s.PageCache.Backend {
	case file.PageCacheFilesystem:
		cmd.Printf("  Dir: %s\n", s.PageCache.Dir)
	case file.PageCacheMinio:
		cmd.Printf("  Endpoint: %s\n", s.Minio.Endpoint)
		cmd.Printf("  Bucket: %s\n", s.Minio.Bucket)
		cmd.Printf("  Secret key: %s\n", maskSecret(s.Minio.SecretKey))
	}
	cmd.Println()

	cmd.Println("[Jobs]")
	cmd.Printf("  Redis: %s (db %d)\n", s.Redis.Addr, s.Redis.DB)
	cmd.Printf("  Worker concurrency: %d\n", s.Worker.Concurrency)
	cmd.Println()

	cmd.Println("[Log]")
	cmd.Printf("  Level: %s\n", s.Log.Level)
	if s.Log.File != "" {
		cmd.Printf("  File: %s\n", s.Log.File)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	var raw string
	switch {
	case len(args) == 2:
		raw = args[1]
	case isSecretKey(key):
		cmd.Printf("Enter %s: ", key)
		raw = readPassword()
		cmd.Println()
	default:
		return fmt.Errorf("a value is required for %s", key)
	}
	if raw == "" {
		return fmt.Errorf("empty value for %s", key)
	}

	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return err
	}
	prev, had := store.Get(key)
	if err := store.Set(key, parseValue(raw)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	// Values the engine would refuse at startup are rolled back.
	if _, err := file.LoadSettings(store, nil); err != nil {
		if had {
			_ = store.Set(key, prev)
		} else {
			_ = store.Delete(key)
		}
		return err
	}

	shown := raw
	if isSecretKey(key) {
		shown = maskSecret(raw)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

// parseValue stores numbers and booleans with their TOML types.
func parseValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func isSecretKey(key string) bool {
	for _, suffix := range []string{"signing_key", "secret_key", "password"} {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskSecret(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
