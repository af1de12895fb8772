// formsctl - консольный клиент сервиса форм: вход, поиск шаблонов, отправка форм и выгрузка в таблицу.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aisa-it/aiforms/pkg/client"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	serverURL   string
	credentials string
	timeout     time.Duration
	verbose     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:           "formsctl",
	Short:         "Command line client for the forms service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
}

// Сохраненная между запусками пара токенов
type storedCredentials struct {
	Server       string `yaml:"server"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	Email        string `yaml:"email,omitempty"`
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".formsctl.yaml"
	}
	return filepath.Join(dir, "formsctl", "credentials.yaml")
}

func loadCredentials(path string) (*storedCredentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &storedCredentials{}, nil
	}
	if err != nil {
		return nil, err
	}
	var creds storedCredentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &creds, nil
}

func saveCredentials(path string, creds *storedCredentials) error {
	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// openSession открывает сессию клиента с сохраненными токенами.
// После выполнения команды обновленные сервером токены записываются обратно.
func openSession(cmd *cobra.Command) (*client.Session, func(), error) {
	creds, err := loadCredentials(credentials)
	if err != nil {
		return nil, nil, err
	}

	server := serverURL
	if server == "" {
		server = creds.Server
	}
	if server == "" {
		return nil, nil, errors.New("server url is not set, use --server or AIFORMS_URL")
	}

	opts := []client.Option{client.WithTimeout(timeout)}
	if creds.Server == server && creds.AccessToken != "" {
		opts = append(opts, client.WithTokens(creds.AccessToken, creds.RefreshToken))
	}

	s, err := client.Start(cmd.Context(), server, opts...)
	if err != nil {
		return nil, nil, err
	}

	startAccess, _ := s.Tokens()
	done := func() {
		access, refresh := s.Tokens()
		if access != startAccess {
			creds.Server = server
			creds.AccessToken = access
			creds.RefreshToken = refresh
			if u := s.User(); u != nil {
				creds.Email = u.Email
			} else if access == "" {
				creds.Email = ""
			}
			if err := saveCredentials(credentials, creds); err != nil {
				slog.Warn("Save credentials", "path", credentials, "err", err)
			}
		}
		s.Close()
	}
	return s, done, nil
}

func init() {
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded .env file")
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", os.Getenv("AIFORMS_URL"), "Server URL (or set AIFORMS_URL env)")
	rootCmd.PersistentFlags().StringVar(&credentials, "credentials", defaultCredentialsPath(), "Credentials file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(ticketCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
