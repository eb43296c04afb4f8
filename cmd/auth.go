package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/desertthunder/calsync/internal/calendar"
	"github.com/desertthunder/calsync/internal/server"
	"github.com/desertthunder/calsync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin performs the OAuth2 authorization code flow for the calendar
// provider.
//
// Starts a local HTTP server, opens the browser for user authorization, and exchanges the auth code for tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath != "" {
		r.configPath = configPath
		if _, err := os.Stat(configPath); err == nil {
			config, err := shared.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			r.config = config
		}
	}

	google := &r.config.Credentials.Google
	if google.ClientID == "" || google.ClientSecret == "" {
		return fmt.Errorf("%w: Google client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	token, err := r.doOAuth(google.OAuth2Config(), "authorization")
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	// Drop the cached client, engine, and registry so the new
	// credentials take effect on the next command.
	r.client = nil
	r.engine = nil
	r.registry = nil

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: calsync sync enable\n")

	return nil
}

// AuthStatus reports the configured credential state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	google := r.config.Credentials.Google

	if google.ClientID == "" {
		r.writePlain("Client: ✗ Not configured\n")
		r.writePlain("Set credentials.google.client_id and client_secret in config.toml\n")
		return nil
	}

	r.writePlain("Client: ✓ Configured\n")

	if google.AccessToken == "" && google.RefreshToken == "" {
		r.writePlain("Tokens: ✗ Missing (run: calsync auth login)\n")
		return nil
	}
	r.writePlain("Tokens: ✓ Present\n")

	client := r.client
	if client == nil {
		client = calendar.NewClient(r.config, r.logger)
	}
	if client.Authorized() {
		r.writePlain("Mode: live\n")
	} else {
		r.writePlain("Mode: simulation (no credentials)\n")
	}

	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(oauthConfig *oauth2.Config, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	oauthHandler := server.NewOAuthHandler(oauthConfig, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for calendar %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}
