package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/semmidev/harmony/internal/adapter/storage"
	"github.com/semmidev/harmony/internal/infrastructure/logger"
)

// DriveAuthorizer runs the one-off consent flow that yields the refresh
// token of a gdrive upload target.
type DriveAuthorizer struct {
	config *oauth2.Config
	logger *logger.Logger
	state  string
	server *http.Server
}

func NewDriveAuthorizer(log *logger.Logger, clientSecretPath string) (*DriveAuthorizer, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if clientSecretPath == "" {
		return nil, errors.New("client secret path cannot be empty")
	}

	cfg, err := storage.OAuthConfigFromFile(clientSecretPath)
	if err != nil {
		return nil, err
	}

	return &DriveAuthorizer{
		config: cfg,
		logger: log,
		state:  uuid.NewString(),
	}, nil
}

func (d *DriveAuthorizer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/google/drive", func(w http.ResponseWriter, r *http.Request) {
		authURL := d.config.AuthCodeURL(d.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("GET /auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != d.state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}

		token, err := d.config.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}
		if token.RefreshToken == "" {
			http.Error(w, "no refresh token returned, revoke app access and authorize again", http.StatusConflict)
			return
		}

		snippet, err := json.MarshalIndent(map[string]string{"oauth_refresh_token": token.RefreshToken}, "", "  ")
		if err != nil {
			http.Error(w, "failed to marshal token", http.StatusInternalServerError)
			return
		}
		d.logger.Infof("Google Drive refresh token issued")
		fmt.Fprintf(w, "Add this to the gdrive upload target:\n%s\n", snippet)
	})

	return mux
}

// Serve listens on addr until ctx ends.
func (d *DriveAuthorizer) Serve(ctx context.Context, addr string) error {
	d.server = &http.Server{
		Addr:              addr,
		Handler:           d.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = d.server.Shutdown(shutdownCtx)
	}()

	d.logger.Infof("Open http://%s/auth/google/drive to authorize Google Drive", addr)
	if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("oauth server: %w", err)
	}
	return nil
}
