package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/harmony/internal/config"
	"github.com/semmidev/harmony/internal/domain"
)

type GDriveStorage struct {
	service  *drive.Service
	folderID string
}

// NewGDrive authenticates with a service account file when one is
// configured, otherwise with the OAuth client and its refresh token.
func NewGDrive(ctx context.Context, cfg *config.UploadTarget) (*GDriveStorage, error) {
	var opt option.ClientOption
	if cfg.CredentialsFile != "" {
		opt = option.WithCredentialsFile(cfg.CredentialsFile)
	} else {
		oauthCfg, err := OAuthConfigFromFile(cfg.OAuthClientSecretFile)
		if err != nil {
			return nil, err
		}
		ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.OAuthRefreshToken})
		opt = option.WithTokenSource(ts)
	}

	service, err := drive.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveStorage{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

// OAuthConfigFromFile reads a Google OAuth client secret limited to files
// the app creates.
func OAuthConfigFromFile(clientSecretPath string) (*oauth2.Config, error) {
	b, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret: %w", err)
	}
	return cfg, nil
}

// escapeQuery quotes s for a Drive query string literal.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func (g *GDriveStorage) find(ctx context.Context, name string) (*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false", g.folderID, escapeQuery(name))

	fileList, err := g.service.Files.List().
		Q(query).
		Fields("files(id, name, webViewLink)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}

	if len(fileList.Files) == 0 {
		return nil, &domain.NotFoundError{Kind: "artifact", ID: name}
	}
	return fileList.Files[0], nil
}

// Put stores nested artifact names flat, with the '/' kept in the file name.
func (g *GDriveStorage) Put(ctx context.Context, filename string, data []byte) (string, error) {
	fileMetadata := &drive.File{
		Name:    filename,
		Parents: []string{g.folderID},
	}

	created, err := g.service.Files.Create(fileMetadata).
		Media(bytes.NewReader(data)).
		Fields("id, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	if created.WebViewLink != "" {
		return created.WebViewLink, nil
	}
	return "gdrive://" + created.Id, nil
}

func (g *GDriveStorage) Get(ctx context.Context, filename string) ([]byte, error) {
	file, err := g.find(ctx, filename)
	if err != nil {
		return nil, err
	}

	resp, err := g.service.Files.Get(file.Id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download from gdrive: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gdrive file: %w", err)
	}
	return data, nil
}

func (g *GDriveStorage) List(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false", g.folderID)

	var files []string
	err := g.service.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, file := range page.Files {
				files = append(files, file.Name)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

func (g *GDriveStorage) Delete(ctx context.Context, filename string) error {
	file, err := g.find(ctx, filename)
	if err != nil {
		return err
	}

	if err := g.service.Files.Delete(file.Id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
