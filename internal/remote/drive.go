// Package remote stores encrypted backup archives in Google Drive.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
)

const archiveMimeType = "application/octet-stream"

// DriveStore implements service.ObjectStore on Google Drive. Archives live in
// a single named folder which is created on first use.
type DriveStore struct {
	service    *drive.Service
	progress   io.Writer
	folderName string
	folderID   string
}

// Option configures a DriveStore.
type Option func(*DriveStore)

// WithProgress renders a transfer progress bar to w during uploads and
// downloads. Pass os.Stderr for interactive use.
func WithProgress(w io.Writer) Option {
	return func(s *DriveStore) {
		s.progress = w
	}
}

// NewDriveStore creates a Drive-backed object store using the given OAuth2
// token.
func NewDriveStore(ctx context.Context, config OAuth2Config, token *oauth2.Token, folderName string, opts ...Option) (*DriveStore, error) {
	if folderName == "" {
		return nil, fmt.Errorf("%w: backup folder name is required", common.ErrInvalidConfig)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	srv, err := drive.NewService(ctx, option.WithTokenSource(oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	store := &DriveStore{service: srv, folderName: folderName}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Put uploads data under name and returns its handle.
func (s *DriveStore) Put(ctx context.Context, name string, data []byte) (service.Handle, error) {
	folderID, err := s.ensureFolder(ctx)
	if err != nil {
		return service.Handle{}, err
	}

	meta := &drive.File{
		Name:     name,
		MimeType: archiveMimeType,
		Parents:  []string{folderID},
	}

	var reader io.Reader = bytes.NewReader(data)
	if s.progress != nil {
		bar := s.newBar(int64(len(data)), "uploading "+name)
		reader = io.TeeReader(reader, bar)
	}

	file, err := s.service.Files.Create(meta).
		Media(reader, googleapi.ContentType(archiveMimeType)).
		Fields("id, name, createdTime").
		Context(ctx).
		Do()
	if err != nil {
		return service.Handle{}, classify(fmt.Errorf("failed to upload %s: %w", name, err))
	}

	created, _ := time.Parse(time.RFC3339, file.CreatedTime)
	return service.Handle{ID: file.Id, Name: file.Name, CreatedAt: created}, nil
}

// Get downloads the archive behind the handle.
func (s *DriveStore) Get(ctx context.Context, h service.Handle) ([]byte, error) {
	resp, err := s.service.Files.Get(h.ID).Context(ctx).Download()
	if err != nil {
		return nil, classify(fmt.Errorf("failed to download %s: %w", h.Name, err))
	}
	defer func() { _ = resp.Body.Close() }()

	var reader io.Reader = resp.Body
	if s.progress != nil {
		bar := s.newBar(resp.ContentLength, "downloading "+h.Name)
		reader = io.TeeReader(reader, bar)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read %s: %w", h.Name, err))
	}
	return data, nil
}

// ListHandles returns all archives in the backup folder, newest first.
func (s *DriveStore) ListHandles(ctx context.Context) ([]service.Handle, error) {
	folderID, err := s.ensureFolder(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)

	var handles []service.Handle
	pageToken := ""
	for {
		call := s.service.Files.List().
			Q(query).
			OrderBy("createdTime desc").
			Fields("nextPageToken, files(id, name, createdTime)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, classify(fmt.Errorf("failed to list backups: %w", err))
		}

		for _, file := range page.Files {
			created, _ := time.Parse(time.RFC3339, file.CreatedTime)
			handles = append(handles, service.Handle{ID: file.Id, Name: file.Name, CreatedAt: created})
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return handles, nil
}

// ensureFolder finds or creates the backup folder and caches its id.
func (s *DriveStore) ensureFolder(ctx context.Context) (string, error) {
	if s.folderID != "" {
		return s.folderID, nil
	}

	query := fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.folder' and trashed = false", s.folderName)
	page, err := s.service.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", classify(fmt.Errorf("failed to look up backup folder: %w", err))
	}
	if len(page.Files) > 0 {
		s.folderID = page.Files[0].Id
		return s.folderID, nil
	}

	folder, err := s.service.Files.Create(&drive.File{
		Name:     s.folderName,
		MimeType: "application/vnd.google-apps.folder",
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", classify(fmt.Errorf("failed to create backup folder: %w", err))
	}

	s.folderID = folder.Id
	return s.folderID, nil
}

func (s *DriveStore) newBar(size int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(s.progress),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
}

// classify wraps Drive errors with a retry class. Rate limits and server
// errors are worth retrying; auth and permission failures are not.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return common.Transient(err)
		case apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusUnauthorized:
			return common.Permanent(err)
		case apiErr.Code == http.StatusNotFound:
			return common.Permanent(fmt.Errorf("%w: %s", common.ErrNotFound, err))
		}
	}
	// Network-level failures come back as plain errors; treat them as
	// transient so the retry loop gets a chance.
	return common.Transient(err)
}
