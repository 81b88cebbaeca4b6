// Package storage persists uploaded content to Google Drive.
//
// The layout mirrors what the router asks for: a destination folder per
// group, a dated subfolder per day, image files named after the originating
// message, and a per-day notes file that grows by one timestamped line per
// note. Folder and file lookups are by name within a parent, matching how a
// human browses the resulting tree.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tbourn/go-line-uploader/internal/config"
)

const folderMIME = "application/vnd.google-apps.folder"

// Drive implements the router's Storage contract on the Drive v3 API.
type Drive struct {
	svc *drive.Service
	log zerolog.Logger

	// now stamps appended note lines; a seam for tests.
	now func() time.Time
}

// NewDrive authenticates with the OAuth client credentials and cached user
// token on disk and returns a ready client.
func NewDrive(ctx context.Context, cfg config.DriveConfig, log zerolog.Logger) (*Drive, error) {
	creds, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("storage: read credentials: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(creds, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("storage: parse credentials: %w", err)
	}

	rawTok, err := os.ReadFile(cfg.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("storage: read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(rawTok, &tok); err != nil {
		return nil, fmt.Errorf("storage: parse token: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("storage: init drive service: %w", err)
	}
	return &Drive{svc: svc, log: log, now: time.Now}, nil
}

// NewDriveWithService wraps an already-constructed Drive service. Used by
// tests pointing the API at a local server.
func NewDriveWithService(svc *drive.Service, log zerolog.Logger) *Drive {
	return &Drive{svc: svc, log: log, now: time.Now}
}

// FindOrCreateFolder returns the id of the folder called name under
// parentID, creating it when absent. An empty parentID means the drive
// root.
func (d *Drive) FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	id, err := d.findByName(ctx, name, parentID, true)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	meta := &drive.File{Name: name, MimeType: folderMIME}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	created, err := d.svc.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("storage: create folder %q: %w", name, err)
	}
	d.log.Info().Str("folder", name).Str("id", created.Id).Msg("created drive folder")
	return created.Id, nil
}

// UploadFile creates a new file named name with the given content inside
// folderID and returns its id.
func (d *Drive) UploadFile(ctx context.Context, name string, content []byte, folderID string) (string, error) {
	meta := &drive.File{Name: name, Parents: []string{folderID}}
	created, err := d.svc.Files.Create(meta).
		Media(bytes.NewReader(content), googleapi.ContentType(contentTypeFor(name))).
		Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("storage: upload %q: %w", name, err)
	}
	return created.Id, nil
}

// AppendTextLine appends a timestamped line to fileName inside folderID,
// creating the file when it does not exist yet. The whole file is rewritten
// on append; note files stay small enough that this is the simplest correct
// approach against an API with no partial-write support.
func (d *Drive) AppendTextLine(ctx context.Context, fileName, line, folderID string) error {
	stamped := fmt.Sprintf("[%s] %s", d.now().Format("2006-01-02 15:04:05"), line)

	id, err := d.findByName(ctx, fileName, folderID, false)
	if err != nil {
		return err
	}

	if id == "" {
		meta := &drive.File{Name: fileName, Parents: []string{folderID}}
		_, err := d.svc.Files.Create(meta).
			Media(strings.NewReader(stamped+"\n"), googleapi.ContentType("text/plain")).
			Fields("id").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("storage: create %q: %w", fileName, err)
		}
		return nil
	}

	resp, err := d.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("storage: download %q: %w", fileName, err)
	}
	existing, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("storage: read %q: %w", fileName, err)
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(stamped + "\n")

	_, err = d.svc.Files.Update(id, &drive.File{}).
		Media(bytes.NewReader(buf.Bytes()), googleapi.ContentType("text/plain")).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("storage: update %q: %w", fileName, err)
	}
	return nil
}

// findByName returns the id of the first non-trashed child of parentID
// with the given name, or "" when none exists.
func (d *Drive) findByName(ctx context.Context, name, parentID string, folder bool) (string, error) {
	var q strings.Builder
	fmt.Fprintf(&q, "name = '%s' and trashed = false", escapeQuery(name))
	if folder {
		fmt.Fprintf(&q, " and mimeType = '%s'", folderMIME)
	}
	if parentID != "" {
		fmt.Fprintf(&q, " and '%s' in parents", escapeQuery(parentID))
	}

	list, err := d.svc.Files.List().
		Q(q.String()).
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("storage: list %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// escapeQuery escapes single quotes and backslashes for Drive query syntax.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// contentTypeFor picks the upload MIME type from the file name suffix.
func contentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".jpg"), strings.HasSuffix(name, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(name, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
