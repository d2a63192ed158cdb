package googleDriveApi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/KotFed0t/sp500_loader/utils"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	downloadLinkTemplate = "https://drive.google.com/file/d/%s/view"
	xlsxMimeType         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	reportQuery          = "name contains 'sp500_' and trashed = false"
)

type GoogleDriveApi struct {
	srv     *drive.Service
	fileTTL time.Duration
	now     func() time.Time
}

// New creates the drive client. Without opts the service account file from config is used.
func New(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) (*GoogleDriveApi, error) {
	if len(opts) == 0 {
		opts = []option.ClientOption{option.WithCredentialsFile(cfg.GoogleDrive.CredentialsFile)}
	}

	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive.NewService: %w", err)
	}

	return &GoogleDriveApi{srv: srv, fileTTL: cfg.GoogleDrive.FileTTL, now: time.Now}, nil
}

// UploadFile stores the report and makes it readable by link.
func (a *GoogleDriveApi) UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.UploadFile"

	slog.Debug("UploadFile start", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))

	uploaded, err := a.srv.Files.
		Create(&drive.File{Name: filename, MimeType: mimeType(filename)}).
		Media(reader).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("failed on uploading report", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	_, err = a.srv.Permissions.
		Create(uploaded.Id, &drive.Permission{Type: "anyone", Role: "reader"}).
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("failed on sharing report", slog.String("rqID", rqID), slog.String("op", op), slog.String("fileID", uploaded.Id), slog.String("err", err.Error()))
		return "", err
	}

	slog.Debug("UploadFile completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("fileID", uploaded.Id))

	return fmt.Sprintf(downloadLinkTemplate, uploaded.Id), nil
}

func mimeType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == ".xlsx" {
		return xlsxMimeType
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// DeleteOldFiles removes reports older than the configured ttl. Files that fail to delete are kept for the next run.
func (a *GoogleDriveApi) DeleteOldFiles(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.DeleteOldFiles"

	slog.Debug("DeleteOldFiles start", slog.String("rqID", rqID), slog.String("op", op))

	var files []*drive.File
	err := a.srv.Files.List().
		Q(reportQuery).
		Fields("nextPageToken, files(id, name, createdTime)").
		Pages(ctx, func(page *drive.FileList) error {
			files = append(files, page.Files...)
			return nil
		})
	if err != nil {
		slog.Error("failed on listing reports", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	deadline := a.now().Add(-a.fileTTL)
	deleted := 0
	for _, f := range files {
		if !expired(f.CreatedTime, deadline) {
			continue
		}
		if err := a.srv.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
			slog.Error("failed delete report", slog.String("rqID", rqID), slog.String("op", op), slog.String("fileID", f.Id), slog.String("err", err.Error()))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		if err := a.srv.Files.EmptyTrash().Context(ctx).Do(); err != nil {
			slog.Error("failed empty trash", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	slog.Info("old reports deleted", slog.String("rqID", rqID), slog.String("op", op), slog.Int("deleted", deleted), slog.Int("remaining", len(files)-deleted))

	return nil
}

// expired reports whether createdTime (RFC 3339) is before deadline. Unparsable times never expire.
func expired(createdTime string, deadline time.Time) bool {
	created, err := time.Parse(time.RFC3339, createdTime)
	if err != nil {
		slog.Warn("can't parse drive createdTime", slog.String("createdTime", createdTime))
		return false
	}
	return created.Before(deadline)
}
