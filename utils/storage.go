package utils

import (
	"context"
	"errors"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client.
// Prefers ADC (service account / GOOGLE_APPLICATION_CREDENTIALS); set
// GCS_CREDENTIALS_JSON to provide explicit JSON locally.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// BackupUploadEnabled reports whether ledger backups should be copied
// offsite after the local xlsx is written.
func BackupUploadEnabled() bool {
	return strings.TrimSpace(os.Getenv("GCS_BACKUP_BUCKET")) != ""
}

// UploadBackupToGCS writes a ledger backup object. objectName should carry
// the terminal id and date so backups from different registers never clash.
func UploadBackupToGCS(ctx context.Context, objectName string, data []byte) error {
	bucketName := os.Getenv("GCS_BACKUP_BUCKET")
	if bucketName == "" {
		return errors.New("GCS_BACKUP_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}
