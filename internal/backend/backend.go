// Package backend opens the document and blob stores selected by configuration.
package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"go-firestore-admin/internal/blob"
	"go-firestore-admin/internal/config"
	"go-firestore-admin/internal/database"
	"go-firestore-admin/internal/database/memory"

	Firestore "firebase.google.com/go/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

type Backends struct {
	DB    database.Client
	Blobs blob.Store
}

func (b Backends) Close() error {
	return b.DB.Close()
}

// Open builds the stores named by cnf. The Firebase app is created only when one of
// them needs it.
func Open(ctx context.Context, cnf config.Config) (Backends, error) {
	var app *Firestore.App
	if cnf.UsesFirebase() {
		var err error
		if app, err = createFirestoreApp(ctx, cnf.Firebase); err != nil {
			return Backends{}, err
		}
	}

	db, err := openDatabase(ctx, cnf, app)
	if err != nil {
		return Backends{}, err
	}

	blobs, err := openBlobStore(ctx, cnf, app)
	if err != nil {
		db.Close()
		return Backends{}, err
	}

	log.Info().
		Str("store", cnf.Store.Backend).
		Str("blob", cnf.Blob.Backend).
		Msg("backends ready")
	return Backends{DB: db, Blobs: blobs}, nil
}

func createFirestoreApp(ctx context.Context, cnf config.Firebase) (*Firestore.App, error) {
	FirestoreCreds, err := json.Marshal(cnf)
	if err != nil {
		return nil, fmt.Errorf("marshal firebase credentials: %w", err)
	}

	sa := option.WithCredentialsJSON(FirestoreCreds)
	app, err := Firestore.NewApp(ctx, &Firestore.Config{
		ProjectID:     cnf.ProjectId,
		StorageBucket: cnf.StorageBucket,
	}, sa)
	if err != nil {
		return nil, fmt.Errorf("create firebase app: %w", err)
	}
	return app, nil
}

func openDatabase(ctx context.Context, cnf config.Config, app *Firestore.App) (database.Client, error) {
	switch cnf.Store.Backend {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreFirestore:
		firestoreClient, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("create firestore client: %w", err)
		}
		return database.New(firestoreClient, cnf.WriteTimeout()), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cnf.Store.Backend)
}

func openBlobStore(ctx context.Context, cnf config.Config, app *Firestore.App) (blob.Store, error) {
	switch cnf.Blob.Backend {
	case config.BlobMemory:
		return blob.NewMemoryStore(), nil
	case config.BlobS3:
		return blob.NewS3Store(ctx, blob.S3Config{
			Endpoint:        cnf.S3Endpoint,
			Region:          cnf.S3Region,
			Bucket:          cnf.S3Bucket,
			AccessKeyId:     cnf.S3AccessKeyId,
			SecretAccessKey: cnf.S3SecretAccessKey,
			PublicURL:       cnf.S3PublicURL,
		})
	case config.BlobFirebase:
		storageClient, err := app.Storage(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		bucket, err := storageClient.Bucket(cnf.StorageBucket)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", cnf.StorageBucket, err)
		}
		return blob.NewFirebaseStore(bucket, cnf.StorageBucket), nil
	}
	return nil, fmt.Errorf("unknown blob backend %q", cnf.Blob.Backend)
}
