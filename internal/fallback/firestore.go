package fallback

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreCollection = "fallback"

// FirestoreStore keeps one document per key, shared by every instance that
// points at the same project.
type FirestoreStore struct {
	client *firestore.Client
	now    func() time.Time
}

type firestoreEntry struct {
	Value     string    `firestore:"value"`
	ExpiresAt time.Time `firestore:"expires-at"`
	UpdatedAt time.Time `firestore:"updated-at"`
}

// OpenFirestore connects to the project's Firestore database. With an empty
// credentials path the default application credentials are used.
func OpenFirestore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore fallback needs a project id")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &FirestoreStore{client: client, now: time.Now}, nil
}

// docID escapes characters Firestore does not allow in document ids.
func docID(key string) string {
	return url.PathEscape(key)
}

func (f *FirestoreStore) Get(ctx context.Context, key string) (string, bool, error) {
	doc, err := f.client.Collection(firestoreCollection).Doc(docID(key)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get fallback document: %w", err)
	}

	var entry firestoreEntry
	if err := doc.DataTo(&entry); err != nil {
		return "", false, fmt.Errorf("decode fallback document: %w", err)
	}
	if expired(entry.ExpiresAt, f.now()) {
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (f *FirestoreStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	now := f.now()
	_, err := f.client.Collection(firestoreCollection).Doc(docID(key)).Set(ctx, firestoreEntry{
		Value:     value,
		ExpiresAt: expiry(now, ttl),
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("set fallback document: %w", err)
	}
	return nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
