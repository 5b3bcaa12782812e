package repository

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultFirestoreCollection はFirestoreStoreが使用する既定のコレクション名。
const DefaultFirestoreCollection = "ux_template"

// FirestoreStore は1キー1ドキュメントでFirestoreに保存するKeyValueStore。
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// kvDoc はFirestore上のドキュメント形式。
type kvDoc struct {
	Value     []byte    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// NewFirestoreStore はFirestoreクライアントを生成してFirestoreStoreを返す。
// 認証情報はApplication Default Credentialsから解決される。
func NewFirestoreStore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for firestore store")
	}
	if collection == "" {
		collection = DefaultFirestoreCollection
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(firestoreDocID(key))
}

// Get はドキュメントの値を返す。ドキュメントがなければfound=false。
func (s *FirestoreStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("firestore Get %s: %w", key, err)
	}

	var d kvDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, false, fmt.Errorf("firestore decode %s: %w", key, err)
	}
	return d.Value, true, nil
}

// Set はドキュメントを上書き保存する。
func (s *FirestoreStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.doc(key).Set(ctx, kvDoc{Value: value, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("firestore Set %s: %w", key, err)
	}
	return nil
}

// Remove はドキュメントを削除する。存在しないドキュメントの削除は成功する。
func (s *FirestoreStore) Remove(ctx context.Context, key string) error {
	if _, err := s.doc(key).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("firestore Delete %s: %w", key, err)
	}
	return nil
}

// Close はFirestoreクライアントを閉じる。
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// firestoreDocID はキーをドキュメントIDに変換する。
// ドキュメントIDに"/"は使えないため、パスエスケープで"/"と"%"を符号化する。
// 異なるキーが同じドキュメントIDになることはない。
func firestoreDocID(key string) string {
	return url.PathEscape(key)
}

// compile-time interface check
var _ KeyValueStore = (*FirestoreStore)(nil)
