// Package mongo implements storage.Repository backed by MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/n3tuk/maintenance-gate/internal/model"
	"github.com/n3tuk/maintenance-gate/internal/storage"
)

// Collection names, shared with the protected application.
const (
	CollectionMaintenance = "manutencao_sistema"
	CollectionAdmins      = "administradores"
	CollectionCounters    = "counters"

	maintenanceSequence = "manutencao_sistema_id"
)

// maintenanceDoc is the stored shape of a maintenance record.
type maintenanceDoc struct {
	ID        int64      `bson:"id"`
	Active    bool       `bson:"ativo"`
	Message   string     `bson:"mensagem,omitempty"`
	StartedAt *time.Time `bson:"data_inicio,omitempty"`
	EndedAt   *time.Time `bson:"data_fim,omitempty"`
	UpdatedAt time.Time  `bson:"atualizado_em"`
	CreatedBy string     `bson:"criado_por,omitempty"`
}

// Repository implements storage.Repository on a MongoDB database.
type Repository struct {
	client *mongo.Client
	db     *mongo.Database
}

// Compile-time check that Repository implements storage.Repository.
var _ storage.Repository = (*Repository)(nil)

// Connect opens a client for uri and verifies the connection.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Repository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second).
		SetRetryReads(true)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	repo := NewWithDatabase(client.Database(database))
	if err := repo.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return repo, nil
}

// NewWithDatabase wraps an existing database handle.
func NewWithDatabase(db *mongo.Database) *Repository {
	return &Repository{client: db.Client(), db: db}
}

func (r *Repository) ensureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(CollectionMaintenance).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create maintenance index: %w", err)
	}
	return nil
}

// LatestMaintenance returns the record with the highest id.
func (r *Repository) LatestMaintenance(ctx context.Context) (*model.MaintenanceRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "id", Value: -1}})

	var doc maintenanceDoc
	err := r.db.Collection(CollectionMaintenance).FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest maintenance: %w", err)
	}

	return doc.record(), nil
}

// SaveMaintenance allocates the next id from the counters collection and
// inserts a new document.
func (r *Repository) SaveMaintenance(ctx context.Context, rec *model.MaintenanceRecord) (*model.MaintenanceRecord, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	doc := newMaintenanceDoc(rec)
	doc.ID = id

	if _, err := r.db.Collection(CollectionMaintenance).InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert maintenance: %w", err)
	}

	return doc.record(), nil
}

func (r *Repository) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.db.Collection(CollectionCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": maintenanceSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate maintenance id: %w", err)
	}
	return counter.Seq, nil
}

// IsActiveAdmin reports whether an active administrator has _id equal to id.
func (r *Repository) IsActiveAdmin(ctx context.Context, id string) (bool, error) {
	n, err := r.db.Collection(CollectionAdmins).CountDocuments(ctx,
		bson.M{"_id": id, "ativo": true},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("failed to query administrator: %w", err)
	}
	return n > 0, nil
}

// PruneMaintenance keeps the newest keep documents and deletes the rest.
func (r *Repository) PruneMaintenance(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}

	coll := r.db.Collection(CollectionMaintenance)
	opts := options.FindOne().
		SetSort(bson.D{{Key: "id", Value: -1}}).
		SetSkip(int64(keep - 1))

	var oldestKept maintenanceDoc
	err := coll.FindOne(ctx, bson.D{}, opts).Decode(&oldestKept)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find prune boundary: %w", err)
	}

	res, err := coll.DeleteMany(ctx, bson.M{"id": bson.M{"$lt": oldestKept.ID}})
	if err != nil {
		return 0, fmt.Errorf("failed to prune maintenance: %w", err)
	}
	return res.DeletedCount, nil
}

// Ping verifies connectivity to the primary.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (r *Repository) Close(ctx context.Context) error {
	disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := r.client.Disconnect(disconnectCtx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

func newMaintenanceDoc(rec *model.MaintenanceRecord) maintenanceDoc {
	return maintenanceDoc{
		ID:        rec.ID,
		Active:    rec.Active,
		Message:   rec.Message,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
		UpdatedAt: rec.UpdatedAt,
		CreatedBy: rec.CreatedBy,
	}
}

func (d maintenanceDoc) record() *model.MaintenanceRecord {
	return &model.MaintenanceRecord{
		ID:        d.ID,
		Active:    d.Active,
		Message:   d.Message,
		StartedAt: d.StartedAt,
		EndedAt:   d.EndedAt,
		UpdatedAt: d.UpdatedAt,
		CreatedBy: d.CreatedBy,
	}
}
