package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/n3tuk/maintenance-gate/internal/model"
	"github.com/n3tuk/maintenance-gate/internal/storage"
)

const testNS = "maintenance.manutencao_sistema"

func TestLatestMaintenance(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns newest document", func(mt *mtest.T) {
		repo := NewWithDatabase(mt.DB)
		now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, bson.D{
			{Key: "id", Value: int64(5)},
			{Key: "ativo", Value: true},
			{Key: "mensagem", Value: "Upgrade"},
			{Key: "atualizado_em", Value: now},
			{Key: "criado_por", Value: "ADMIN"},
		}))

		rec, err := repo.LatestMaintenance(context.Background())
		if err != nil {
			t.Fatalf("LatestMaintenance() error = %v", err)
		}
		if rec.ID != 5 || !rec.Active || rec.Message != "Upgrade" || rec.CreatedBy != "ADMIN" {
			t.Errorf("got %+v", rec)
		}
	})

	mt.Run("empty collection", func(mt *mtest.T) {
		repo := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch))

		_, err := repo.LatestMaintenance(context.Background())
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("LatestMaintenance() error = %v, want storage.ErrNotFound", err)
		}
	})

	mt.Run("server error", func(mt *mtest.T) {
		repo := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Message: "interrupted at shutdown",
		}))

		_, err := repo.LatestMaintenance(context.Background())
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			t.Errorf("LatestMaintenance() error = %v, want server error", err)
		}
	})
}

func TestSaveMaintenance(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("allocates id and inserts", func(mt *mtest.T) {
		repo := NewWithDatabase(mt.DB)

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: maintenanceSequence},
				{Key: "seq", Value: int64(9)},
			}}),
			mtest.CreateSuccessResponse(),
		)

		rec := model.StatusUpdate{Active: true, Message: "M", CreatedBy: model.ActorAdmin}.NewRecord(time.Now())
		stored, err := repo.SaveMaintenance(context.Background(), rec)
		if err != nil {
			t.Fatalf("SaveMaintenance() error = %v", err)
		}
		if stored.ID != 9 {
			t.Errorf("ID = %d, want 9", stored.ID)
		}
		if stored.Message != "M" {
			t.Errorf("Message = %q, want M", stored.Message)
		}
	})
}

func TestIsActiveAdmin(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("match", func(mt *mtest.T) {
		repo := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "maintenance.administradores", mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(1)}}))

		ok, err := repo.IsActiveAdmin(context.Background(), "adm-1")
		if err != nil {
			t.Fatalf("IsActiveAdmin() error = %v", err)
		}
		if !ok {
			t.Error("IsActiveAdmin() = false, want true")
		}
	})

	mt.Run("no match", func(mt *mtest.T) {
		repo := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "maintenance.administradores", mtest.FirstBatch))

		ok, err := repo.IsActiveAdmin(context.Background(), "nobody")
		if err != nil {
			t.Fatalf("IsActiveAdmin() error = %v", err)
		}
		if ok {
			t.Error("IsActiveAdmin() = true, want false")
		}
	})
}

func TestPruneMaintenance(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deletes older than boundary", func(mt *mtest.T) {
		repo := NewWithDatabase(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, bson.D{
				{Key: "id", Value: int64(20)},
				{Key: "ativo", Value: false},
				{Key: "atualizado_em", Value: time.Now()},
			}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(4)}),
		)

		n, err := repo.PruneMaintenance(context.Background(), 10)
		if err != nil {
			t.Fatalf("PruneMaintenance() error = %v", err)
		}
		if n != 4 {
			t.Errorf("removed = %d, want 4", n)
		}
	})

	mt.Run("fewer documents than keep", func(mt *mtest.T) {
		repo := NewWithDatabase(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch))

		n, err := repo.PruneMaintenance(context.Background(), 10)
		if err != nil {
			t.Fatalf("PruneMaintenance() error = %v", err)
		}
		if n != 0 {
			t.Errorf("removed = %d, want 0", n)
		}
	})

	mt.Run("invalid keep", func(mt *mtest.T) {
		repo := NewWithDatabase(mt.DB)
		if _, err := repo.PruneMaintenance(context.Background(), 0); err == nil {
			t.Error("expected error for keep=0")
		}
	})
}
