package groupRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/database/repository"
	"tablebook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoGroupRepo struct {
	coll *mongo.Collection
}

func NewMongoGroupRepo(db *mongo.Database) GroupRequestRepository {
	return &mongoGroupRepo{coll: db.Collection("group_requests")}
}

func (r *mongoGroupRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		// Sweep query: pending requests ordered by their last candidate date.
		{
			Keys:    bson.D{{Key: "state", Value: 1}, {Key: "lastCandidateDate", Value: 1}},
			Options: options.Index().SetName("state_last_candidate_idx"),
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create group request indexes: %w", err)
	}
	return nil
}

func (r *mongoGroupRepo) Create(ctx context.Context, req *models.GroupBookingRequest) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, req); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("error creating group request: %w", err)
	}
	return nil
}

func (r *mongoGroupRepo) GetByID(ctx context.Context, id string) (*models.GroupBookingRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var req models.GroupBookingRequest
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching group request %s: %w", id, err)
	}
	return &req, nil
}

func (r *mongoGroupRepo) find(ctx context.Context, filter bson.M) ([]models.GroupBookingRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing group requests: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.GroupBookingRequest{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding group requests: %w", err)
	}
	return out, nil
}

func (r *mongoGroupRepo) List(ctx context.Context, state models.GroupRequestState) ([]models.GroupBookingRequest, error) {
	filter := bson.M{}
	if state != "" {
		filter["state"] = state
	}
	return r.find(ctx, filter)
}

func (r *mongoGroupRepo) ListStale(ctx context.Context, date string) ([]models.GroupBookingRequest, error) {
	return r.find(ctx, bson.M{
		"state":             models.GroupPendingReview,
		"lastCandidateDate": bson.M{"$lt": date},
	})
}

// transition applies set to a pending request and reports why nothing matched otherwise.
func (r *mongoGroupRepo) transition(ctx context.Context, id string, set bson.M) (*models.GroupBookingRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id, "state": models.GroupPendingReview}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.GroupBookingRequest
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error updating group request %s: %w", id, err)
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"id": id})
	if err != nil {
		return nil, fmt.Errorf("error checking group request %s: %w", id, err)
	}
	if n == 0 {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrStateConflict
}

func (r *mongoGroupRepo) MarkResolved(ctx context.Context, id, bookingID string, slot models.Slot, at time.Time) (*models.GroupBookingRequest, error) {
	return r.transition(ctx, id, bson.M{
		"state":      models.GroupResolved,
		"bookingId":  bookingID,
		"chosenSlot": slot,
		"updatedAt":  at,
	})
}

func (r *mongoGroupRepo) MarkRejected(ctx context.Context, id, reason string, at time.Time) (*models.GroupBookingRequest, error) {
	return r.transition(ctx, id, bson.M{
		"state":           models.GroupRejected,
		"rejectionReason": reason,
		"updatedAt":       at,
	})
}
