package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Bhargav65/Silent-Byte/internal/model"
)

// MongoStore keeps one document per room, keyed by code.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		collection: db.Collection("rooms"),
	}
}

func (s *MongoStore) LoadAll(ctx context.Context) ([]model.Room, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rooms []model.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *MongoStore) Upsert(ctx context.Context, room model.Room) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"code": room.Code}, room, opts)
	return err
}

func (s *MongoStore) Delete(ctx context.Context, code string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"code": code})
	return err
}
