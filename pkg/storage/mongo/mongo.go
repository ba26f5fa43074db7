package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	deploymentsCollection = "deployments"
	scriptsCollection     = "scripts"
	accountsCollection    = "accounts"
)

type mongoStorageBackend struct {
	db *mongo.Database
}

var _ interfaces.IStorageBackend = &mongoStorageBackend{}

func NewMongoStorageBackend(ctx context.Context, mongoURL string) (interfaces.IStorageBackend, error) {
	b := &mongoStorageBackend{}

	if mongoURL == "" {
		return nil, fmt.Errorf("MONGO_URL not configured for the mongo storage backend")
	} else if u, err := url.Parse(mongoURL); err != nil {
		return nil, err
	} else if client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL)); err != nil {
		return nil, err
	} else {
		name := strings.TrimPrefix(u.Path, "/")
		if name == "" {
			name = "confidential-defi"
		}
		b.db = client.Database(name)
	}

	if err := b.EnsureIndex(ctx, deploymentsCollection, mongo.IndexModel{
		Keys:    bson.D{{Key: "network", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetName("network_name").SetUnique(true),
	}); err != nil {
		return nil, err
	}

	if err := b.EnsureIndex(ctx, scriptsCollection, mongo.IndexModel{
		Keys:    bson.D{{Key: "network", Value: 1}, {Key: "script", Value: 1}},
		Options: options.Index().SetName("network_script").SetUnique(true),
	}); err != nil {
		return nil, err
	}

	if err := b.EnsureIndex(ctx, accountsCollection, mongo.IndexModel{
		Keys:    bson.M{"address": 1},
		Options: options.Index().SetName("address").SetUnique(true),
	}); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *mongoStorageBackend) EnsureIndex(ctx context.Context, collectionName string, model mongo.IndexModel) error {
	c := b.db.Collection(collectionName)

	idxs := c.Indexes()

	v := model.Options.Name
	if v == nil {
		return fmt.Errorf("must provide a name for index")
	}
	expectedName := *v

	cur, err := idxs.List(ctx)
	if err != nil {
		return fmt.Errorf("unable to list indexes: %s", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var d bson.M

		if err := cur.Decode(&d); err != nil {
			return fmt.Errorf("unable to decode bson index document: %s", err)
		}

		if name, ok := d["name"].(string); ok && name == expectedName {
			return nil
		}
	}

	_, err = idxs.CreateOne(ctx, model)
	return err
}
