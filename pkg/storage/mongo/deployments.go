package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
	"github.com/grexie/confidential-defi/pkg/storage/mongo/anonymize"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DeploymentID anonymize.ObjectID

var _ anonymize.Marshaller = &DeploymentID{}

func (o DeploymentID) MarshalJSON() ([]byte, error) {
	a := (*anonymize.ObjectID)(&o)
	return a.MarshalJSONWithPrefix(anonymize.PrefixDeployment)
}

func (o *DeploymentID) UnmarshalJSON(b []byte) error {
	a := (*anonymize.ObjectID)(o)
	return a.UnmarshalJSONWithPrefix(anonymize.PrefixDeployment, b)
}

func (o DeploymentID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return (*anonymize.ObjectID)(&o).MarshalBSONValue()
}

func (o *DeploymentID) UnmarshalBSONValue(t bsontype.Type, b []byte) error {
	return (*anonymize.ObjectID)(o).UnmarshalBSONValue(t, b)
}

func (o DeploymentID) ObjectID() primitive.ObjectID {
	return primitive.ObjectID(o)
}

func (o DeploymentID) String() string {
	a := (*anonymize.ObjectID)(&o)
	return a.StringWithPrefix(anonymize.PrefixDeployment)
}

type deployment struct {
	ID_              DeploymentID   `bson:"_id"`
	Network_         string         `bson:"network"`
	Name_            string         `bson:"name"`
	Address_         common.Address `bson:"address"`
	TransactionHash_ common.Hash    `bson:"transactionHash"`
	Args_            []string       `bson:"args"`
	ABI_             string         `bson:"abi,omitempty"`
	Deployed_        time.Time      `bson:"deployedAt"`
}

var _ interfaces.Deployment = &deployment{}

func (d *deployment) ID() interfaces.ID {
	return d.ID_.String()
}

func (d *deployment) Network() string {
	return d.Network_
}

func (d *deployment) Name() string {
	return d.Name_
}

func (d *deployment) Address() common.Address {
	return d.Address_
}

func (d *deployment) TransactionHash() common.Hash {
	return d.TransactionHash_
}

func (d *deployment) Args() []string {
	return d.Args_
}

func (d *deployment) ABI() json.RawMessage {
	if d.ABI_ == "" {
		return nil
	}
	return json.RawMessage(d.ABI_)
}

func (d *deployment) Deployed() time.Time {
	return d.Deployed_
}

type listDeploymentsResult struct {
	Count_ int64
	Page_  []*deployment
}

var _ interfaces.ListDeploymentsResult = &listDeploymentsResult{}

func (r *listDeploymentsResult) Count() int64 {
	return r.Count_
}

func (r *listDeploymentsResult) Page() []interfaces.Deployment {
	out := make([]interfaces.Deployment, len(r.Page_))
	for i, d := range r.Page_ {
		out[i] = d
	}
	return out
}

func (m *mongoStorageBackend) SaveDeployment(ctx context.Context, network string, name string, address common.Address, transactionHash common.Hash, args []string, abi json.RawMessage) (interfaces.Deployment, error) {
	d := deployment{
		ID_:              DeploymentID(primitive.NewObjectID()),
		Network_:         network,
		Name_:            name,
		Address_:         address,
		TransactionHash_: transactionHash,
		Args_:            args,
		ABI_:             string(abi),
		Deployed_:        time.Now(),
	}

	filter := bson.M{"network": network, "name": name}
	update := bson.M{
		"$set": bson.M{
			"address":         d.Address_,
			"transactionHash": d.TransactionHash_,
			"args":            d.Args_,
			"abi":             d.ABI_,
			"deployedAt":      d.Deployed_,
		},
		"$setOnInsert": bson.M{"_id": d.ID_},
	}

	if _, err := m.db.Collection(deploymentsCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return nil, err
	} else {
		return m.GetDeployment(ctx, network, name)
	}
}

func (m *mongoStorageBackend) GetDeployment(ctx context.Context, network string, name string) (interfaces.Deployment, error) {
	var d deployment

	if err := m.db.Collection(deploymentsCollection).FindOne(ctx, bson.M{"network": network, "name": name}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("deployment %s on %s: %w", name, network, interfaces.ErrNotFound)
		}
		return nil, err
	} else {
		return &d, nil
	}
}

func (m *mongoStorageBackend) ListDeployments(ctx context.Context, network string, offset int64, count int64) (interfaces.ListDeploymentsResult, error) {
	var r listDeploymentsResult

	filter := bson.M{"network": network}
	opts := options.Find().SetSkip(offset).SetLimit(count).SetSort(bson.M{"deployedAt": 1})

	if total, err := m.db.Collection(deploymentsCollection).CountDocuments(ctx, filter); err != nil {
		return nil, err
	} else if cursor, err := m.db.Collection(deploymentsCollection).Find(ctx, filter, opts); err != nil {
		return nil, err
	} else if err := cursor.All(ctx, &r.Page_); err != nil {
		return nil, err
	} else {
		r.Count_ = total
		return &r, nil
	}
}

func (m *mongoStorageBackend) MarkScriptExecuted(ctx context.Context, network string, id interfaces.ID) error {
	filter := bson.M{"network": network, "script": id}
	update := bson.M{"$setOnInsert": bson.M{"executedAt": time.Now()}}

	_, err := m.db.Collection(scriptsCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (m *mongoStorageBackend) IsScriptExecuted(ctx context.Context, network string, id interfaces.ID) (bool, error) {
	if count, err := m.db.Collection(scriptsCollection).CountDocuments(ctx, bson.M{"network": network, "script": id}); err != nil {
		return false, err
	} else {
		return count > 0, nil
	}
}
