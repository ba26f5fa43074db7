package mongo

import (
	"context"
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

type AccountID anonymize.ObjectID

var _ anonymize.Marshaller = &AccountID{}

func (o AccountID) MarshalJSON() ([]byte, error) {
	a := (*anonymize.ObjectID)(&o)
	return a.MarshalJSONWithPrefix(anonymize.PrefixAccount)
}

func (o *AccountID) UnmarshalJSON(b []byte) error {
	a := (*anonymize.ObjectID)(o)
	return a.UnmarshalJSONWithPrefix(anonymize.PrefixAccount, b)
}

func (o AccountID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return (*anonymize.ObjectID)(&o).MarshalBSONValue()
}

func (o *AccountID) UnmarshalBSONValue(t bsontype.Type, b []byte) error {
	return (*anonymize.ObjectID)(o).UnmarshalBSONValue(t, b)
}

func (o AccountID) ObjectID() primitive.ObjectID {
	return primitive.ObjectID(o)
}

func (o AccountID) String() string {
	a := (*anonymize.ObjectID)(&o)
	return a.StringWithPrefix(anonymize.PrefixAccount)
}

type account struct {
	ID_                  AccountID      `bson:"_id"`
	Name_                string         `bson:"name"`
	Address_             common.Address `bson:"address"`
	EncryptedPrivateKey_ []byte         `bson:"encryptedPrivateKey"`
	Created_             time.Time      `bson:"created"`
}

var _ interfaces.Account = &account{}

func (a *account) ID() interfaces.ID {
	return a.ID_.String()
}

func (a *account) Name() string {
	return a.Name_
}

func (a *account) Address() common.Address {
	return a.Address_
}

func (a *account) EncryptedPrivateKey() []byte {
	return a.EncryptedPrivateKey_
}

func (a *account) Created() time.Time {
	return a.Created_
}

type listAccountsResult struct {
	Count_ int64
	Page_  []*account
}

var _ interfaces.ListAccountsResult = &listAccountsResult{}

func (r *listAccountsResult) Count() int64 {
	return r.Count_
}

func (r *listAccountsResult) Page() []interfaces.Account {
	out := make([]interfaces.Account, len(r.Page_))
	for i, a := range r.Page_ {
		out[i] = a
	}
	return out
}

func (m *mongoStorageBackend) CreateAccount(ctx context.Context, name string, address common.Address, encryptedPrivateKey []byte) (interfaces.Account, error) {
	a := account{
		ID_:                  AccountID(primitive.NewObjectID()),
		Name_:                name,
		Address_:             address,
		EncryptedPrivateKey_: encryptedPrivateKey,
		Created_:             time.Now(),
	}

	if _, err := m.db.Collection(accountsCollection).InsertOne(ctx, &a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("account %s already exists", address)
		}
		return nil, err
	} else {
		return &a, nil
	}
}

func (m *mongoStorageBackend) GetAccount(ctx context.Context, address common.Address) (interfaces.Account, error) {
	var a account

	if err := m.db.Collection(accountsCollection).FindOne(ctx, bson.M{"address": address}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("account %s: %w", address, interfaces.ErrNotFound)
		}
		return nil, err
	} else {
		return &a, nil
	}
}

func (m *mongoStorageBackend) ListAccounts(ctx context.Context, offset int64, count int64) (interfaces.ListAccountsResult, error) {
	var r listAccountsResult

	opts := options.Find().SetSkip(offset).SetLimit(count).SetSort(bson.M{"created": 1})

	if total, err := m.db.Collection(accountsCollection).CountDocuments(ctx, bson.M{}); err != nil {
		return nil, err
	} else if cursor, err := m.db.Collection(accountsCollection).Find(ctx, bson.M{}, opts); err != nil {
		return nil, err
	} else if err := cursor.All(ctx, &r.Page_); err != nil {
		return nil, err
	} else {
		r.Count_ = total
		return &r, nil
	}
}
