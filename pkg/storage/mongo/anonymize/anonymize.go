// Package anonymize hides mongo object ids behind an rc4 stream so the
// insertion timestamp and counter they carry never reach API clients.
package anonymize

import (
	"encoding/base32"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PrefixDeployment = "dep"
	PrefixAccount    = "acc"
)

type Marshaller interface {
	json.Marshaler
	json.Unmarshaler
	bson.ValueMarshaler
	bson.ValueUnmarshaler
	ObjectID() primitive.ObjectID
	String() string
}

type ObjectID primitive.ObjectID

var _ json.Marshaler = &ObjectID{}
var _ json.Unmarshaler = &ObjectID{}
var _ bson.ValueMarshaler = &ObjectID{}
var _ bson.ValueUnmarshaler = &ObjectID{}

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const defaultAnonymizationKey = "4f0d7c5b0a8e2d6c91e3a7b5f2c8d0e6a4b9c1d3"

var defaultKeyWarning sync.Once

func anonymizationKey() []byte {
	if k, ok := os.LookupEnv("ANONYMIZATION_KEY"); ok && k != "" {
		return []byte(k)
	}
	defaultKeyWarning.Do(func() {
		log.Warn("no ANONYMIZATION_KEY configured, object ids are anonymized with the built-in key")
	})
	return []byte(defaultAnonymizationKey)
}

func (o *ObjectID) encode() (string, error) {
	if ciphertext, err := xorRC4(anonymizationKey(), o[:]); err != nil {
		return "", err
	} else {
		return strings.ToLower(encoding.EncodeToString(ciphertext)), nil
	}
}

func decode(s string) (ObjectID, error) {
	var o ObjectID
	if ciphertext, err := encoding.DecodeString(strings.ToUpper(s)); err != nil {
		return o, err
	} else if len(ciphertext) != len(o) {
		return o, fmt.Errorf("invalid id length %d", len(ciphertext))
	} else if plaintext, err := xorRC4(anonymizationKey(), ciphertext); err != nil {
		return o, err
	} else {
		copy(o[:], plaintext)
		return o, nil
	}
}

func (o *ObjectID) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	} else if v, err := decode(id); err != nil {
		return err
	} else {
		*o = v
		return nil
	}
}

func (o *ObjectID) MarshalJSON() ([]byte, error) {
	if s, err := o.encode(); err != nil {
		return nil, err
	} else {
		return json.Marshal(s)
	}
}

func (o *ObjectID) UnmarshalBSONValue(t bsontype.Type, b []byte) error {
	p := (*primitive.ObjectID)(o)
	return bson.UnmarshalValue(t, b, p)
}

func (o *ObjectID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.ObjectID(*o))
}

func (o *ObjectID) UnmarshalJSONWithPrefix(prefix string, b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	} else if v, err := ObjectIDFromStringWithPrefix(prefix, s); err != nil {
		return err
	} else {
		*o = v
		return nil
	}
}

func (o *ObjectID) MarshalJSONWithPrefix(prefix string) ([]byte, error) {
	return json.Marshal(o.StringWithPrefix(prefix))
}

func (o ObjectID) ObjectID() primitive.ObjectID {
	return primitive.ObjectID(o)
}

func (o *ObjectID) StringWithPrefix(prefix string) string {
	if s, err := o.encode(); err != nil {
		return ""
	} else {
		return fmt.Sprintf("%s-%s", prefix, s)
	}
}

func ObjectIDFromStringWithPrefix(prefix string, id string) (ObjectID, error) {
	return decode(strings.TrimPrefix(id, prefix+"-"))
}
