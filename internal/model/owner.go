package model

import (
	"errors"
	"fmt"
	"strings"
)

type OwnerKind string

const (
	OwnerProduct OwnerKind = "product"
	OwnerVariant OwnerKind = "variant"
)

var ErrInvalidOwner = errors.New("invalid owner reference")

func ParseOwnerKind(s string) (OwnerKind, error) {
	switch OwnerKind(strings.ToLower(strings.TrimSpace(s))) {
	case OwnerProduct:
		return OwnerProduct, nil
	case OwnerVariant:
		return OwnerVariant, nil
	}
	return "", fmt.Errorf("%w: unknown owner kind %q", ErrInvalidOwner, s)
}

// OwnerRef identifies the sellable item an inventory record tracks: either
// a product or one of its variants. Build it with Product or Variant.
type OwnerRef struct {
	Kind OwnerKind `json:"owner_kind"`
	ID   string    `json:"owner_id"`
}

func Product(id string) OwnerRef { return OwnerRef{Kind: OwnerProduct, ID: id} }

func Variant(id string) OwnerRef { return OwnerRef{Kind: OwnerVariant, ID: id} }

func NewOwnerRef(kind, id string) (OwnerRef, error) {
	k, err := ParseOwnerKind(kind)
	if err != nil {
		return OwnerRef{}, err
	}
	ref := OwnerRef{Kind: k, ID: strings.TrimSpace(id)}
	return ref, ref.Validate()
}

func (o OwnerRef) Validate() error {
	if o.Kind != OwnerProduct && o.Kind != OwnerVariant {
		return fmt.Errorf("%w: unknown owner kind %q", ErrInvalidOwner, o.Kind)
	}
	if o.ID == "" {
		return fmt.Errorf("%w: empty %s id", ErrInvalidOwner, o.Kind)
	}
	return nil
}

// Key is the storage/cache key for the owner, e.g. "variant:42".
func (o OwnerRef) Key() string {
	return string(o.Kind) + ":" + o.ID
}

func (o OwnerRef) String() string {
	return o.Key()
}
