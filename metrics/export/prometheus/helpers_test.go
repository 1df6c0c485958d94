package prometheus

import (
	"context"

	"github.com/MrEthical07/authcore"
)

type emptyStore struct{}

func (emptyStore) FindByEmail(context.Context, string) (*authcore.Credential, error) {
	return nil, authcore.ErrUserNotFound
}

func (emptyStore) FindByID(context.Context, string) (*authcore.Credential, error) {
	return nil, authcore.ErrUserNotFound
}

func (emptyStore) Create(context.Context, authcore.NewCredential) (*authcore.Credential, error) {
	return nil, authcore.ErrStoreUnavailable
}
