package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/custodia-labs/graphkit/auth"
)

// keyringService namespaces graphctl entries in the system keychain.
const keyringService = "graphctl"

// saveToken stores a token in the system keychain, keyed by client id.
func saveToken(clientID string, tok *auth.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := keyring.Set(keyringService, clientID, string(data)); err != nil {
		return fmt.Errorf("store token in keychain: %w", err)
	}
	return nil
}

// loadToken reads a stored token back. A missing entry returns (nil, nil).
func loadToken(clientID string) (*auth.Token, error) {
	data, err := keyring.Get(keyringService, clientID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token from keychain: %w", err)
	}
	tok := &auth.Token{}
	if err := json.Unmarshal([]byte(data), tok); err != nil {
		return nil, fmt.Errorf("decode stored token: %w", err)
	}
	return tok, nil
}

// deleteToken removes the stored token. Deleting a missing entry is a
// no-op.
func deleteToken(clientID string) error {
	err := keyring.Delete(keyringService, clientID)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete token from keychain: %w", err)
	}
	return nil
}

// persistingCredential wraps a credential and writes refreshed tokens back
// to the keychain, so a refresh in one invocation benefits the next.
type persistingCredential struct {
	cred     auth.Credential
	clientID string
}

func (p *persistingCredential) GetToken(ctx context.Context) (*auth.Token, error) {
	tok, err := p.cred.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := saveToken(p.clientID, tok); err != nil && logger != nil {
		logger.Warn("could not persist refreshed token", "error", err)
	}
	return tok, nil
}
