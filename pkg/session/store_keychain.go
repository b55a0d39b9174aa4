// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/zalando/go-keyring"
)

// KeychainStore is the platform-secure Store implementation (spec §4.6
// "platform-secure store (for production)"). It delegates to the OS
// credential manager: macOS Keychain, the Linux Secret Service (GNOME
// Keyring / KWallet), or Windows Credential Manager.
//
// go-keyring addresses entries by (service, user) and stores a single
// string value; binary snapshot data is base64-encoded before storage.
type KeychainStore struct{}

// NewKeychainStore creates a platform-secure Store.
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{}
}

// Set stores data under (service, account), unconditionally overwriting
// any previous value (spec §4.6 "previous value is unconditionally
// deleted first" — go-keyring's Set already replaces in place).
func (k *KeychainStore) Set(_ context.Context, data []byte, service, account string) bool {
	encoded := base64.StdEncoding.EncodeToString(data)
	return keyring.Set(service, account, encoded) == nil
}

// Get reads the value stored under (service, account), returning nil if
// absent or the backend is unavailable.
func (k *KeychainStore) Get(_ context.Context, service, account string) []byte {
	encoded, err := keyring.Get(service, account)
	if err != nil {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	return data
}

// Delete removes the value stored under (service, account).
func (k *KeychainStore) Delete(_ context.Context, service, account string) bool {
	err := keyring.Delete(service, account)
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
