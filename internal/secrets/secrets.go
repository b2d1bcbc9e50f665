// Package secrets stores credentials in the OS keyring so passwords and
// tokens stay out of the config file.
package secrets

import (
	"fmt"

	"github.com/zalando/go-keyring"

	"slicehouse/pkg/errors"
)

const service = "slicehouse"

// Account names for the secrets slicehouse keeps.
const (
	AccountSnowflake = "snowflake-password"
	AccountGitToken  = "git-token"
)

// Set stores a secret under the given account.
func Set(account, secret string) error {
	if err := keyring.Set(service, account, secret); err != nil {
		return errors.Wrap(err, errors.ErrCodeEncryptionFailed,
			fmt.Sprintf("failed to store %s in keyring", account))
	}
	return nil
}

// Get retrieves a secret. A missing entry is ErrCodeCredentialsMissing.
func Get(account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", errors.New(errors.ErrCodeCredentialsMissing,
				fmt.Sprintf("no %s stored in keyring", account)).
				WithSuggestions("Run 'slicehouse setup' to store credentials")
		}
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed,
			fmt.Sprintf("failed to read %s from keyring", account))
	}
	return secret, nil
}

// Delete removes a secret. Deleting a missing entry is not an error.
func Delete(account string) error {
	err := keyring.Delete(service, account)
	if err != nil && err != keyring.ErrNotFound {
		return errors.Wrap(err, errors.ErrCodeEncryptionFailed,
			fmt.Sprintf("failed to delete %s from keyring", account))
	}
	return nil
}
