package secrets

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is the parent of every error that prevents a Manager
	// from being constructed. These are not worth retrying.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingToken means neither an explicit token nor BWS_ACCESS_TOKEN was set.
	ErrMissingToken = fmt.Errorf("%w: no access token provided and %s is not set", ErrConfiguration, TokenEnvVar)

	// ErrMissingProject means no project name was given.
	ErrMissingProject = fmt.Errorf("%w: project name is required", ErrConfiguration)

	// ErrProjectNotFound means no project matched the configured name.
	ErrProjectNotFound = fmt.Errorf("%w: project not found", ErrConfiguration)

	// ErrDuplicateKey means the project holds more than one secret with the same key.
	ErrDuplicateKey = fmt.Errorf("%w: duplicate secret key", ErrConfiguration)

	// ErrForeignSecret means a listed secret belongs to a different project.
	ErrForeignSecret = fmt.Errorf("%w: secret belongs to another project", ErrConfiguration)

	// ErrKeyNotFound means the key is not in the cache.
	ErrKeyNotFound = errors.New("secret key not found")

	// ErrKeyExists means Add was called for a key that is already cached.
	ErrKeyExists = errors.New("secret key already exists")
)
