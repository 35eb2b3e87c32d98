package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailTaken           = errors.New("email already registered")
	ErrSlugTaken            = errors.New("page handle already taken")
	ErrRequestQuotaExceeded = errors.New("monthly request quota exceeded")
	ErrUpgradeRequired      = errors.New("feature requires trial or pro plan")
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")

	// Infrastructure-level errors surfaced through repositories
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
