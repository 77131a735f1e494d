package types

import "fmt"

// ValidationError rejects malformed input before any chain interaction.
// No transaction is created when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// TimeoutError marks a transaction that exceeded its verification window.
type TimeoutError struct {
	ID        string
	ElapsedMs int64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction %s exceeded verification window after %dms", e.ID, e.ElapsedMs)
}

// ChainSubmissionError wraps a failed lock/release/mint/burn submission.
type ChainSubmissionError struct {
	Chain ChainID
	Op    string
	Err   error
}

func (e *ChainSubmissionError) Error() string {
	return fmt.Sprintf("%s %s submission failed: %v", e.Chain, e.Op, e.Err)
}

func (e *ChainSubmissionError) Unwrap() error { return e.Err }

// ConfigurationError is raised at configuration-build time, before the
// system accepts any operation.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid bridge configuration: %s", e.Reason)
}
