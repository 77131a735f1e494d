// Package protocol models the rule set the on-chain escrow and wrapped
// token programs enforce. The verification engine's proof check relies on
// these rules holding true on-chain; the types here mirror them off-chain
// so they can be tested and handed to the contract code generator.
package protocol

import (
	"fmt"

	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

// ContractSpec is the versioned contract specification consumed by the
// code-generation collaborator. The core only validates and interprets it;
// translating it to chain bytecode is not a protocol concern.
type ContractSpec struct {
	Version       int      `json:"version"`
	AssetID       string   `json:"assetId"`
	EscrowAccount string   `json:"escrowAccount"`
	Admin         string   `json:"admin"`
	Creator       string   `json:"creator"`
	VerifierSet   []string `json:"verifierSet"`
	Threshold     int      `json:"threshold"`
	TimeoutRounds uint64   `json:"timeoutRounds"`
}

func (s *ContractSpec) Validate() error {
	if s.Version < 1 {
		return &types.ConfigurationError{Reason: "contract spec version must be >= 1"}
	}
	if s.AssetID == "" || s.EscrowAccount == "" {
		return &types.ConfigurationError{Reason: "contract spec requires asset id and escrow account"}
	}
	if s.Admin == "" || s.Creator == "" {
		return &types.ConfigurationError{Reason: "contract spec requires admin and creator identities"}
	}
	if len(s.VerifierSet) == 0 {
		return &types.ConfigurationError{Reason: "contract spec requires a verifier set"}
	}
	if s.Threshold < 1 || s.Threshold > len(s.VerifierSet) {
		return &types.ConfigurationError{
			Reason: fmt.Sprintf("threshold %d out of range for %d verifiers", s.Threshold, len(s.VerifierSet)),
		}
	}
	return nil
}

// IsVerifier reports membership in the static, contract-embedded set.
func (s *ContractSpec) IsVerifier(addr string) bool {
	for _, v := range s.VerifierSet {
		if v == addr {
			return true
		}
	}
	return false
}
