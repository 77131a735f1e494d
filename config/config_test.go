package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfiguration() Configuration {
	var c Configuration
	c.Server.Port = 8080
	c.Algorand.AlgodURL = "https://testnet-api.algonode.cloud"
	c.Algorand.EscrowAddress = "ESCROWADDRESS"
	c.Algorand.AppID = 1001
	c.Algorand.CarbonAssetID = 2002
	c.EVM.ChainID = 80002
	c.EVM.ContractAddress = "0x1111111111111111111111111111111111111111"
	c.EVM.PublicAddress = "0x2222222222222222222222222222222222222222"
	c.Verifiers = []VerifierConfig{
		{URL: "https://verifier-1.example.com", Address: "0xv1"},
		{URL: "https://verifier-2.example.com", Address: "0xv2"},
		{URL: "https://verifier-3.example.com", Address: "0xv3"},
	}
	c.MinVerifierSignatures = 2
	c.FeePercentage = 1
	return c
}

func TestValidateAcceptsCompleteConfiguration(t *testing.T) {
	c := validConfiguration()
	require.NoError(t, c.Validate())
}

func TestValidateAppliesTimeoutDefaults(t *testing.T) {
	c := validConfiguration()
	require.NoError(t, c.Validate())
	require.Equal(t, int64(DefaultTimeoutMs), c.TimeoutMs)
	require.Equal(t, int64(DefaultVerifierTimeoutMs), c.VerifierTimeoutMs)

	c = validConfiguration()
	c.TimeoutMs = 60000
	c.VerifierTimeoutMs = 5000
	require.NoError(t, c.Validate())
	require.Equal(t, int64(60000), c.TimeoutMs)
	require.Equal(t, int64(5000), c.VerifierTimeoutMs)
}

func TestValidateRejections(t *testing.T) {
	c := validConfiguration()
	c.Algorand.AlgodURL = "not a url"
	require.Error(t, c.Validate())

	c = validConfiguration()
	c.Verifiers = nil
	require.Error(t, c.Validate())

	c = validConfiguration()
	c.MinVerifierSignatures = 4
	require.Error(t, c.Validate(), "threshold cannot exceed the verifier count")

	c = validConfiguration()
	c.EVM.ChainID = 1
	require.Error(t, c.Validate(), "chain id must be in the supported table")

	c = validConfiguration()
	c.FeePercentage = 101
	require.Error(t, c.Validate())
}
