package evm

import (
	"context"
	"strings"

	"github.com/sigweihq/walletsession/pkg/constants"
)

// HasExtensionMarker implements chains.Provider
// The wallet must answer web3_clientVersion within the probe timeout and, when a marker
// is configured, report a client version containing it
func (p *RPCProvider) HasExtensionMarker(ctx context.Context) bool {
	version, err := p.ClientVersion(ctx)
	if err != nil {
		p.logger.Debug("wallet probe failed", "error", err)
		return false
	}

	if p.marker == "" {
		return true
	}
	if !strings.Contains(strings.ToLower(version), strings.ToLower(p.marker)) {
		p.logger.Debug("wallet probe marker mismatch", "clientVersion", version, "marker", p.marker)
		return false
	}
	return true
}

// ClientVersion returns the wallet's self-reported client version
func (p *RPCProvider) ClientVersion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	var version string
	if err := p.client.CallContext(ctx, &version, constants.MethodClientVersion); err != nil {
		return "", &RPCError{Method: constants.MethodClientVersion, Err: err}
	}
	return version, nil
}
