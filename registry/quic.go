package registry

import (
	"github.com/sagernet/quic-go"
	"github.com/sagernet/quic-go/congestion"
	"github.com/sagernet/sing-cerl/congestion_cerl"
	E "github.com/sagernet/sing/common/exceptions"
)

// NewSender resolves name and wraps the strategy in a quic-go congestion
// controller for packets of initialPacketSize bytes.
func NewSender(initialPacketSize congestion.ByteCount, name string, options congestion_cerl.Options) (*congestion_cerl.Sender, error) {
	algorithm, err := New(name, options)
	if err != nil {
		return nil, err
	}
	return congestion_cerl.NewSender(
		initialPacketSize,
		congestion_cerl.InitialCongestionWindowPackets,
		congestion_cerl.MaxCongestionWindowPackets,
		algorithm,
		options.Logger,
	), nil
}

// SetCongestion installs the named strategy on connection.
func SetCongestion(connection *quic.Conn, name string, options congestion_cerl.Options) error {
	sender, err := NewSender(congestion.ByteCount(connection.Config().InitialPacketSize), name, options)
	if err != nil {
		return E.Cause(err, "set congestion control")
	}
	connection.SetCongestionControl(sender)
	return nil
}
