package txbuilder

import (
	"github.com/cosmos/gogoproto/proto"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"

	"github.com/Flouse/forcerelay/protocol"
)

// AxonClientType is the client type the cell chain tracks the account chain
// with.
const AxonClientType = "07-axon"

// The client cell is deployed and updated outside the relayer, so client
// messages need no transaction. Their events are synthesized so the caller
// sees the same outcome as on a chain that executes them.

func buildCreateClient(_ proto.Message, lc *LookupContext) (*TxInfo, error) {
	return &TxInfo{Event: protocol.CreateClient{ClientAttributes: protocol.ClientAttributes{
		ClientID:   lc.ClientID,
		ClientType: AxonClientType,
	}}}, nil
}

func buildUpdateClient(msg proto.Message, lc *LookupContext) (*TxInfo, error) {
	m := msg.(*clienttypes.MsgUpdateClient)
	if err := lc.checkClient(m.ClientId); err != nil {
		return nil, err
	}
	var header []byte
	if m.ClientMessage != nil {
		header = m.ClientMessage.Value
	}
	return &TxInfo{Event: protocol.UpdateClient{
		ClientAttributes: protocol.ClientAttributes{ClientID: m.ClientId, ClientType: AxonClientType},
		Header:           header,
	}}, nil
}
