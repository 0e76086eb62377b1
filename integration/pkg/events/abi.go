package events

// HandlerABI is the ABI of the IBC handler contract. Stored IBC objects
// (client and consensus states, connection and channel ends) and submitted
// messages cross the contract boundary as protobuf bytes.
const HandlerABI = `[{"type": "event", "name": "CreateClient", "anonymous": false, "inputs": [{"name": "clientId", "type": "string", "indexed": false}, {"name": "clientType", "type": "string", "indexed": false}]}, {"type": "event", "name": "UpdateClient", "anonymous": false, "inputs": [{"name": "clientId", "type": "string", "indexed": false}, {"name": "clientType", "type": "string", "indexed": false}, {"name": "revisionNumber", "type": "uint64", "indexed": false}, {"name": "revisionHeight", "type": "uint64", "indexed": false}, {"name": "header", "type": "bytes", "indexed": false}]}, {"type": "event", "name": "OpenInitConnection", "anonymous": false, "inputs": [{"name": "connectionId", "type": "string", "indexed": false}, {"name": "clientId", "type": "string", "indexed": false}, {"name": "counterpartyConnectionId", "type": "string", "indexed": false}, {"name": "counterpartyClientId", "type": "string", "indexed": false}]}, {"type": "event", "name": "OpenTryConnection", "anonymous": false, "inputs": [{"name": "connectionId", "type": "string", "indexed": false}, {"name": "clientId", "type": "string", "indexed": false}, {"name": "counterpartyConnectionId", "type": "string", "indexed": false}, {"name": "counterpartyClientId", "type": "string", "indexed": false}]}, {"type": "event", "name": "OpenAckConnection", "anonymous": false, "inputs": [{"name": "connectionId", "type": "string", "indexed": false}, {"name": "clientId", "type": "string", "indexed": false}, {"name": "counterpartyConnectionId", "type": "string", "indexed": false}, {"name": "counterpartyClientId", "type": "string", "indexed": false}]}, {"type": "event", "name": "OpenConfirmConnection", "anonymous": false, "inputs": [{"name": "connectionId", "type": "string", "indexed": false}, {"name": "clientId", "type": "string", "indexed": false}, {"name": "counterpartyConnectionId", "type": "string", "indexed": false}, {"name": "counterpartyClientId", "type": "string", "indexed": false}]}, {"type": "event", "name": "OpenInitChannel", "anonymous": false, "inputs": [{"name": "portId", "type": "string", "indexed": false}, {"name": "channelId", "type": "string", "indexed": false}, {"name": "connectionId", "type": "string", "indexed": false}, {"name": "counterpartyPortId", "type": "string", "indexed": false}, {"name": "counterpartyChannelId", "type": "string", "indexed": false}]}, {"type": "event", "name": "OpenTryChannel", "anonymous": false, "inputs": [{"name": "portId", "type": "string", "indexed": false}, {"name": "channelId", "type": "string", "indexed": false}, {"name": "connectionId", "type": "string", "indexed": false}, {"name": "counterpartyPortId", "type": "string", "indexed": false}, {"name": "counterpartyChannelId", "type": "string", "indexed": false}]}, {"type": "event", "name": "OpenAckChannel", "anonymous": false, "inputs": [{"name": "portId", "type": "string", "indexed": false}, {"name": "channelId", "type": "string", "indexed": false}, {"name": "connectionId", "type": "string", "indexed": false}, {"name": "counterpartyPortId", "type": "string", "indexed": false}, {"name": "counterpartyChannelId", "type": "string", "indexed": false}]}, {"type": "event", "name": "OpenConfirmChannel", "anonymous": false, "inputs": [{"name": "portId", "type": "string", "indexed": false}, {"name": "channelId", "type": "string", "indexed": false}, {"name": "connectionId", "type": "string", "indexed": false}, {"name": "counterpartyPortId", "type": "string", "indexed": false}, {"name": "counterpartyChannelId", "type": "string", "indexed": false}]}, {"type": "event", "name": "CloseInitChannel", "anonymous": false, "inputs": [{"name": "portId", "type": "string", "indexed": false}, {"name": "channelId", "type": "string", "indexed": false}, {"name": "connectionId", "type": "string", "indexed": false}, {"name": "counterpartyPortId", "type": "string", "indexed": false}, {"name": "counterpartyChannelId", "type": "string", "indexed": false}]}, {"type": "event", "name": "CloseConfirmChannel", "anonymous": false, "inputs": [{"name": "portId", "type": "string", "indexed": false}, {"name": "channelId", "type": "string", "indexed": false}, {"name": "connectionId", "type": "string", "indexed": false}, {"name": "counterpartyPortId", "type": "string", "indexed": false}, {"name": "counterpartyChannelId", "type": "string", "indexed": false}]}, {"type": "event", "name": "SendPacket", "anonymous": false, "inputs": [{"name": "sequence", "type": "uint64", "indexed": false}, {"name": "sourcePort", "type": "string", "indexed": false}, {"name": "sourceChannel", "type": "string", "indexed": false}, {"name": "destinationPort", "type": "string", "indexed": false}, {"name": "destinationChannel", "type": "string", "indexed": false}, {"name": "data", "type": "bytes", "indexed": false}, {"name": "timeoutRevisionNumber", "type": "uint64", "indexed": false}, {"name": "timeoutRevisionHeight", "type": "uint64", "indexed": false}, {"name": "timeoutTimestamp", "type": "uint64", "indexed": false}]}, {"type": "event", "name": "ReceivePacket", "anonymous": false, "inputs": [{"name": "sequence", "type": "uint64", "indexed": false}, {"name": "sourcePort", "type": "string", "indexed": false}, {"name": "sourceChannel", "type": "string", "indexed": false}, {"name": "destinationPort", "type": "string", "indexed": false}, {"name": "destinationChannel", "type": "string", "indexed": false}, {"name": "data", "type": "bytes", "indexed": false}, {"name": "timeoutRevisionNumber", "type": "uint64", "indexed": false}, {"name": "timeoutRevisionHeight", "type": "uint64", "indexed": false}, {"name": "timeoutTimestamp", "type": "uint64", "indexed": false}]}, {"type": "event", "name": "WriteAcknowledgement", "anonymous": false, "inputs": [{"name": "sequence", "type": "uint64", "indexed": false}, {"name": "sourcePort", "type": "string", "indexed": false}, {"name": "sourceChannel", "type": "string", "indexed": false}, {"name": "destinationPort", "type": "string", "indexed": false}, {"name": "destinationChannel", "type": "string", "indexed": false}, {"name": "data", "type": "bytes", "indexed": false}, {"name": "timeoutRevisionNumber", "type": "uint64", "indexed": false}, {"name": "timeoutRevisionHeight", "type": "uint64", "indexed": false}, {"name": "timeoutTimestamp", "type": "uint64", "indexed": false}, {"name": "acknowledgement", "type": "bytes", "indexed": false}]}, {"type": "event", "name": "AcknowledgePacket", "anonymous": false, "inputs": [{"name": "sequence", "type": "uint64", "indexed": false}, {"name": "sourcePort", "type": "string", "indexed": false}, {"name": "sourceChannel", "type": "string", "indexed": false}, {"name": "destinationPort", "type": "string", "indexed": false}, {"name": "destinationChannel", "type": "string", "indexed": false}, {"name": "data", "type": "bytes", "indexed": false}, {"name": "timeoutRevisionNumber", "type": "uint64", "indexed": false}, {"name": "timeoutRevisionHeight", "type": "uint64", "indexed": false}, {"name": "timeoutTimestamp", "type": "uint64", "indexed": false}]}, {"type": "function", "name": "createClient", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "updateClient", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "connectionOpenInit", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "connectionOpenTry", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "connectionOpenAck", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "connectionOpenConfirm", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "channelOpenInit", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "channelOpenTry", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "channelOpenAck", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "channelOpenConfirm", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "channelCloseInit", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "channelCloseConfirm", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "recvPacket", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "acknowledgePacket", "stateMutability": "nonpayable", "inputs": [{"name": "msg", "type": "bytes"}], "outputs": []}, {"type": "function", "name": "getClientState", "stateMutability": "view", "inputs": [{"name": "clientId", "type": "string"}], "outputs": [{"name": "clientState", "type": "bytes"}, {"name": "found", "type": "bool"}]}, {"type": "function", "name": "getClientStates", "stateMutability": "view", "inputs": [], "outputs": [{"name": "clientIds", "type": "string[]"}, {"name": "clientStates", "type": "bytes[]"}]}, {"type": "function", "name": "getConsensusState", "stateMutability": "view", "inputs": [{"name": "clientId", "type": "string"}, {"name": "revisionNumber", "type": "uint64"}, {"name": "revisionHeight", "type": "uint64"}], "outputs": [{"name": "consensusState", "type": "bytes"}, {"name": "found", "type": "bool"}]}, {"type": "function", "name": "getConsensusHeights", "stateMutability": "view", "inputs": [{"name": "clientId", "type": "string"}], "outputs": [{"name": "revisionNumbers", "type": "uint64[]"}, {"name": "revisionHeights", "type": "uint64[]"}]}, {"type": "function", "name": "getConnection", "stateMutability": "view", "inputs": [{"name": "connectionId", "type": "string"}], "outputs": [{"name": "connection", "type": "bytes"}, {"name": "found", "type": "bool"}]}, {"type": "function", "name": "getConnections", "stateMutability": "view", "inputs": [], "outputs": [{"name": "connectionIds", "type": "string[]"}, {"name": "connections", "type": "bytes[]"}]}, {"type": "function", "name": "getClientConnections", "stateMutability": "view", "inputs": [{"name": "clientId", "type": "string"}], "outputs": [{"name": "connectionIds", "type": "string[]"}]}, {"type": "function", "name": "getChannel", "stateMutability": "view", "inputs": [{"name": "portId", "type": "string"}, {"name": "channelId", "type": "string"}], "outputs": [{"name": "channel", "type": "bytes"}, {"name": "found", "type": "bool"}]}, {"type": "function", "name": "getChannels", "stateMutability": "view", "inputs": [], "outputs": [{"name": "portIds", "type": "string[]"}, {"name": "channelIds", "type": "string[]"}, {"name": "channels", "type": "bytes[]"}]}, {"type": "function", "name": "getConnectionChannels", "stateMutability": "view", "inputs": [{"name": "connectionId", "type": "string"}], "outputs": [{"name": "portIds", "type": "string[]"}, {"name": "channelIds", "type": "string[]"}, {"name": "channels", "type": "bytes[]"}]}, {"type": "function", "name": "getChannelClientState", "stateMutability": "view", "inputs": [{"name": "portId", "type": "string"}, {"name": "channelId", "type": "string"}], "outputs": [{"name": "clientId", "type": "string"}, {"name": "clientState", "type": "bytes"}, {"name": "found", "type": "bool"}]}, {"type": "function", "name": "getHashedPacketCommitment", "stateMutability": "view", "inputs": [{"name": "portId", "type": "string"}, {"name": "channelId", "type": "string"}, {"name": "sequence", "type": "uint64"}], "outputs": [{"name": "commitment", "type": "bytes32"}, {"name": "found", "type": "bool"}]}, {"type": "function", "name": "getHashedPacketCommitmentSequences", "stateMutability": "view", "inputs": [{"name": "portId", "type": "string"}, {"name": "channelId", "type": "string"}], "outputs": [{"name": "sequences", "type": "uint64[]"}]}, {"type": "function", "name": "getHashedPacketAcknowledgementCommitment", "stateMutability": "view", "inputs": [{"name": "portId", "type": "string"}, {"name": "channelId", "type": "string"}, {"name": "sequence", "type": "uint64"}], "outputs": [{"name": "commitment", "type": "bytes32"}, {"name": "found", "type": "bool"}]}, {"type": "function", "name": "getHashedPacketAcknowledgementSequences", "stateMutability": "view", "inputs": [{"name": "portId", "type": "string"}, {"name": "channelId", "type": "string"}], "outputs": [{"name": "sequences", "type": "uint64[]"}]}, {"type": "function", "name": "hasPacketReceipt", "stateMutability": "view", "inputs": [{"name": "portId", "type": "string"}, {"name": "channelId", "type": "string"}, {"name": "sequence", "type": "uint64"}], "outputs": [{"name": "received", "type": "bool"}]}, {"type": "function", "name": "getNextSequenceRecv", "stateMutability": "view", "inputs": [{"name": "portId", "type": "string"}, {"name": "channelId", "type": "string"}], "outputs": [{"name": "sequence", "type": "uint64"}]}]`

// TransferABI is the subset of the ICS-20 transfer contract and ERC20 tokens
// the adapter reads.
const TransferABI = `[{"type": "function", "name": "getDenomTrace", "stateMutability": "view", "inputs": [{"name": "hash", "type": "string"}], "outputs": [{"name": "fullDenom", "type": "string"}]}, {"type": "function", "name": "balanceOf", "stateMutability": "view", "inputs": [{"name": "account", "type": "address"}], "outputs": [{"name": "balance", "type": "uint256"}]}]`
