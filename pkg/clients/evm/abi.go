package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// Messaging contract surface. Events mirror the signatures the relay
// matches on; functions are the opaque RPC surface of §6.
const xcallABIJSON = `[
	{"type":"event","name":"CallMessageSent","inputs":[
		{"name":"_from","type":"address","indexed":true},
		{"name":"_to","type":"string","indexed":true},
		{"name":"_sn","type":"uint256","indexed":true}]},
	{"type":"event","name":"CallMessage","inputs":[
		{"name":"_from","type":"string","indexed":true},
		{"name":"_to","type":"string","indexed":true},
		{"name":"_sn","type":"uint256","indexed":true},
		{"name":"_reqId","type":"uint256","indexed":false},
		{"name":"_data","type":"bytes","indexed":false}]},
	{"type":"event","name":"CallExecuted","inputs":[
		{"name":"_reqId","type":"uint256","indexed":true},
		{"name":"_code","type":"int256","indexed":false},
		{"name":"_msg","type":"string","indexed":false}]},
	{"type":"event","name":"ResponseMessage","inputs":[
		{"name":"_sn","type":"uint256","indexed":true},
		{"name":"_code","type":"int256","indexed":false},
		{"name":"_msg","type":"string","indexed":false}]},
	{"type":"event","name":"RollbackMessage","inputs":[
		{"name":"_sn","type":"uint256","indexed":true}]},
	{"type":"function","name":"getFee","stateMutability":"view","inputs":[
		{"name":"_net","type":"string"},
		{"name":"_rollback","type":"bool"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"sendCallMessage","stateMutability":"payable","inputs":[
		{"name":"_to","type":"string"},
		{"name":"_data","type":"bytes"},
		{"name":"_rollback","type":"bytes"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"executeCall","stateMutability":"nonpayable","inputs":[
		{"name":"_reqId","type":"uint256"},
		{"name":"_data","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"executeRollback","stateMutability":"nonpayable","inputs":[
		{"name":"_sn","type":"uint256"}],"outputs":[]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[
		{"name":"owner","type":"address"},
		{"name":"spender","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
		{"name":"spender","type":"address"},
		{"name":"amount","type":"uint256"}],
		"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
		{"name":"account","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	xcallABI abi.ABI
	erc20ABI abi.ABI

	// event name keyed by log topic0
	eventsByID map[string]string

	eventKindByName = map[string]types.EventKind{
		"CallMessageSent": types.EventCallMessageSent,
		"CallMessage":     types.EventCallMessage,
		"CallExecuted":    types.EventCallExecuted,
		"ResponseMessage": types.EventResponseMessage,
		"RollbackMessage": types.EventRollbackMessage,
	}
)

func init() {
	var err error
	xcallABI, err = abi.JSON(strings.NewReader(xcallABIJSON))
	if err != nil {
		log.Error().Msgf("failed to parse xcall abi: %v", err)
	}
	erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		log.Error().Msgf("failed to parse erc20 abi: %v", err)
	}
	eventsByID = make(map[string]string)
	for name, event := range xcallABI.Events {
		eventsByID[event.ID.Hex()] = name
	}
}

// DecodeEventLog converts one contract log into the uniform chain event
// form. Logs that are not messaging events return (nil, nil).
func DecodeEventLog(chain types.ChainID, receiptLog *ethtypes.Log) (*types.ChainEvent, error) {
	if len(receiptLog.Topics) == 0 {
		return nil, nil
	}
	name, ok := eventsByID[receiptLog.Topics[0].Hex()]
	if !ok {
		return nil, nil
	}
	event := types.ChainEvent{
		Chain:  chain,
		Kind:   eventKindByName[name],
		TxHash: receiptLog.TxHash.Hex(),
	}

	topicUint := func(index int) uint64 {
		if index >= len(receiptLog.Topics) {
			return 0
		}
		return new(big.Int).SetBytes(receiptLog.Topics[index].Bytes()).Uint64()
	}

	switch name {
	case "CallMessageSent":
		// _from is recoverable from its topic, _to only as a hash
		if len(receiptLog.Topics) < 4 {
			return nil, fmt.Errorf("CallMessageSent log with %d topics", len(receiptLog.Topics))
		}
		event.From = strings.ToLower("0x" + receiptLog.Topics[1].Hex()[26:])
		event.Sn = topicUint(3)
	case "CallMessage":
		if len(receiptLog.Topics) < 4 {
			return nil, fmt.Errorf("CallMessage log with %d topics", len(receiptLog.Topics))
		}
		event.Sn = topicUint(3)
		values, err := xcallABI.Unpack(name, receiptLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack CallMessage data: %w", err)
		}
		event.ReqID = values[0].(*big.Int).Uint64()
		event.Data = values[1].([]byte)
	case "CallExecuted":
		event.ReqID = topicUint(1)
		values, err := xcallABI.Unpack(name, receiptLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack CallExecuted data: %w", err)
		}
		event.Code = int(values[0].(*big.Int).Int64())
	case "ResponseMessage":
		event.Sn = topicUint(1)
		values, err := xcallABI.Unpack(name, receiptLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack ResponseMessage data: %w", err)
		}
		event.Code = int(values[0].(*big.Int).Int64())
	case "RollbackMessage":
		event.Sn = topicUint(1)
	}
	return &event, nil
}

// EventID returns the topic0 hash for an event kind, for building log
// filter queries.
func EventID(kind types.EventKind) (string, bool) {
	for name, mapped := range eventKindByName {
		if mapped == kind {
			return xcallABI.Events[name].ID.Hex(), true
		}
	}
	return "", false
}
