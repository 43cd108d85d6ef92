package icon

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

const defaultStepLimit = 50_000_000

// maxAllowance is reported for every token because the transfer flow
// on this chain moves tokens by contract call, not by pull.
var maxAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// IconClient implements the relay chain surface for an ICON-style
// network: JSON-RPC over HTTP for calls and transactions, a websocket
// block monitor for event subscriptions.
type IconClient struct {
	IconConfig *IconNetworkConfig
	rpc        *rpcClient
	wallet     *Wallet
	monitor    *Monitor
}

func NewIconClient(iconConfig *IconNetworkConfig) (*IconClient, error) {
	log.Info().Str("chainId", iconConfig.ID).Msg("[IconClient] [NewIconClient] connecting to ICON network")
	if iconConfig.XCall == "" {
		return nil, fmt.Errorf("xcall address is not set for network %s", iconConfig.Name)
	}
	wallet, err := NewWallet(iconConfig.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet for network %s: %w", iconConfig.Name, err)
	}
	return &IconClient{
		IconConfig: iconConfig,
		rpc:        newRPCClient(iconConfig.RPCUrl),
		wallet:     wallet,
		monitor:    NewMonitor(iconConfig.WSUrl, iconConfig.XCall),
	}, nil
}

func (c *IconClient) ID() types.ChainID {
	return types.ChainID(c.IconConfig.ID)
}

func (c *IconClient) AutoExecute() bool {
	return c.IconConfig.AutoExecute
}

func (c *IconClient) MessageFee(ctx context.Context, to types.ChainID, needsRollback bool) (*big.Int, error) {
	rollback := "0x0"
	if needsRollback {
		rollback = "0x1"
	}
	var result HexInt
	err := c.rpc.Call(ctx, "icx_call", map[string]interface{}{
		"to":       c.IconConfig.XCall,
		"dataType": "call",
		"data": map[string]interface{}{
			"method": "getFee",
			"params": map[string]interface{}{
				"_net":      to.String(),
				"_rollback": rollback,
			},
		},
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("getFee call failed: %w", err)
	}
	return result.BigInt()
}

func (c *IconClient) NativeBalance(ctx context.Context, account string) (*big.Int, error) {
	var result HexInt
	err := c.rpc.Call(ctx, "icx_getBalance", map[string]interface{}{"address": account}, &result)
	if err != nil {
		return nil, err
	}
	return result.BigInt()
}

// Allowance always reports unlimited: spending approval is an EVM
// concept and has no counterpart in the token standard here.
func (c *IconClient) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	return new(big.Int).Set(maxAllowance), nil
}

func (c *IconClient) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	return "", fmt.Errorf("approval is not required on chain %s", c.IconConfig.ID)
}

func (c *IconClient) SendCallMessage(ctx context.Context, intent *types.TransactionIntent) (string, error) {
	to := fmt.Sprintf("%s/%s", intent.DestinationChain, intent.Recipient)
	params := map[string]interface{}{
		"_to":   to,
		"_data": "0x" + hex.EncodeToString(intent.Data),
	}
	if intent.NeedsRollback {
		params["_rollback"] = "0x" + hex.EncodeToString(intent.Data)
	}
	txHash, err := c.sendTransaction(ctx, "sendCallMessage", params, intent.Fee)
	if err != nil {
		return "", fmt.Errorf("sendCallMessage failed: %w", err)
	}
	log.Info().Str("chainId", c.IconConfig.ID).
		Str("txHash", txHash).
		Str("to", to).
		Msg("[IconClient] [SendCallMessage] submitted")
	return txHash, nil
}

func (c *IconClient) ExecuteCall(ctx context.Context, reqID uint64, data []byte) (string, error) {
	txHash, err := c.sendTransaction(ctx, "executeCall", map[string]interface{}{
		"_reqId": string(NewHexInt(reqID)),
		"_data":  "0x" + hex.EncodeToString(data),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("executeCall failed: %w", err)
	}
	return txHash, nil
}

func (c *IconClient) ExecuteRollback(ctx context.Context, sn uint64) (string, error) {
	txHash, err := c.sendTransaction(ctx, "executeRollback", map[string]interface{}{
		"_sn": string(NewHexInt(sn)),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("executeRollback failed: %w", err)
	}
	return txHash, nil
}

func (c *IconClient) TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	var result TransactionResult
	err := c.rpc.Call(ctx, "icx_getTransactionResult", map[string]interface{}{"txHash": txHash}, &result)
	if err != nil {
		return nil, err
	}
	status, err := result.Status.Uint64()
	if err != nil {
		return nil, fmt.Errorf("invalid receipt status: %w", err)
	}
	height, err := result.BlockHeight.Uint64()
	if err != nil {
		return nil, fmt.Errorf("invalid receipt block height: %w", err)
	}
	receipt := &types.Receipt{
		TxHash:      txHash,
		BlockNumber: height,
		Success:     status == 1,
	}
	for i := range result.EventLogs {
		eventLog := &result.EventLogs[i]
		if eventLog.ScoreAddress != c.IconConfig.XCall {
			continue
		}
		event, err := DecodeEventLog(c.ID(), eventLog)
		if err != nil {
			log.Warn().Err(err).Str("txHash", txHash).Msg("[IconClient] [TransactionReceipt] undecodable eventlog")
			continue
		}
		if event != nil {
			event.TxHash = txHash
			receipt.Events = append(receipt.Events, *event)
		}
	}
	return receipt, nil
}

func (c *IconClient) Subscribe(ctx context.Context, kind types.EventKind, sink chan<- types.ChainEvent) (func(), error) {
	return c.monitor.Subscribe(ctx, c.ID(), kind, sink)
}

func (c *IconClient) sendTransaction(ctx context.Context, method string, callParams map[string]interface{}, value *big.Int) (string, error) {
	params := map[string]interface{}{
		"version":   "0x3",
		"from":      c.wallet.Address(),
		"to":        c.IconConfig.XCall,
		"nid":       string(NewHexInt(c.IconConfig.NID)),
		"stepLimit": string(NewHexInt(c.stepLimit())),
		"timestamp": string(NewHexInt(uint64(time.Now().UnixMicro()))),
		"dataType":  "call",
		"data": map[string]interface{}{
			"method": method,
			"params": callParams,
		},
	}
	if value != nil && value.Sign() > 0 {
		params["value"] = "0x" + value.Text(16)
	}
	signature, err := c.wallet.Sign(params)
	if err != nil {
		return "", err
	}
	params["signature"] = signature
	var txHash string
	if err := c.rpc.Call(ctx, "icx_sendTransaction", params, &txHash); err != nil {
		return "", err
	}
	return txHash, nil
}

func (c *IconClient) stepLimit() uint64 {
	if c.IconConfig.StepLimit > 0 {
		return c.IconConfig.StepLimit
	}
	return defaultStepLimit
}

// DecodeEventLog converts one contract eventlog into the uniform chain
// event form. The first indexed element carries the signature;
// eventlogs with signatures the relay does not track return (nil, nil).
func DecodeEventLog(chain types.ChainID, eventLog *EventLog) (*types.ChainEvent, error) {
	if len(eventLog.Indexed) == 0 {
		return nil, nil
	}
	kind := types.EventKind(eventLog.Indexed[0])
	event := types.ChainEvent{Chain: chain, Kind: kind}

	indexedUint := func(index int) (uint64, error) {
		if index >= len(eventLog.Indexed) {
			return 0, fmt.Errorf("%s eventlog with %d indexed fields", kind, len(eventLog.Indexed))
		}
		return HexInt(eventLog.Indexed[index]).Uint64()
	}
	dataInt := func(index int) (int, error) {
		if index >= len(eventLog.Data) {
			return 0, fmt.Errorf("%s eventlog with %d data fields", kind, len(eventLog.Data))
		}
		v, err := HexInt(eventLog.Data[index]).BigInt()
		if err != nil {
			return 0, err
		}
		return int(v.Int64()), nil
	}

	var err error
	switch kind {
	case types.EventCallMessageSent:
		event.From = indexedString(eventLog, 1)
		event.Sn, err = indexedUint(3)
	case types.EventCallMessage:
		event.From = indexedString(eventLog, 1)
		event.To = indexedString(eventLog, 2)
		if event.Sn, err = indexedUint(3); err != nil {
			return nil, err
		}
		if len(eventLog.Data) < 2 {
			return nil, fmt.Errorf("CallMessage eventlog with %d data fields", len(eventLog.Data))
		}
		if event.ReqID, err = HexInt(eventLog.Data[0]).Uint64(); err != nil {
			return nil, err
		}
		event.Data, err = decodeHexBytes(eventLog.Data[1])
	case types.EventCallExecuted:
		if event.ReqID, err = indexedUint(1); err != nil {
			return nil, err
		}
		event.Code, err = dataInt(0)
	case types.EventResponseMessage:
		if event.Sn, err = indexedUint(1); err != nil {
			return nil, err
		}
		event.Code, err = dataInt(0)
	case types.EventRollbackMessage:
		event.Sn, err = indexedUint(1)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func indexedString(eventLog *EventLog, index int) string {
	if index >= len(eventLog.Indexed) {
		return ""
	}
	return eventLog.Indexed[index]
}

func decodeHexBytes(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
