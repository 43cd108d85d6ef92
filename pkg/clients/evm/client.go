package evm

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// EvmClient implements the relay chain surface for one EVM network. The
// messaging contract is reached through a bound contract over the
// parsed xcall ABI; token allowances through per-token ERC-20 bindings.
type EvmClient struct {
	EvmConfig    *EvmNetworkConfig
	Client       *ethclient.Client
	XCallAddress common.Address
	xcall        *bind.BoundContract
	auth         *bind.TransactOpts
}

func NewEvmClient(evmConfig *EvmNetworkConfig) (*EvmClient, error) {
	ctx := context.Background()
	log.Info().Str("chainId", evmConfig.ID).Msg("[EvmClient] [NewEvmClient] connecting to EVM network")
	rpcClient, err := rpc.DialContext(ctx, evmConfig.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM network %s: %w", evmConfig.Name, err)
	}
	client := ethclient.NewClient(rpcClient)
	if evmConfig.XCall == "" {
		return nil, fmt.Errorf("xcall address is not set for network %s", evmConfig.Name)
	}
	xcallAddress := common.HexToAddress(evmConfig.XCall)
	xcall := bind.NewBoundContract(xcallAddress, xcallABI, client, client, client)
	auth, err := createTransactOpts(evmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth for network %s: %w", evmConfig.Name, err)
	}
	return &EvmClient{
		EvmConfig:    evmConfig,
		Client:       client,
		XCallAddress: xcallAddress,
		xcall:        xcall,
		auth:         auth,
	}, nil
}

func createTransactOpts(evmConfig *EvmNetworkConfig) (*bind.TransactOpts, error) {
	if evmConfig.PrivateKey == "" {
		return nil, fmt.Errorf("private key is not set for network %s", evmConfig.Name)
	}
	privateKey, err := crypto.HexToECDSA(evmConfig.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key for network %s: %w", evmConfig.Name, err)
	}
	chainID := new(big.Int).SetUint64(evmConfig.ChainID)
	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, err
	}
	auth.GasLimit = evmConfig.GasLimit
	return auth, nil
}

func (c *EvmClient) ID() types.ChainID {
	return types.ChainID(c.EvmConfig.ID)
}

func (c *EvmClient) AutoExecute() bool {
	return c.EvmConfig.AutoExecute
}

func (c *EvmClient) MessageFee(ctx context.Context, to types.ChainID, needsRollback bool) (*big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{From: c.auth.From, Context: ctx}
	if err := c.xcall.Call(opts, &out, "getFee", to.String(), needsRollback); err != nil {
		return nil, fmt.Errorf("getFee call failed: %w", err)
	}
	return out[0].(*big.Int), nil
}

func (c *EvmClient) NativeBalance(ctx context.Context, account string) (*big.Int, error) {
	return c.Client.BalanceAt(ctx, common.HexToAddress(account), nil)
}

func (c *EvmClient) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	contract := bind.NewBoundContract(common.HexToAddress(token), erc20ABI, c.Client, c.Client, c.Client)
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	err := contract.Call(opts, &out, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("allowance call failed: %w", err)
	}
	return out[0].(*big.Int), nil
}

func (c *EvmClient) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	contract := bind.NewBoundContract(common.HexToAddress(token), erc20ABI, c.Client, c.Client, c.Client)
	opts := c.transactOpts(ctx, nil)
	tx, err := contract.Transact(opts, "approve", common.HexToAddress(spender), amount)
	if err != nil {
		return "", fmt.Errorf("approve transaction failed: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// SendCallMessage submits the origin transaction. The message fee is
// attached as transaction value; the rollback payload rides along only
// when the intent is rollback-eligible.
func (c *EvmClient) SendCallMessage(ctx context.Context, intent *types.TransactionIntent) (string, error) {
	to := fmt.Sprintf("%s/%s", intent.DestinationChain, intent.Recipient)
	rollback := []byte{}
	if intent.NeedsRollback {
		rollback = intent.Data
	}
	opts := c.transactOpts(ctx, intent.Fee)
	tx, err := c.xcall.Transact(opts, "sendCallMessage", to, intent.Data, rollback)
	if err != nil {
		return "", fmt.Errorf("sendCallMessage failed: %w", err)
	}
	log.Info().Str("chainId", c.EvmConfig.ID).
		Str("txHash", tx.Hash().Hex()).
		Str("to", to).
		Msg("[EvmClient] [SendCallMessage] submitted")
	return tx.Hash().Hex(), nil
}

func (c *EvmClient) ExecuteCall(ctx context.Context, reqID uint64, data []byte) (string, error) {
	opts := c.transactOpts(ctx, nil)
	tx, err := c.xcall.Transact(opts, "executeCall", new(big.Int).SetUint64(reqID), data)
	if err != nil {
		return "", fmt.Errorf("executeCall failed: %w", err)
	}
	return tx.Hash().Hex(), nil
}

func (c *EvmClient) ExecuteRollback(ctx context.Context, sn uint64) (string, error) {
	opts := c.transactOpts(ctx, nil)
	tx, err := c.xcall.Transact(opts, "executeRollback", new(big.Int).SetUint64(sn))
	if err != nil {
		return "", fmt.Errorf("executeRollback failed: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// TransactionReceipt fetches and decodes the receipt for txHash. Only
// logs emitted by the messaging contract are decoded; everything else
// in the receipt is ignored.
func (c *EvmClient) TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	receipt, err := c.Client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, err
	}
	result := &types.Receipt{
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Success:     receipt.Status == ethtypes.ReceiptStatusSuccessful,
	}
	for _, receiptLog := range receipt.Logs {
		if receiptLog.Address != c.XCallAddress {
			continue
		}
		event, err := DecodeEventLog(c.ID(), receiptLog)
		if err != nil {
			log.Warn().Err(err).Str("txHash", txHash).Msg("[EvmClient] [TransactionReceipt] undecodable log")
			continue
		}
		if event != nil {
			result.Events = append(result.Events, *event)
		}
	}
	return result, nil
}

// Subscribe opens a websocket log subscription filtered to one event
// kind on the messaging contract and pushes decoded events onto sink.
func (c *EvmClient) Subscribe(ctx context.Context, kind types.EventKind, sink chan<- types.ChainEvent) (func(), error) {
	id, ok := EventID(kind)
	if !ok {
		return nil, fmt.Errorf("unknown event kind %s", kind)
	}
	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.XCallAddress},
		Topics:    [][]common.Hash{{common.HexToHash(id)}},
	}
	logs := make(chan ethtypes.Log, 16)
	sub, err := c.Client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s logs: %w", kind, err)
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case err := <-sub.Err():
				if err != nil {
					log.Error().Err(err).Str("chainId", c.EvmConfig.ID).
						Msg("[EvmClient] [Subscribe] subscription error")
				}
				return
			case receiptLog := <-logs:
				event, err := DecodeEventLog(c.ID(), &receiptLog)
				if err != nil || event == nil {
					if err != nil {
						log.Warn().Err(err).Msg("[EvmClient] [Subscribe] undecodable log")
					}
					continue
				}
				select {
				case sink <- *event:
				case <-done:
					return
				}
			}
		}
	}()
	cancel := func() {
		sub.Unsubscribe()
		close(done)
	}
	return cancel, nil
}

func (c *EvmClient) transactOpts(ctx context.Context, value *big.Int) *bind.TransactOpts {
	opts := *c.auth
	opts.Context = ctx
	opts.Value = value
	return &opts
}
