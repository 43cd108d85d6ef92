package icon

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// IconNetworkConfig is one entry of the chains config file.
type IconNetworkConfig struct {
	NID         uint64        `mapstructure:"nid" validate:"required"`
	ID          string        `mapstructure:"id" validate:"required"`
	Name        string        `mapstructure:"name"`
	RPCUrl      string        `mapstructure:"rpc_url" validate:"required,url"`
	WSUrl       string        `mapstructure:"ws_url" validate:"required"`
	XCall       string        `mapstructure:"xcall" validate:"required,startswith=cx"`
	PrivateKey  string        `mapstructure:"private_key"`
	AutoExecute bool          `mapstructure:"auto_execute"`
	StepLimit   uint64        `mapstructure:"step_limit"`
	BlockTime   time.Duration `mapstructure:"block_time"`
}

func (c *IconNetworkConfig) GetId() string {
	return c.ID
}

// HexInt is the 0x-prefixed quantity encoding used across the ICON
// JSON-RPC surface.
type HexInt string

func NewHexInt(v uint64) HexInt {
	return HexInt("0x" + new(big.Int).SetUint64(v).Text(16))
}

func (h HexInt) BigInt() (*big.Int, error) {
	s := string(h)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "0x")
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", h)
	}
	if negative {
		v.Neg(v)
	}
	return v, nil
}

func (h HexInt) Uint64() (uint64, error) {
	v, err := h.BigInt()
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// EventLog is one entry of a transaction result's eventLogs. The first
// indexed element is always the event signature.
type EventLog struct {
	ScoreAddress string   `json:"scoreAddress"`
	Indexed      []string `json:"indexed"`
	Data         []string `json:"data"`
}

// TransactionResult is the icx_getTransactionResult response body.
type TransactionResult struct {
	Status      HexInt     `json:"status"`
	TxHash      string     `json:"txHash"`
	BlockHeight HexInt     `json:"blockHeight"`
	EventLogs   []EventLog `json:"eventLogs"`
	Failure     *struct {
		Code    HexInt `json:"code"`
		Message string `json:"message"`
	} `json:"failure,omitempty"`
}

// Block monitor wire types. The request is sent once after the
// websocket connect; notifications stream back one per block.
type EventFilter struct {
	Event string `json:"event"`
	Addr  string `json:"addr,omitempty"`
}

type MonitorRequest struct {
	Height       HexInt        `json:"height"`
	EventFilters []EventFilter `json:"eventFilters,omitempty"`
	Logs         HexInt        `json:"logs,omitempty"`
}

type MonitorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type BlockNotification struct {
	Height HexInt         `json:"height"`
	Hash   string         `json:"hash"`
	Logs   [][][]EventLog `json:"logs,omitempty"`
	Events [][][]HexInt   `json:"events,omitempty"`
}
