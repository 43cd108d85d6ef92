package evm

import "time"

// EvmNetworkConfig is one entry of the chains config file.
type EvmNetworkConfig struct {
	ChainID     uint64        `mapstructure:"chain_id" validate:"required"`
	ID          string        `mapstructure:"id" validate:"required"`
	Name        string        `mapstructure:"name"`
	RPCUrl      string        `mapstructure:"rpc_url" validate:"required,url|startswith=ws"`
	XCall       string        `mapstructure:"xcall" validate:"required"`
	PrivateKey  string        `mapstructure:"private_key"`
	AutoExecute bool          `mapstructure:"auto_execute"`
	GasLimit    uint64        `mapstructure:"gas_limit"`
	BlockTime   time.Duration `mapstructure:"block_time"`
}

func (c *EvmNetworkConfig) GetId() string {
	return c.ID
}
