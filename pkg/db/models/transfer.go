package models

import (
	"time"
)

// TransferRecord is the persisted journal row of one tracked transfer,
// keyed by the messaging contract's sequence number. Open rows
// (pending, executable, rollbackReady) re-seed the lifecycle store on
// startup.
type TransferRecord struct {
	Sn                uint64 `gorm:"primaryKey"`
	OriginChain       string `gorm:"type:varchar(64);index"`
	DestinationChain  string `gorm:"type:varchar(64);index"`
	TxHash            string `gorm:"type:varchar(255)"`
	RollbackEligible  bool
	AutoExecute       bool
	Status            int `gorm:"default:0;index"`
	DescriptionAction string
	DescriptionAmount string

	// Destination side, populated once the CallMessage arrives.
	ReqID   *uint64
	Payload []byte

	CreatedAt time.Time `gorm:"type:timestamp(6);default:current_timestamp(6)"`
	UpdatedAt time.Time `gorm:"type:timestamp(6);default:current_timestamp(6)"`
}
