package db

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/db/models"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// Adapter journals lifecycle entries to postgres so a restarted
// process can resume tracking open transfers. The lifecycle store stays
// the authority; the journal is write-through.
type Adapter struct {
	PostgresClient *gorm.DB
}

func NewAdapter(databaseURL string) (*Adapter, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is not set")
	}
	client, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := client.AutoMigrate(&models.TransferRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate transfer records: %w", err)
	}
	log.Info().Msg("[Adapter] connected to postgres")
	return &Adapter{PostgresClient: client}, nil
}

// SaveTransfer upserts the journal row for entry.
func (a *Adapter) SaveTransfer(entry types.LifecycleEntry) error {
	record := recordFromEntry(entry)
	result := a.PostgresClient.Save(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to save transfer %d: %w", entry.Sn, result.Error)
	}
	return nil
}

// UpdateStatus updates only the status column for sn.
func (a *Adapter) UpdateStatus(sn uint64, status types.TransferStatus) error {
	result := a.PostgresClient.Model(&models.TransferRecord{}).
		Where("sn = ?", sn).
		Update("status", int(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update transfer %d status: %w", sn, result.Error)
	}
	if result.RowsAffected == 0 {
		return types.ErrNotFound
	}
	return nil
}

// LoadOpen returns all journaled transfers that are not terminal:
// pending, executable and rollbackReady rows. These are never silently
// dropped, a rollbackReady row is the user's path to recover funds.
func (a *Adapter) LoadOpen() ([]types.LifecycleEntry, error) {
	var records []models.TransferRecord
	result := a.PostgresClient.
		Where("status IN ?", []int{
			int(types.StatusPending),
			int(types.StatusExecutable),
			int(types.StatusRollbackReady),
		}).
		Order("sn asc").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load open transfers: %w", result.Error)
	}
	entries := make([]types.LifecycleEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, entryFromRecord(record))
	}
	return entries, nil
}

// Remove deletes the journal row for sn on explicit user dismissal.
func (a *Adapter) Remove(sn uint64) error {
	result := a.PostgresClient.Delete(&models.TransferRecord{}, "sn = ?", sn)
	if result.Error != nil {
		return fmt.Errorf("failed to delete transfer %d: %w", sn, result.Error)
	}
	return nil
}

func recordFromEntry(entry types.LifecycleEntry) models.TransferRecord {
	record := models.TransferRecord{
		Sn:                entry.Sn,
		OriginChain:       entry.Origin.OriginChain.String(),
		DestinationChain:  entry.Origin.DestinationChain.String(),
		TxHash:            entry.Origin.TxHash,
		RollbackEligible:  entry.Origin.RollbackEligible,
		AutoExecute:       entry.Origin.AutoExecute,
		Status:            int(entry.Status),
		DescriptionAction: entry.Origin.DescriptionAction,
		DescriptionAmount: entry.Origin.DescriptionAmount,
		CreatedAt:         entry.Origin.CreatedAt,
	}
	if entry.Destination != nil {
		reqID := entry.Destination.ReqID
		record.ReqID = &reqID
		record.Payload = entry.Destination.Payload
	}
	return record
}

func entryFromRecord(record models.TransferRecord) types.LifecycleEntry {
	entry := types.LifecycleEntry{
		Sn: record.Sn,
		Origin: types.OriginEvent{
			Sn:                record.Sn,
			OriginChain:       types.ChainID(record.OriginChain),
			DestinationChain:  types.ChainID(record.DestinationChain),
			TxHash:            record.TxHash,
			RollbackEligible:  record.RollbackEligible,
			AutoExecute:       record.AutoExecute,
			CreatedAt:         record.CreatedAt,
			DescriptionAction: record.DescriptionAction,
			DescriptionAmount: record.DescriptionAmount,
		},
		Status: types.TransferStatus(record.Status),
	}
	if record.ReqID != nil {
		entry.Destination = &types.DestinationEvent{
			Sn:               record.Sn,
			ReqID:            *record.ReqID,
			Payload:          record.Payload,
			DestinationChain: types.ChainID(record.DestinationChain),
			AutoExecute:      record.AutoExecute,
		}
	}
	return entry
}
