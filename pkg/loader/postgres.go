package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/synaptica-ai/phenoxtract/pkg/record"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PacketRow stores one phenopacket document. Reloading a cohort replaces
// documents by id.
type PacketRow struct {
	ID        string         `json:"id" gorm:"primaryKey;column:id"`
	Cohort    string         `json:"cohort" gorm:"column:cohort;index"`
	SubjectID string         `json:"subject_id" gorm:"column:subject_id"`
	Document  datatypes.JSON `json:"document" gorm:"column:document"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at"`
}

func (PacketRow) TableName() string {
	return "phenopackets"
}

type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Name() string {
	return "postgres"
}

func (p *Postgres) AutoMigrate() error {
	return p.db.AutoMigrate(&PacketRow{})
}

func (p *Postgres) Load(ctx context.Context, packets []record.Phenopacket) error {
	rows, err := packetRows(packets, time.Now().UTC())
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Save(&rows[i]).Error; err != nil {
				return fmt.Errorf("save %s: %w", rows[i].ID, err)
			}
		}
		return nil
	})
}

func packetRows(packets []record.Phenopacket, now time.Time) ([]PacketRow, error) {
	rows := make([]PacketRow, 0, len(packets))
	for _, p := range packets {
		doc, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", p.ID, err)
		}
		cohort := ""
		if n := len(p.ID) - len(p.Subject.ID) - 1; p.Subject.ID != "" && n > 0 {
			cohort = p.ID[:n]
		}
		rows = append(rows, PacketRow{
			ID:        p.ID,
			Cohort:    cohort,
			SubjectID: p.Subject.ID,
			Document:  datatypes.JSON(doc),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return rows, nil
}
