package postgres

import "time"

// Pivot is the row model of a pivot definition.
type Pivot struct {
	Name            string    `gorm:"primaryKey;type:text"`
	LeftCollection  string    `gorm:"type:text;not null"`
	RightCollection string    `gorm:"type:text;not null"`
	OnDelete        string    `gorm:"type:text;not null;default:cascade"`
	OnDuplicate     string    `gorm:"type:text;not null;default:update"`
	Description     string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Entity struct {
	Collection     string    `gorm:"primaryKey;type:text;index:idx_entities_normalized,priority:1"`
	ID             string    `gorm:"primaryKey;type:text"`
	Name           string    `gorm:"type:text;not null"`
	NormalizedName string    `gorm:"type:text;not null;index:idx_entities_normalized,priority:2"`
	CreatedAt      time.Time `gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// Association is one linked pair. The entity foreign keys have no delete
// action; the services apply each pivot's delete policy before removing an
// entity.
type Association struct {
	ID              string    `gorm:"primaryKey;type:text"`
	PivotName       string    `gorm:"column:pivot;type:text;not null;uniqueIndex:uniq_association_pair,priority:1;index:idx_associations_right,priority:1"`
	Pivot           Pivot     `gorm:"foreignKey:PivotName;references:Name;constraint:OnDelete:CASCADE;"`
	LeftCollection  string    `gorm:"type:text;not null;index:idx_associations_left_entity,priority:1"`
	LeftID          string    `gorm:"type:text;not null;uniqueIndex:uniq_association_pair,priority:2;index:idx_associations_left_entity,priority:2"`
	Left            Entity    `gorm:"foreignKey:LeftCollection,LeftID;references:Collection,ID"`
	RightCollection string    `gorm:"type:text;not null;index:idx_associations_right_entity,priority:1"`
	RightID         string    `gorm:"type:text;not null;uniqueIndex:uniq_association_pair,priority:3;index:idx_associations_right,priority:2;index:idx_associations_right_entity,priority:2"`
	Right           Entity    `gorm:"foreignKey:RightCollection,RightID;references:Collection,ID"`
	Metadata        *string   `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"type:timestamp with time zone;not null"`
	UpdatedAt       time.Time `gorm:"type:timestamp with time zone;not null"`
}

type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Action    string    `gorm:"type:text;not null;index"`
	Subject   *string   `gorm:"type:text;index"`
	Details   *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"type:timestamp with time zone;not null;index"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
