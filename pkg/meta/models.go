package meta

import (
	"time"

	"gorm.io/datatypes"
)

// Run 记录一次命令执行 (refresh / verify / restore)
type Run struct {
	ID      uint   `gorm:"primaryKey"`
	Command string `gorm:"index;type:varchar(32);not null"`

	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time

	Succeeded int
	Failed    int

	// 本次运行产生 (或恢复自) 的备份
	BackupLocation string `gorm:"type:text"`
	BackupCount    int

	Outcomes []Outcome `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
}

func (Run) TableName() string {
	return "runs"
}

// Outcome 是一次运行中单个文件的结局
type Outcome struct {
	ID    uint `gorm:"primaryKey"`
	RunID uint `gorm:"index;not null"`

	File   string `gorm:"index;type:varchar(255);not null"`
	Family string `gorm:"type:varchar(100)"`
	Weight string `gorm:"type:varchar(32)"`

	Stage     string `gorm:"type:varchar(16)"`
	Verdict   string `gorm:"type:varchar(16)"`
	Committed bool   `gorm:"index"`
	Size      int64

	Diagnostic string `gorm:"type:text"`

	// Detail: flavor、出错字节、耗时等非结构化信息
	Detail datatypes.JSON
}

func (Outcome) TableName() string {
	return "outcomes"
}

// Models 返回需要迁移的全部模型
func Models() []any {
	return []any{&Run{}, &Outcome{}}
}
