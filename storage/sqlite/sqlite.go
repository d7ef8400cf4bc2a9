// Package sqlite persists contract state in SQLite through GORM.
package sqlite

import (
	"os"
	"path/filepath"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/storage"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	defaultDBPath = "./sandbox.db"
)

// DBState is one committed key of contract state.
type DBState struct {
	Key   string `gorm:"column:state_key;primaryKey;size:1024"`
	Value []byte `gorm:"column:state_value;type:blob;not null"`
}

// TableName specifies the table name for DBState
func (DBState) TableName() string {
	return "state"
}

// Store implements storage.Backend on a GORM connection.
type Store struct {
	db *gorm.DB
}

func init() {
	if err := storage.Register(storage.SQLiteBackendType, func(conf api.Storage) (storage.Backend, error) {
		return Open(conf.Path)
	}); err != nil {
		panic(err)
	}
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create db directory")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.AutoMigrate(&DBState{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return &Store{db: db}, nil
}

// Get implements storage.Backend
func (s *Store) Get(key string) ([]byte, bool, error) {
	var row DBState
	result := s.db.Where("state_key = ?", key).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if result.Error != nil {
		return nil, false, errors.Wrapf(result.Error, "failed to get %s", key)
	}
	return row.Value, true, nil
}

// Commit implements storage.Backend
func (s *Store) Commit(writes []storage.Write) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, w := range writes {
			if w.Delete {
				if err := tx.Where("state_key = ?", w.Key).Delete(&DBState{}).Error; err != nil {
					return errors.Wrapf(err, "failed to delete %s", w.Key)
				}
				continue
			}
			row := DBState{Key: w.Key, Value: w.Value}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "state_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"state_value"}),
			}).Create(&row).Error
			if err != nil {
				return errors.Wrapf(err, "failed to set %s", w.Key)
			}
		}
		return nil
	})
}

// Close implements storage.Backend
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get database handle")
	}
	return sqlDB.Close()
}
