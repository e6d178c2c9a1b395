package segments

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// segmentMetadataDB persists the segment metadata in a sqlite database that lives alongside the segment data.
type segmentMetadataDB struct {
	db       *gorm.DB
	path     string
	rootPath string
	closed   bool
}

type metadataModel struct {
	Key   string `gorm:"type:varchar(100);PRIMARY_KEY" json:"key"`
	Value []byte `gorm:"type:BLOB;NOT NULL" json:"value"`
}

func newSegmentMetadataDB(dbRootPath string) (*segmentMetadataDB, error) {
	mdirPath := path.Join(dbRootPath, metadataDirName)
	dbPath := path.Join(mdirPath, metadataDbName)
	if err := os.MkdirAll(mdirPath, 0774); err != nil {
		return nil, fmt.Errorf("%w: unable to create metadata directory %s: %v", ErrSegmentMetadata, mdirPath, err)
	}
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open metadata db located at %s: %v", ErrSegmentMetadata, dbPath, err)
	}
	mdb := &segmentMetadataDB{db: db, path: dbPath, rootPath: dbRootPath}
	if dbc := mdb.db.AutoMigrate(&metadataModel{}); dbc != nil && dbc.Error != nil {
		db.Close()
		return nil, fmt.Errorf("%w: unable to initialize metadata db located at %s: %v",
			ErrSegmentMetadata, dbPath, dbc.Error)
	}
	return mdb, nil
}

func (mdb *segmentMetadataDB) Close() error {
	if mdb.closed {
		return nil
	}
	mdb.closed = true
	return mdb.db.Close()
}

// PutMetadata inserts or updates the segment metadata.
func (mdb *segmentMetadataDB) PutMetadata(metadata *SegmentMetadata) error {
	data, err := metadata.Serialize()
	if err != nil {
		return err
	}
	mm := &metadataModel{Key: metadataKeyName, Value: data}
	var existing metadataModel
	tx := mdb.db.Begin()
	dbc := tx.Where("key = ?", metadataKeyName).First(&existing)
	if dbc.Error != nil {
		if !gorm.IsRecordNotFoundError(dbc.Error) {
			tx.Rollback()
			return fmt.Errorf("%w: unable to fetch metadata: %v", ErrSegmentMetadata, dbc.Error)
		}
		if dbc = tx.Create(mm); dbc.Error != nil {
			tx.Rollback()
			return fmt.Errorf("%w: unable to insert metadata: %v", ErrSegmentMetadata, dbc.Error)
		}
		return tx.Commit().Error
	}
	if dbc = tx.Model(mm).Where("key = ?", metadataKeyName).Updates(mm); dbc.Error != nil {
		tx.Rollback()
		return fmt.Errorf("%w: unable to update metadata: %v", ErrSegmentMetadata, dbc.Error)
	}
	return tx.Commit().Error
}

// GetMetadata fetches the segment metadata. found is false if no metadata has been persisted yet.
func (mdb *segmentMetadataDB) GetMetadata() (sm *SegmentMetadata, found bool, err error) {
	var mm metadataModel
	dbc := mdb.db.Where("key = ?", metadataKeyName).First(&mm)
	if dbc.Error != nil {
		if errors.Is(dbc.Error, gorm.ErrRecordNotFound) {
			return &SegmentMetadata{}, false, nil
		}
		return nil, false, fmt.Errorf("%w: unable to fetch metadata: %v", ErrSegmentMetadata, dbc.Error)
	}
	sm, err = newSegmentMetadata(mm.Value)
	if err != nil {
		return nil, false, err
	}
	return sm, true, nil
}
